// Package busutil centralizes the error-narrowing policy every D-Bus
// boundary in the hub follows: a peer-call or protocol-decode failure is
// logged and the caller proceeds with a default value rather than
// propagating a fatal error. No D-Bus peer misbehavior should crash the
// process.
package busutil

import "log/slog"

// Shrug logs err with context at debug level and returns whether err was
// non-nil, so call sites can write:
//
//	if busutil.Shrug(err, "fetch tray icon") {
//	    return defaultIcon
//	}
func Shrug(err error, context string) bool {
	if err == nil {
		return false
	}
	slog.Debug("narrowed error to default", "context", context, "error", err)
	return true
}

// ShrugWarn is Shrug but logs at warn level, for failures worth a
// human's attention even though they are still non-fatal (e.g. a
// collector's entire probe failing rather than one property read).
func ShrugWarn(err error, context string) bool {
	if err == nil {
		return false
	}
	slog.Warn("narrowed error to default", "context", context, "error", err)
	return true
}
