// Package busconn manages the single session-bus connection shared by the
// hub's D-Bus-facing components.
package busconn

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

// ErrNameTaken is returned by RequestName when the bus name is already
// owned by another process and cannot be queued for.
var ErrNameTaken = errors.New("bus name already owned")

// Conn wraps a single *dbus.Conn and the export bookkeeping every
// server-side component (watcher, notification server) needs.
type Conn struct {
	conn *dbus.Conn
}

// Connect opens a connection to the session bus.
func Connect() (*Conn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return &Conn{conn: conn}, nil
}

// Raw returns the underlying *dbus.Conn for callers that need direct
// access (e.g. to subscribe to signals or build an Object proxy).
func (c *Conn) Raw() *dbus.Conn {
	return c.conn
}

// UniqueName returns this connection's unique bus name (":1.42"-style).
func (c *Conn) UniqueName() string {
	names := c.conn.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// RequestName requests ownership of a well-known bus name without queuing:
// if another process already owns it, ErrNameTaken is returned rather than
// waiting in line for it.
func (c *Conn) RequestName(name string) error {
	reply, err := c.conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name %q: %w", name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("%w: %q", ErrNameTaken, name)
	}
	return nil
}

// ExportSpec describes one interface for ExportService, which bundles
// conn.Export, introspection, and (optional) property export into one
// call, mirroring the registration idiom every exported interface in the
// hub follows.
type ExportSpec struct {
	Path       dbus.ObjectPath
	Iface      string
	Methods    []introspect.Method
	Signals    []introspect.Signal
	Properties prop.Map
}

// ExportService exports a value's methods at the given path/interface,
// publishes its introspection XML, and (if Properties is non-nil) exports
// its property table. It returns the live *prop.Properties handle so
// callers can update values and trigger PropertiesChanged emission.
func (c *Conn) ExportService(value any, spec ExportSpec) (*prop.Properties, error) {
	if err := c.conn.Export(value, spec.Path, spec.Iface); err != nil {
		return nil, fmt.Errorf("export %s at %s: %w", spec.Iface, spec.Path, err)
	}

	var props *prop.Properties
	if spec.Properties != nil {
		p, err := prop.Export(c.conn, spec.Path, spec.Properties)
		if err != nil {
			return nil, fmt.Errorf("export properties for %s: %w", spec.Iface, err)
		}
		props = p
	}

	ifaces := []introspect.Interface{introspect.IntrospectData}
	if spec.Properties != nil {
		ifaces = append(ifaces, prop.IntrospectData)
	}
	ifaces = append(ifaces, introspect.Interface{
		Name:    spec.Iface,
		Methods: spec.Methods,
		Signals: spec.Signals,
	})

	node := &introspect.Node{
		Name:       string(spec.Path),
		Interfaces: ifaces,
	}
	if err := c.conn.Export(introspect.NewIntrospectable(node), spec.Path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("export introspection for %s: %w", spec.Iface, err)
	}

	return props, nil
}

// Emit broadcasts a signal from the given path/interface.member, logging
// (rather than returning) failures since signal emission is best-effort.
func (c *Conn) Emit(path dbus.ObjectPath, name string, values ...any) {
	if err := c.conn.Emit(path, name, values...); err != nil {
		slog.Warn("emit signal failed", "signal", name, "error", err)
	}
}

// WatchNameOwnerChanged subscribes to NameOwnerChanged signals for a single
// well-known name and returns a channel of new-owner strings (empty string
// means the name lost its owner). The returned stop function removes the
// match rule and signal channel.
func (c *Conn) WatchNameOwnerChanged(name string) (ch <-chan string, stop func(), err error) {
	matchRule := fmt.Sprintf(
		"type='signal',interface='org.freedesktop.DBus',member='NameOwnerChanged',arg0='%s'",
		name,
	)
	if err := c.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchRule).Err; err != nil {
		return nil, nil, fmt.Errorf("add match rule for %q: %w", name, err)
	}

	sigCh := make(chan *dbus.Signal, 4)
	c.conn.Signal(sigCh)

	out := make(chan string, 4)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case sig, ok := <-sigCh:
				if !ok {
					return
				}
				if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(sig.Body) < 3 {
					continue
				}
				signalName, ok := sig.Body[0].(string)
				if !ok || signalName != name {
					continue
				}
				newOwner, ok := sig.Body[2].(string)
				if !ok {
					continue
				}
				out <- newOwner
			}
		}
	}()

	stopFn := func() {
		close(done)
		c.conn.RemoveSignal(sigCh)
		c.conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, matchRule)
	}
	return out, stopFn, nil
}

// Close closes the underlying connection. It does not auto-reconnect;
// collaborators detect absence via NameOwnerChanged themselves.
func (c *Conn) Close() error {
	return c.conn.Close()
}
