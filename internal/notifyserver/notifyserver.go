// Package notifyserver implements org.freedesktop.Notifications, the
// freedesktop desktop-notification spec, backed by a persistent store and
// fanning new notifications out to an in-process popup consumer.
package notifyserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/INDIW33D/hyprline/internal/busconn"
	"github.com/INDIW33D/hyprline/internal/notifystore"
)

const (
	InterfaceName = "org.freedesktop.Notifications"
	ObjectPath    = "/org/freedesktop/Notifications"
	BusName       = "org.freedesktop.Notifications"
)

// Urgency mirrors the three urgency levels the spec hint carries.
type Urgency uint8

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Close reasons as defined by the Notifications spec.
const (
	ReasonExpired           uint32 = 1
	ReasonDismissedByUser   uint32 = 2
	ReasonCloseNotification uint32 = 3
	ReasonUndefined         uint32 = 4
)

// Action is an ordered (key, label) action pair. The synthetic key
// "default" is reserved for the primary click.
type Action struct {
	Key   string
	Label string
}

// Notification is the in-process representation handed to the popup
// consumer.
type Notification struct {
	ID            uint32
	AppName       string
	AppIcon       string
	Summary       string
	Body          string
	Urgency       Urgency
	Actions       []Action
	ExpireTimeout int32
	Timestamp     int64
}

// UIEvent is an intent forwarded from ShowHistoryWindow/HideHistoryWindow.
type UIEvent int

const (
	UIEventShowHistory UIEvent = iota
	UIEventHideHistory
)

// historyEntry is the JSON shape GetHistory returns.
type historyEntry struct {
	ID        uint32 `json:"id"`
	AppName   string `json:"app_name"`
	Summary   string `json:"summary"`
	Body      string `json:"body"`
	Icon      string `json:"icon"`
	Urgency   uint8  `json:"urgency"`
	Timestamp int64  `json:"timestamp"`
}

// Server implements the D-Bus Notifications interface.
type Server struct {
	conn  *busconn.Conn
	store *notifystore.Store

	nextID atomic.Uint32

	notifyCh chan Notification
	uiCh     chan UIEvent

	nowUnix        func() int64
	onCountChanged func(uint32)

	// emit sends a signal from ObjectPath. It defaults to conn.Emit but is
	// a seam so tests can drive Notify/CloseNotification without a live
	// bus connection.
	emit func(name string, values ...any)
}

// OnCountChanged registers a callback invoked with the current count
// every time the server emits NotificationCountChanged, letting
// in-process consumers (the observer hub) stay current without
// subscribing to the signal over the bus themselves.
func (s *Server) OnCountChanged(fn func(uint32)) {
	s.onCountChanged = fn
}

// New returns a Server backed by store, publishing accepted notifications
// on notifyCh and UI intents on uiCh. Notify and
// ShowHistoryWindow/HideHistoryWindow never block on these channels: when
// a channel is full (or unbuffered with no ready receiver) the value is
// dropped and a warning is logged.
func New(conn *busconn.Conn, store *notifystore.Store, notifyCh chan Notification, uiCh chan UIEvent) *Server {
	s := &Server{
		conn:     conn,
		store:    store,
		notifyCh: notifyCh,
		uiCh:     uiCh,
		nowUnix:  func() int64 { return time.Now().Unix() },
	}
	s.emit = func(name string, values ...any) {
		s.conn.Emit(ObjectPath, InterfaceName+"."+name, values...)
	}

	if max, err := store.MaxID(); err == nil {
		s.nextID.Store(max)
	}

	return s
}

// Start requests the well-known bus name and exports the interface.
func (s *Server) Start() error {
	if err := s.conn.RequestName(BusName); err != nil {
		return fmt.Errorf("start notification server: %w", err)
	}

	if _, err := s.conn.ExportService(s, busconn.ExportSpec{
		Path:    ObjectPath,
		Iface:   InterfaceName,
		Methods: notificationMethods,
		Signals: notificationSignals,
	}); err != nil {
		return fmt.Errorf("start notification server: %w", err)
	}

	slog.Info("notification server started", "interface", InterfaceName, "path", ObjectPath)
	return nil
}

// GetServerInformation returns server identity and the supported spec
// version.
func (s *Server) GetServerInformation() (name, vendor, version, specVersion string, dbusErr *dbus.Error) {
	return "hyprline-notifications", "hyprline", "1.0", "1.2", nil
}

// GetCapabilities returns the capabilities this server implements.
func (s *Server) GetCapabilities() ([]string, *dbus.Error) {
	return []string{"body", "body-markup", "actions", "persistence"}, nil
}

// Notify accepts a notification, persists it, and hands it to the popup
// consumer, returning the allocated (or replaced) id. Store failures are
// logged but never fail the call: a lost-on-disk notification is
// preferable to a producer-visible error.
func (s *Server) Notify(
	appName string,
	replacesID uint32,
	appIcon string,
	summary string,
	body string,
	actions []string,
	hints map[string]dbus.Variant,
	expireTimeout int32,
) (uint32, *dbus.Error) {
	id := replacesID
	if id == 0 {
		id = s.nextID.Add(1)
	}

	urgency := extractUrgency(hints)
	pairs := pairActions(actions)
	now := s.nowUnix()

	n := Notification{
		ID:            id,
		AppName:       appName,
		AppIcon:       appIcon,
		Summary:       summary,
		Body:          body,
		Urgency:       urgency,
		Actions:       pairs,
		ExpireTimeout: expireTimeout,
		Timestamp:     now,
	}

	record := notifystore.Record{
		ID:        id,
		AppName:   appName,
		Summary:   summary,
		Body:      body,
		Icon:      appIcon,
		Urgency:   uint8(urgency),
		Timestamp: now,
		Actions:   toStoreActions(pairs),
	}
	if err := s.store.Save(record); err != nil {
		slog.Warn("failed to persist notification", "id", id, "error", err)
	}

	select {
	case s.notifyCh <- n:
	default:
		slog.Warn("notification consumer channel full, dropping popup delivery", "id", id)
	}

	s.emitCountChanged()

	return id, nil
}

// CloseNotification removes the notification from the store and emits
// NotificationClosed with reason "closed by request". Closing an unknown
// id succeeds silently and emits no spurious count change.
func (s *Server) CloseNotification(id uint32) *dbus.Error {
	existed, err := s.store.Delete(id)
	if err != nil {
		slog.Warn("failed to delete notification", "id", id, "error", err)
		return nil
	}
	if !existed {
		return nil
	}

	s.emit("NotificationClosed", id, ReasonCloseNotification)
	s.emitCountChanged()
	return nil
}

// GetNotificationCount returns the number of stored notifications.
func (s *Server) GetNotificationCount() (uint32, *dbus.Error) {
	count, err := s.store.Count()
	if err != nil {
		slog.Warn("failed to count notifications", "error", err)
		return 0, nil
	}
	return count, nil
}

// GetHistory returns the stored notifications as a JSON array, newest
// first. A store failure yields "[]" rather than a D-Bus error.
func (s *Server) GetHistory() (string, *dbus.Error) {
	records, err := s.store.LoadAll()
	if err != nil {
		slog.Warn("failed to load notification history", "error", err)
		return "[]", nil
	}

	entries := make([]historyEntry, len(records))
	for i, r := range records {
		entries[i] = historyEntry{
			ID:        r.ID,
			AppName:   r.AppName,
			Summary:   r.Summary,
			Body:      r.Body,
			Icon:      r.Icon,
			Urgency:   r.Urgency,
			Timestamp: r.Timestamp,
		}
	}

	encoded, err := json.Marshal(entries)
	if err != nil {
		slog.Warn("failed to encode notification history", "error", err)
		return "[]", nil
	}
	return string(encoded), nil
}

// DeleteNotification removes a notification by id, reporting whether it
// existed.
func (s *Server) DeleteNotification(id uint32) (bool, *dbus.Error) {
	existed, err := s.store.Delete(id)
	if err != nil {
		slog.Warn("failed to delete notification", "id", id, "error", err)
		return false, nil
	}
	if existed {
		s.emitCountChanged()
	}
	return existed, nil
}

// ClearHistory removes every stored notification, returning the count
// removed.
func (s *Server) ClearHistory() (uint32, *dbus.Error) {
	removed, err := s.store.ClearAll()
	if err != nil {
		slog.Warn("failed to clear notification history", "error", err)
		return 0, nil
	}
	if removed > 0 {
		s.emitCountChanged()
	}
	return removed, nil
}

// ShowHistoryWindow forwards a show-history intent to the UI channel.
func (s *Server) ShowHistoryWindow() *dbus.Error {
	s.sendUIEvent(UIEventShowHistory)
	return nil
}

// HideHistoryWindow forwards a hide-history intent to the UI channel.
func (s *Server) HideHistoryWindow() *dbus.Error {
	s.sendUIEvent(UIEventHideHistory)
	return nil
}

func (s *Server) sendUIEvent(event UIEvent) {
	if s.uiCh == nil {
		return
	}
	select {
	case s.uiCh <- event:
	default:
		slog.Warn("ui event channel full, dropping event", "event", event)
	}
}

func (s *Server) emitCountChanged() {
	count, err := s.store.Count()
	if err != nil {
		slog.Warn("failed to count notifications for signal", "error", err)
		return
	}
	s.emit("NotificationCountChanged", count)
	if s.onCountChanged != nil {
		s.onCountChanged(count)
	}
}

// extractUrgency reads hints["urgency"] as a byte, defaulting to Normal
// when absent or of an unexpected type.
func extractUrgency(hints map[string]dbus.Variant) Urgency {
	v, ok := hints["urgency"]
	if !ok {
		return UrgencyNormal
	}
	switch val := v.Value().(type) {
	case byte:
		return Urgency(val)
	case uint8:
		return Urgency(val)
	case int32:
		return Urgency(val)
	default:
		return UrgencyNormal
	}
}

// pairActions reconstructs (key, label) pairs from the flat
// [key1, label1, key2, label2, ...] wire representation, discarding any
// trailing unpaired element.
func pairActions(actions []string) []Action {
	n := len(actions) / 2
	out := make([]Action, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Action{Key: actions[2*i], Label: actions[2*i+1]})
	}
	return out
}

func toStoreActions(actions []Action) []notifystore.Action {
	out := make([]notifystore.Action, len(actions))
	for i, a := range actions {
		out[i] = notifystore.Action{Key: a.Key, Label: a.Label}
	}
	return out
}

var notificationMethods = []introspect.Method{
	{
		Name: "GetServerInformation",
		Args: []introspect.Arg{
			{Name: "name", Type: "s", Direction: "out"},
			{Name: "vendor", Type: "s", Direction: "out"},
			{Name: "version", Type: "s", Direction: "out"},
			{Name: "spec_version", Type: "s", Direction: "out"},
		},
	},
	{
		Name: "GetCapabilities",
		Args: []introspect.Arg{
			{Name: "capabilities", Type: "as", Direction: "out"},
		},
	},
	{
		Name: "Notify",
		Args: []introspect.Arg{
			{Name: "app_name", Type: "s", Direction: "in"},
			{Name: "replaces_id", Type: "u", Direction: "in"},
			{Name: "app_icon", Type: "s", Direction: "in"},
			{Name: "summary", Type: "s", Direction: "in"},
			{Name: "body", Type: "s", Direction: "in"},
			{Name: "actions", Type: "as", Direction: "in"},
			{Name: "hints", Type: "a{sv}", Direction: "in"},
			{Name: "expire_timeout", Type: "i", Direction: "in"},
			{Name: "id", Type: "u", Direction: "out"},
		},
	},
	{
		Name: "CloseNotification",
		Args: []introspect.Arg{
			{Name: "id", Type: "u", Direction: "in"},
		},
	},
	{
		Name: "GetNotificationCount",
		Args: []introspect.Arg{
			{Name: "count", Type: "u", Direction: "out"},
		},
	},
	{
		Name: "GetHistory",
		Args: []introspect.Arg{
			{Name: "json", Type: "s", Direction: "out"},
		},
	},
	{
		Name: "DeleteNotification",
		Args: []introspect.Arg{
			{Name: "id", Type: "u", Direction: "in"},
			{Name: "existed", Type: "b", Direction: "out"},
		},
	},
	{
		Name: "ClearHistory",
		Args: []introspect.Arg{
			{Name: "removed", Type: "u", Direction: "out"},
		},
	},
	{Name: "ShowHistoryWindow"},
	{Name: "HideHistoryWindow"},
}

var notificationSignals = []introspect.Signal{
	{
		Name: "NotificationClosed",
		Args: []introspect.Arg{
			{Name: "id", Type: "u"},
			{Name: "reason", Type: "u"},
		},
	},
	{
		Name: "ActionInvoked",
		Args: []introspect.Arg{
			{Name: "id", Type: "u"},
			{Name: "action_key", Type: "s"},
		},
	},
	{
		Name: "NotificationCountChanged",
		Args: []introspect.Arg{
			{Name: "count", Type: "u"},
		},
	},
}
