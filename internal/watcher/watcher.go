// Package watcher implements org.kde.StatusNotifierWatcher, the registry
// tray items and tray hosts use to find each other on the session bus.
package watcher

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/INDIW33D/hyprline/internal/busconn"
)

const (
	InterfaceName = "org.kde.StatusNotifierWatcher"
	ObjectPath    = "/StatusNotifierWatcher"
)

// Watcher implements the StatusNotifierWatcher interface. Exactly one
// instance should own the well-known bus name at a time.
type Watcher struct {
	conn    *busconn.Conn
	busName string

	mu      sync.Mutex
	closed  bool
	items   []string
	hosts   []string
	signals chan *dbus.Signal

	props *prop.Properties
}

// New returns a Watcher bound to conn. busName overrides the well-known
// name it requests (org.kde.StatusNotifierWatcher when empty), which is
// mainly useful in tests so multiple watchers can coexist on one bus.
func New(conn *busconn.Conn, busName string) *Watcher {
	if busName == "" {
		busName = InterfaceName
	}
	return &Watcher{
		conn:    conn,
		busName: busName,
		signals: make(chan *dbus.Signal, 64),
	}
}

// Listen requests the watcher's well-known bus name, exports the
// StatusNotifierWatcher interface, and starts monitoring for registered
// items/hosts going away.
func (w *Watcher) Listen() error {
	if err := w.conn.RequestName(w.busName); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	props, err := w.conn.ExportService(w, busconn.ExportSpec{
		Path:       ObjectPath,
		Iface:      InterfaceName,
		Methods:    watcherMethods,
		Signals:    watcherSignals,
		Properties: w.propertyMap(),
	})
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	w.props = props

	w.subscribe()

	return nil
}

// Close releases the well-known name and stops the signal-monitoring
// goroutine. The watcher cannot be reused afterward.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.conn.Raw().RemoveSignal(w.signals)
	close(w.signals)

	_, err := w.conn.Raw().ReleaseName(w.busName)
	return err
}

// RegisterStatusNotifierItem registers a StatusNotifierItem with the
// watcher. service is either a bare bus name (the item's object path
// then defaults to /StatusNotifierItem) or a "bus_name/object_path"
// composite; it is stored verbatim and never validated or rewritten,
// so RegisteredStatusNotifierItems always echoes back exactly what the
// caller registered. The watcher does not verify the item actually
// implements StatusNotifierItem; that validation belongs to the
// resolver that consumes the registration, so a slow-to-export item is
// still tracked.
func (w *Watcher) RegisterStatusNotifierItem(service string) *dbus.Error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if slices.Contains(w.items, service) {
		return nil
	}

	w.items = append(w.items, service)
	w.watchNameOwner(ownerSegment(service))

	w.conn.Emit(ObjectPath, InterfaceName+".StatusNotifierItemRegistered", service)
	w.publishItemsLocked()

	return nil
}

// RegisterStatusNotifierHost registers a StatusNotifierHost (a tray bar)
// with the watcher.
func (w *Watcher) RegisterStatusNotifierHost(name string) *dbus.Error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if slices.Contains(w.hosts, name) {
		return nil
	}

	w.hosts = append(w.hosts, name)
	w.watchNameOwner(name)

	w.conn.Emit(ObjectPath, InterfaceName+".StatusNotifierHostRegistered", name)

	return nil
}

// watchNameOwner adds a NameOwnerChanged match rule for name. Must be
// called with w.mu held.
func (w *Watcher) watchNameOwner(name string) {
	w.conn.Raw().AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, name),
	)
}

// subscribe monitors NameOwnerChanged and evicts items/hosts whose owning
// bus name has disappeared.
func (w *Watcher) subscribe() {
	w.conn.Raw().Signal(w.signals)

	go func() {
		for signal := range w.signals {
			if signal.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(signal.Body) < 3 {
				continue
			}

			name, ok := signal.Body[0].(string)
			if !ok {
				continue
			}
			newOwner, ok := signal.Body[2].(string)
			if !ok || newOwner != "" {
				continue
			}

			w.evict(name)
		}
	}()
}

// evict drops every item/host owned by name. An item's identifier is the
// service string as registered ("busName" or "busName/objectPath");
// eviction matches only the leading bus-name
// segment (the substring before the first '/', or the whole identifier
// when there is no '/'), never a loose prefix match, so that
// "org.example.Tray2" is never evicted by a NameOwnerChanged for
// "org.example.Tray".
func (w *Watcher) evict(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	itemsChanged := false

	w.hosts = slices.DeleteFunc(w.hosts, func(host string) bool {
		return host == name
	})

	w.items = slices.DeleteFunc(w.items, func(item string) bool {
		if ownerSegment(item) != name {
			return false
		}
		itemsChanged = true
		w.conn.Emit(ObjectPath, InterfaceName+".StatusNotifierItemUnregistered", item)
		return true
	})

	if itemsChanged {
		w.publishItemsLocked()
	}
}

// ownerSegment returns the leading bus-name segment of an item
// identifier: everything before the first '/', or the whole string if
// there is none.
func ownerSegment(identifier string) string {
	if idx := strings.Index(identifier, "/"); idx >= 0 {
		return identifier[:idx]
	}
	return identifier
}

// Items returns a snapshot of the currently registered item identifiers.
func (w *Watcher) Items() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.items)
}

// HasHost reports whether at least one StatusNotifierHost is registered.
func (w *Watcher) HasHost() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hosts) > 0
}

func (w *Watcher) propertyMap() prop.Map {
	return prop.Map{
		InterfaceName: {
			"RegisteredStatusNotifierItems": {Value: w.Items(), Writable: false, Emit: prop.EmitTrue},
			// Fixed to true: real StatusNotifierItem implementations gate
			// registration on reading true here, regardless of whether a
			// host happens to be registered yet.
			"IsStatusNotifierHostRegistered": {Value: true, Writable: false, Emit: prop.EmitFalse},
			"ProtocolVersion":                {Value: int32(0), Writable: false, Emit: prop.EmitFalse},
		},
	}
}

// publishItemsLocked pushes the current item list to the exported
// RegisteredStatusNotifierItems property, emitting PropertiesChanged. It
// must be called with w.mu held, and reads w.items directly rather than
// through Items() to avoid re-entering the mutex.
func (w *Watcher) publishItemsLocked() {
	if w.props == nil {
		return
	}
	w.props.SetMust(InterfaceName, "RegisteredStatusNotifierItems", slices.Clone(w.items))
}

var watcherMethods = []introspect.Method{
	{
		Name: "RegisterStatusNotifierItem",
		Args: []introspect.Arg{
			{Name: "service", Type: "s", Direction: "in"},
		},
	},
	{
		Name: "RegisterStatusNotifierHost",
		Args: []introspect.Arg{
			{Name: "service", Type: "s", Direction: "in"},
		},
	},
}

var watcherSignals = []introspect.Signal{
	{
		Name: "StatusNotifierItemRegistered",
		Args: []introspect.Arg{{Name: "service", Type: "s"}},
	},
	{
		Name: "StatusNotifierItemUnregistered",
		Args: []introspect.Arg{{Name: "service", Type: "s"}},
	},
	{
		Name: "StatusNotifierHostRegistered",
		Args: []introspect.Arg{{Name: "service", Type: "s"}},
	},
}
