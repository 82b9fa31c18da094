// Package trayitem resolves org.kde.StatusNotifierItem services registered
// with the watcher into tray-item snapshots, keeping them up to date as
// properties change.
package trayitem

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/INDIW33D/hyprline/internal/busconn"
	"github.com/INDIW33D/hyprline/internal/busutil"
)

const itemInterface = "org.kde.StatusNotifierItem"

// Status mirrors the three values StatusNotifierItem defines for its
// Status property.
type Status string

const (
	StatusActive         Status = "Active"
	StatusPassive        Status = "Passive"
	StatusNeedsAttention Status = "NeedsAttention"
)

// Pixmap is a single (width, height, ARGB) icon entry as delivered on the
// wire. Bytes are kept exactly as received (ARGB32, big-endian); any
// byte-order transformation for rendering is the caller's responsibility.
type Pixmap struct {
	Width  int32
	Height int32
	Bytes  []byte
}

// TrayItem is a resolved snapshot of a StatusNotifierItem service.
type TrayItem struct {
	Service string // the watcher identifier: "busName" or "busName/objectPath"

	Title         string
	Status        Status
	IconName      string
	IconThemePath string
	IconPixmap    []Pixmap
	MenuPath      dbus.ObjectPath
}

// SelectedIcon applies the icon-selection policy: prefer
// AttentionIconName when the item needs attention, then IconName, then
// the largest-min(w,h) pixmap entry when IconName is empty or the
// generic "application-x-executable" placeholder. It returns the icon
// name to use (possibly empty) and the pixmap to use (nil unless the
// pixmap branch is taken).
func SelectedIcon(status Status, attentionIconName, iconName string, pixmaps []Pixmap) (name string, pixmap *Pixmap) {
	if status == StatusNeedsAttention && attentionIconName != "" {
		return attentionIconName, nil
	}
	if iconName != "" && iconName != "application-x-executable" {
		return iconName, nil
	}
	if best := largestPixmap(pixmaps); best != nil {
		return "", best
	}
	return "", nil
}

// largestPixmap returns a pointer to the entry in pixmaps with the
// largest min(width, height), or nil if pixmaps is empty or every entry
// is zero-sized (a single 0x0 entry is the wire's way of saying "no
// pixmap available").
func largestPixmap(pixmaps []Pixmap) *Pixmap {
	best := -1
	var bestScore int32
	for i, p := range pixmaps {
		if p.Width <= 0 || p.Height <= 0 {
			continue
		}
		if s := minDim(p); best < 0 || s > bestScore {
			best = i
			bestScore = s
		}
	}
	if best < 0 {
		return nil
	}
	out := pixmaps[best]
	return &out
}

func minDim(p Pixmap) int32 {
	if p.Width < p.Height {
		return p.Width
	}
	return p.Height
}

// SplitService splits a watcher identifier into its bus name and object
// path. If no '/' is present, the object path defaults to
// /StatusNotifierItem.
func SplitService(service string) (busName string, objectPath dbus.ObjectPath) {
	idx := strings.Index(service, "/")
	if idx < 0 {
		return service, "/StatusNotifierItem"
	}
	return service[:idx], dbus.ObjectPath(service[idx:])
}

// item tracks one resolved StatusNotifierItem and its signal subscription.
type item struct {
	busName    string
	objectPath dbus.ObjectPath
	object     dbus.BusObject

	mu       sync.RWMutex
	snapshot TrayItem

	signals chan *dbus.Signal
	done    chan struct{}
}

// Resolver maintains a reconciled map of tray items, keyed by the
// watcher's service identifier. It does not listen to the watcher itself;
// the registered set is supplied through Reconcile.
type Resolver struct {
	conn *busconn.Conn

	mu    sync.RWMutex
	items map[string]*item

	onChange func()
}

// New returns a resolver bound to conn. onChange, if non-nil, is called
// (without holding any lock) whenever the reconciled set changes.
func New(conn *busconn.Conn, onChange func()) *Resolver {
	return &Resolver{
		conn:     conn,
		items:    make(map[string]*item),
		onChange: onChange,
	}
}

// Reconcile brings the resolver's map in line with the watcher's current
// registered set: services newly present get an initial fetch, services
// no longer present are dropped.
func (r *Resolver) Reconcile(services []string) {
	want := make(map[string]struct{}, len(services))
	for _, s := range services {
		want[s] = struct{}{}
	}

	r.mu.Lock()
	var toAdd []string
	for s := range want {
		if _, ok := r.items[s]; !ok {
			toAdd = append(toAdd, s)
		}
	}
	var toRemove []string
	for s := range r.items {
		if _, ok := want[s]; !ok {
			toRemove = append(toRemove, s)
		}
	}
	r.mu.Unlock()

	for _, s := range toRemove {
		r.remove(s)
	}
	for _, s := range toAdd {
		r.add(s)
	}
}

// add performs the initial fetch for a newly registered service. Each
// failed property read leaves that field empty; the entry is added even
// when every read fails, and a later Reconcile does not retry it.
func (r *Resolver) add(service string) {
	busName, objectPath := SplitService(service)
	object := r.conn.Raw().Object(busName, objectPath)

	it := &item{
		busName:    busName,
		objectPath: objectPath,
		object:     object,
		signals:    make(chan *dbus.Signal, 32),
		done:       make(chan struct{}),
	}
	it.snapshot.Service = service

	it.refreshAll()

	r.mu.Lock()
	r.items[service] = it
	r.mu.Unlock()

	it.subscribe(r.conn.Raw(), func() {
		r.notify()
	})

	r.notify()
}

// remove drops a service's entry and stops its signal subscription.
func (r *Resolver) remove(service string) {
	r.mu.Lock()
	it, ok := r.items[service]
	if ok {
		delete(r.items, service)
	}
	r.mu.Unlock()

	if ok {
		it.close(r.conn.Raw())
		r.notify()
	}
}

// Snapshot returns a copy of the currently resolved tray items.
func (r *Resolver) Snapshot() []TrayItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TrayItem, 0, len(r.items))
	for _, it := range r.items {
		it.mu.RLock()
		out = append(out, it.snapshot)
		it.mu.RUnlock()
	}
	return out
}

func (r *Resolver) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}

func (it *item) refreshAll() {
	it.updateTitle()
	it.updateStatus()
	it.updateIcon()
	it.updateMenu()
}

func (it *item) updateTitle() {
	v, err := it.object.GetProperty(itemInterface + ".Title")
	if busutil.Shrug(err, "fetch tray item title") {
		return
	}
	if s, ok := v.Value().(string); ok {
		it.mu.Lock()
		it.snapshot.Title = s
		it.mu.Unlock()
	}
}

func (it *item) updateStatus() {
	v, err := it.object.GetProperty(itemInterface + ".Status")
	if busutil.Shrug(err, "fetch tray item status") {
		return
	}
	s, ok := v.Value().(string)
	if !ok {
		return
	}
	it.mu.Lock()
	it.snapshot.Status = Status(s)
	it.mu.Unlock()
}

func (it *item) updateMenu() {
	v, err := it.object.GetProperty(itemInterface + ".Menu")
	if busutil.Shrug(err, "fetch tray item menu path") {
		return
	}
	if p, ok := v.Value().(dbus.ObjectPath); ok {
		it.mu.Lock()
		it.snapshot.MenuPath = p
		it.mu.Unlock()
	}
}

func (it *item) updateIcon() {
	var iconName, attentionIconName, iconThemePath string
	var pixmaps []Pixmap
	var status Status

	if v, err := it.object.GetProperty(itemInterface + ".IconName"); err == nil {
		iconName, _ = v.Value().(string)
	}
	if v, err := it.object.GetProperty(itemInterface + ".AttentionIconName"); err == nil {
		attentionIconName, _ = v.Value().(string)
	}
	if v, err := it.object.GetProperty(itemInterface + ".IconThemePath"); err == nil {
		iconThemePath, _ = v.Value().(string)
	}
	if v, err := it.object.GetProperty(itemInterface + ".IconPixmap"); err == nil {
		pixmaps = decodePixmaps(v.Value())
	}

	it.mu.RLock()
	status = it.snapshot.Status
	it.mu.RUnlock()

	selectedName, selectedPixmap := SelectedIcon(status, attentionIconName, iconName, pixmaps)

	it.mu.Lock()
	it.snapshot.IconName = selectedName
	it.snapshot.IconThemePath = iconThemePath
	if selectedPixmap != nil {
		it.snapshot.IconPixmap = []Pixmap{*selectedPixmap}
	} else {
		it.snapshot.IconPixmap = nil
	}
	it.mu.Unlock()
}

// decodePixmaps converts the IconPixmap property's wire value, a(iiay),
// into []Pixmap. Malformed entries are skipped.
func decodePixmaps(raw any) []Pixmap {
	entries, ok := raw.([][]any)
	if !ok {
		// godbus commonly delivers this as []any of structs instead.
		asAny, ok2 := raw.([]any)
		if !ok2 {
			return nil
		}
		out := make([]Pixmap, 0, len(asAny))
		for _, e := range asAny {
			if p, ok := decodeOnePixmap(e); ok {
				out = append(out, p)
			}
		}
		return out
	}

	out := make([]Pixmap, 0, len(entries))
	for _, e := range entries {
		if p, ok := decodeOnePixmapSlice(e); ok {
			out = append(out, p)
		}
	}
	return out
}

func decodeOnePixmap(raw any) (Pixmap, bool) {
	tuple, ok := raw.([]any)
	if !ok {
		return Pixmap{}, false
	}
	return decodeOnePixmapSlice(tuple)
}

func decodeOnePixmapSlice(tuple []any) (Pixmap, bool) {
	if len(tuple) != 3 {
		return Pixmap{}, false
	}
	w, ok1 := tuple[0].(int32)
	h, ok2 := tuple[1].(int32)
	b, ok3 := tuple[2].([]byte)
	if !ok1 || !ok2 || !ok3 {
		return Pixmap{}, false
	}
	return Pixmap{Width: w, Height: h, Bytes: b}, true
}

// subscribe starts the per-item signal goroutine that re-fetches
// individual fields as NewTitle/NewStatus/NewIcon/NewAttentionIcon/
// NewOverlayIcon arrive.
func (it *item) subscribe(conn *dbus.Conn, onUpdate func()) {
	for _, member := range []string{"NewTitle", "NewStatus", "NewIcon", "NewAttentionIcon", "NewOverlayIcon"} {
		conn.AddMatchSignal(
			dbus.WithMatchInterface(itemInterface),
			dbus.WithMatchMember(member),
			dbus.WithMatchSender(it.busName),
		)
	}
	conn.Signal(it.signals)

	go func() {
		for {
			select {
			case <-it.done:
				return
			case sig, ok := <-it.signals:
				if !ok {
					return
				}
				if sig.Sender != it.busName {
					continue
				}
				switch sig.Name {
				case itemInterface + ".NewTitle":
					it.updateTitle()
				case itemInterface + ".NewStatus":
					it.updateStatus()
				case itemInterface + ".NewIcon", itemInterface + ".NewAttentionIcon", itemInterface + ".NewOverlayIcon":
					it.updateIcon()
				default:
					continue
				}
				onUpdate()
			}
		}
	}()
}

func (it *item) close(conn *dbus.Conn) {
	close(it.done)
	for _, member := range []string{"NewTitle", "NewStatus", "NewIcon", "NewAttentionIcon", "NewOverlayIcon"} {
		conn.RemoveMatchSignal(
			dbus.WithMatchInterface(itemInterface),
			dbus.WithMatchMember(member),
			dbus.WithMatchSender(it.busName),
		)
	}
	conn.RemoveSignal(it.signals)
	close(it.signals)
	slog.Debug("tray item evicted", "service", it.snapshot.Service)
}
