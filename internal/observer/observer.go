// Package observer is the process-wide broker collectors publish into and
// consumers subscribe to: one slot per observed domain (tray, battery,
// volume, brightness, keyboard layout, network, system resources,
// notification count).
package observer

import "sync"

// Slot holds the latest snapshot of a value of type T plus the list of
// subscribers to notify when it changes. The snapshot is guarded by its
// own RWMutex; the subscriber list by a separate Mutex, so a callback
// that reads its own slot's Get() does not deadlock against the writer
// that invoked it.
type Slot[T any] struct {
	mu    sync.RWMutex
	value T

	subsMu sync.Mutex
	subs   []func()
}

// NewSlot returns a Slot initialized to the zero value of T.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{}
}

// Get returns the current snapshot.
func (s *Slot[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the snapshot and fires every subscriber callback after the
// snapshot lock has been released, so a callback may safely call Get() on
// this same slot.
func (s *Slot[T]) Set(v T) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()

	s.subsMu.Lock()
	callbacks := make([]func(), len(s.subs))
	copy(callbacks, s.subs)
	s.subsMu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Subscribe registers a parameter-less callback invoked on the same
// goroutine that calls Set, after the new value has been stored.
// Unsubscription is not supported; callbacks live for the process
// lifetime.
func (s *Slot[T]) Subscribe(cb func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs = append(s.subs, cb)
}

// BatteryState mirrors the UPower device-state values the battery
// collector maps onto.
type BatteryState int

const (
	BatteryUnknown BatteryState = iota
	BatteryCharging
	BatteryDischarging
	BatteryFull
	BatteryNotCharging
)

// BatteryInfo is the battery domain's snapshot shape.
type BatteryInfo struct {
	Percentage  int
	State       BatteryState
	TimeToEmpty int // minutes, 0 if not positive/unknown
	TimeToFull  int // minutes, 0 if not positive/unknown
}

// VolumeInfo is the volume domain's snapshot shape.
type VolumeInfo struct {
	Percentage int
	Muted      bool
}

// NetworkInfo is the network domain's snapshot shape.
type NetworkInfo struct {
	Connected      bool
	ConnectionName string
	ConnectionType string
}

// SysResourcesInfo is the aggregate CPU/memory sample the sysresources
// collector writes.
type SysResourcesInfo struct {
	CPUPercent    float64
	MemUsedBytes  uint64
	MemTotalBytes uint64
}

// KeyboardLayoutInfo is the keyboard-layout domain's snapshot shape.
type KeyboardLayoutInfo struct {
	Device string
	Layout string
}

// Hub bundles one Slot per observed domain. It is constructed explicitly
// (rather than held as a package-level singleton) so tests can build
// isolated instances and so ownership is visible at every call site.
type Hub struct {
	tray              *Slot[[]TrayItemSnapshot]
	notificationCount *Slot[uint32]
	battery           *Slot[BatteryInfo]
	volume            *Slot[VolumeInfo]
	brightness        *Slot[int]
	keyboardLayout    *Slot[KeyboardLayoutInfo]
	network           *Slot[NetworkInfo]
	sysResources      *Slot[SysResourcesInfo]
}

// TrayItemSnapshot is the observer-facing projection of a resolved tray
// item; kept independent from internal/trayitem's richer type so the hub
// does not force an import cycle on every collector.
type TrayItemSnapshot struct {
	Service  string
	Title    string
	Status   string
	IconName string
}

// NewHub constructs a Hub with all slots ready to use.
func NewHub() *Hub {
	return &Hub{
		tray:              NewSlot[[]TrayItemSnapshot](),
		notificationCount: NewSlot[uint32](),
		battery:           NewSlot[BatteryInfo](),
		volume:            NewSlot[VolumeInfo](),
		brightness:        NewSlot[int](),
		keyboardLayout:    NewSlot[KeyboardLayoutInfo](),
		network:           NewSlot[NetworkInfo](),
		sysResources:      NewSlot[SysResourcesInfo](),
	}
}

func (h *Hub) Tray() *Slot[[]TrayItemSnapshot]           { return h.tray }
func (h *Hub) NotificationCount() *Slot[uint32]          { return h.notificationCount }
func (h *Hub) Battery() *Slot[BatteryInfo]               { return h.battery }
func (h *Hub) Volume() *Slot[VolumeInfo]                 { return h.volume }
func (h *Hub) Brightness() *Slot[int]                    { return h.brightness }
func (h *Hub) KeyboardLayout() *Slot[KeyboardLayoutInfo] { return h.keyboardLayout }
func (h *Hub) Network() *Slot[NetworkInfo]               { return h.network }
func (h *Hub) SysResources() *Slot[SysResourcesInfo]     { return h.sysResources }

// MapUPowerState maps the UPower Device.State enum onto BatteryState per
// {1: Charging, 2/3: Discharging, 4: Full, 5/6: NotCharging, else: Unknown}.
func MapUPowerState(state uint32) BatteryState {
	switch state {
	case 1:
		return BatteryCharging
	case 2, 3:
		return BatteryDischarging
	case 4:
		return BatteryFull
	case 5, 6:
		return BatteryNotCharging
	default:
		return BatteryUnknown
	}
}
