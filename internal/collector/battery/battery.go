// Package battery writes observer.BatteryInfo snapshots sourced from
// UPower, the freedesktop power-management service.
package battery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/INDIW33D/hyprline/internal/busutil"
	"github.com/INDIW33D/hyprline/internal/observer"
)

const (
	serviceName    = "org.freedesktop.UPower"
	managerPath    = dbus.ObjectPath("/org/freedesktop/UPower")
	managerIface   = "org.freedesktop.UPower"
	deviceIface    = "org.freedesktop.UPower.Device"
	deviceTypeBatt = uint32(2)
)

// Collector watches the first UPower device of type Battery and keeps a
// Slot up to date with its percentage, charge state, and time estimates.
type Collector struct {
	conn *dbus.Conn
	slot *observer.Slot[observer.BatteryInfo]

	devicePath dbus.ObjectPath
	signals    chan *dbus.Signal
	done       chan struct{}
}

// New returns a collector bound to conn, publishing into slot.
func New(conn *dbus.Conn, slot *observer.Slot[observer.BatteryInfo]) *Collector {
	return &Collector{
		conn: conn,
		slot: slot,
	}
}

// Start locates the battery device, publishes its initial snapshot, and
// subscribes to PropertiesChanged to keep the slot current. It returns an
// error only if no battery device could be found; once running, peer
// failures are logged and narrowed to "no update" rather than propagated.
func (c *Collector) Start(ctx context.Context) error {
	path, err := FindBatteryDevice(c.conn)
	if err != nil {
		return fmt.Errorf("find battery device: %w", err)
	}
	c.devicePath = path

	if info, err := FetchInfo(c.conn, path); err == nil {
		c.slot.Set(info)
	} else {
		slog.Debug("initial battery fetch failed", "error", err)
	}

	if err := c.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(path),
	); err != nil {
		return fmt.Errorf("watch battery properties: %w", err)
	}

	c.signals = make(chan *dbus.Signal, 8)
	c.done = make(chan struct{})
	c.conn.Signal(c.signals)

	go c.loop(ctx)
	return nil
}

func (c *Collector) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case sig, ok := <-c.signals:
			if !ok {
				return
			}
			if sig.Path != c.devicePath {
				continue
			}
			info, err := FetchInfo(c.conn, c.devicePath)
			if busutil.Shrug(err, "refetch battery info") {
				continue
			}
			c.slot.Set(info)
		}
	}
}

// Stop unsubscribes from battery signals. The collector cannot be
// restarted afterward.
func (c *Collector) Stop() {
	if c.done == nil {
		return
	}
	close(c.done)
	c.conn.RemoveSignal(c.signals)
}

// FindBatteryDevice enumerates UPower devices and returns the path of the
// first one whose Type property equals 2 (battery).
func FindBatteryDevice(conn *dbus.Conn) (dbus.ObjectPath, error) {
	manager := conn.Object(serviceName, managerPath)

	var devices []dbus.ObjectPath
	if err := manager.Call(managerIface+".EnumerateDevices", 0).Store(&devices); err != nil {
		return "", fmt.Errorf("enumerate UPower devices: %w", err)
	}

	for _, path := range devices {
		obj := conn.Object(serviceName, path)
		v, err := obj.GetProperty(deviceIface + ".Type")
		if err != nil {
			continue
		}
		deviceType, ok := v.Value().(uint32)
		if !ok || deviceType != deviceTypeBatt {
			continue
		}
		return path, nil
	}

	return "", fmt.Errorf("no UPower device of type battery found")
}

// FetchInfo reads Percentage/State/TimeToEmpty/TimeToFull off the battery
// device at path and maps them onto observer.BatteryInfo.
func FetchInfo(conn *dbus.Conn, path dbus.ObjectPath) (observer.BatteryInfo, error) {
	obj := conn.Object(serviceName, path)

	pctVariant, err := obj.GetProperty(deviceIface + ".Percentage")
	if err != nil {
		return observer.BatteryInfo{}, fmt.Errorf("read Percentage: %w", err)
	}
	pct, ok := pctVariant.Value().(float64)
	if !ok {
		return observer.BatteryInfo{}, fmt.Errorf("Percentage: unexpected type %T", pctVariant.Value())
	}

	stateVariant, err := obj.GetProperty(deviceIface + ".State")
	if err != nil {
		return observer.BatteryInfo{}, fmt.Errorf("read State: %w", err)
	}
	state, _ := stateVariant.Value().(uint32)

	info := observer.BatteryInfo{
		Percentage: roundPercentage(pct),
		State:      observer.MapUPowerState(state),
	}

	if v, err := obj.GetProperty(deviceIface + ".TimeToEmpty"); err == nil {
		if secs, ok := toInt64(v.Value()); ok && secs > 0 {
			info.TimeToEmpty = int(secs / 60)
		}
	}
	if v, err := obj.GetProperty(deviceIface + ".TimeToFull"); err == nil {
		if secs, ok := toInt64(v.Value()); ok && secs > 0 {
			info.TimeToFull = int(secs / 60)
		}
	}

	return info, nil
}

func roundPercentage(pct float64) int {
	rounded := int(pct + 0.5)
	if rounded > 100 {
		rounded = 100
	}
	if rounded < 0 {
		rounded = 0
	}
	return rounded
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), true
	default:
		return 0, false
	}
}
