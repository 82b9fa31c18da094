// Package network writes the observer hub's network slot by periodically
// probing NetworkManager's primary connection over D-Bus.
package network

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/INDIW33D/hyprline/internal/observer"
)

const (
	serviceName  = "org.freedesktop.NetworkManager"
	managerPath  = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	managerIface = "org.freedesktop.NetworkManager"
	activeIface  = managerIface + ".Connection.Active"
	deviceIface  = managerIface + ".Device"
	wirelessIface = managerIface + ".Device.Wireless"
	apIface      = managerIface + ".AccessPoint"

	// NM_STATE_CONNECTED_LOCAL / NM_STATE_CONNECTED_GLOBAL.
	stateConnectedLocal  = 60
	stateConnectedGlobal = 70
)

// Collector polls NetworkManager on a ticker and writes diffed
// NetworkInfo snapshots into slot.
type Collector struct {
	conn *dbus.Conn
	slot *observer.Slot[observer.NetworkInfo]

	done chan struct{}
}

// New returns a collector bound to conn, publishing into slot.
func New(conn *dbus.Conn, slot *observer.Slot[observer.NetworkInfo]) *Collector {
	return &Collector{conn: conn, slot: slot}
}

// Start polls the primary connection every interval, writing to the slot
// only when the result differs from the cached snapshot.
func (c *Collector) Start(ctx context.Context, interval time.Duration) {
	c.done = make(chan struct{})
	c.poll()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-ticker.C:
				c.poll()
			}
		}
	}()
}

// Stop ends the polling goroutine.
func (c *Collector) Stop() {
	if c.done != nil {
		close(c.done)
	}
}

func (c *Collector) poll() {
	info, ok := FetchPrimaryConnection(c.conn)
	if !ok {
		return
	}
	if info != c.slot.Get() {
		c.slot.Set(info)
	}
}

// FetchPrimaryConnection reads NetworkManager's State and
// PrimaryConnection properties and, if connected, the active connection's
// type, device, and (for Wi-Fi) SSID. ok is false on any D-Bus failure.
func FetchPrimaryConnection(conn *dbus.Conn) (observer.NetworkInfo, bool) {
	manager := conn.Object(serviceName, managerPath)

	stateVariant, err := manager.GetProperty(managerIface + ".State")
	if err != nil {
		return observer.NetworkInfo{}, false
	}
	state, _ := stateVariant.Value().(uint32)
	if state != stateConnectedLocal && state != stateConnectedGlobal {
		return observer.NetworkInfo{Connected: false}, true
	}

	primaryVariant, err := manager.GetProperty(managerIface + ".PrimaryConnection")
	if err != nil {
		return observer.NetworkInfo{}, false
	}
	primary, _ := primaryVariant.Value().(dbus.ObjectPath)
	if primary == "" || primary == "/" {
		return observer.NetworkInfo{Connected: false}, true
	}

	active := conn.Object(serviceName, primary)
	typeVariant, err := active.GetProperty(activeIface + ".Type")
	if err != nil {
		return observer.NetworkInfo{}, false
	}
	connType, _ := typeVariant.Value().(string)

	info := observer.NetworkInfo{Connected: true, ConnectionType: connType}

	switch connType {
	case "802-11-wireless":
		if ssid, ok := fetchSSID(conn, active); ok {
			info.ConnectionName = ssid
		}
	case "802-3-ethernet":
		info.ConnectionName = connType
	}

	return info, true
}

func fetchSSID(conn *dbus.Conn, active dbus.BusObject) (string, bool) {
	devicesVariant, err := active.GetProperty(activeIface + ".Devices")
	if err != nil {
		return "", false
	}
	devices, ok := devicesVariant.Value().([]dbus.ObjectPath)
	if !ok || len(devices) == 0 {
		return "", false
	}

	wifi := conn.Object(serviceName, devices[0])
	apVariant, err := wifi.GetProperty(wirelessIface + ".ActiveAccessPoint")
	if err != nil {
		return "", false
	}
	ap, ok := apVariant.Value().(dbus.ObjectPath)
	if !ok || ap == "" || ap == "/" {
		return "", false
	}

	ssidVariant, err := conn.Object(serviceName, ap).GetProperty(apIface + ".Ssid")
	if err != nil {
		return "", false
	}
	ssidBytes, ok := ssidVariant.Value().([]byte)
	if !ok {
		return "", false
	}
	return string(ssidBytes), true
}
