// Package brightness writes the observer hub's brightness slot from a
// vendor backlight D-Bus service exposing GetBrightness/SetBrightness and
// a BrightnessChanged signal, values normalized 0.0-1.0 on the wire.
package brightness

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/INDIW33D/hyprline/internal/busutil"
	"github.com/INDIW33D/hyprline/internal/observer"
)

const (
	ServiceName = "org.lumen.Brightness"
	ObjectPath  = dbus.ObjectPath("/org/lumen/Brightness")
	Iface       = "org.lumen.Brightness"
)

// Collector keeps observer's brightness slot (0-100) current from the
// vendor brightness service's BrightnessChanged signal.
type Collector struct {
	conn *dbus.Conn
	slot *observer.Slot[int]

	signals chan *dbus.Signal
	done    chan struct{}
}

// New returns a collector bound to conn, publishing into slot.
func New(conn *dbus.Conn, slot *observer.Slot[int]) *Collector {
	return &Collector{conn: conn, slot: slot}
}

// Start fetches the current brightness and subscribes to BrightnessChanged.
func (c *Collector) Start(ctx context.Context) error {
	if pct, err := GetBrightness(c.conn); err == nil {
		c.slot.Set(pct)
	}

	if err := c.conn.AddMatchSignal(
		dbus.WithMatchInterface(Iface),
		dbus.WithMatchMember("BrightnessChanged"),
		dbus.WithMatchObjectPath(ObjectPath),
	); err != nil {
		return fmt.Errorf("watch brightness changes: %w", err)
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
			if sig.Name != Iface+".BrightnessChanged" || len(sig.Body) < 1 {
				continue
			}
			value, ok := sig.Body[0].(float64)
			if !ok {
				continue
			}
			c.slot.Set(NormalizeBrightness(value))
		}
	}
}

// Stop unsubscribes from brightness signals.
func (c *Collector) Stop() {
	if c.done == nil {
		return
	}
	close(c.done)
	c.conn.RemoveSignal(c.signals)
}

// GetBrightness calls GetBrightness on the vendor service and normalizes
// the 0.0-1.0 result to a 0-100 percentage.
func GetBrightness(conn *dbus.Conn) (int, error) {
	obj := conn.Object(ServiceName, ObjectPath)
	var value float64
	if err := obj.Call(Iface+".GetBrightness", 0).Store(&value); err != nil {
		return 0, fmt.Errorf("GetBrightness: %w", err)
	}
	return NormalizeBrightness(value), nil
}

// SetBrightness sets brightness to pct (0-100), converting to the 0.0-1.0
// wire representation.
func SetBrightness(conn *dbus.Conn, pct int) error {
	obj := conn.Object(ServiceName, ObjectPath)
	value := float64(pct) / 100.0
	call := obj.Call(Iface+".SetBrightness", 0, value)
	if busutil.Shrug(call.Err, "set brightness") {
		return call.Err
	}
	return nil
}

// NormalizeBrightness converts the wire's 0.0-1.0 fraction to a rounded
// 0-100 percentage.
func NormalizeBrightness(fraction float64) int {
	pct := int(fraction*100 + 0.5)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}
