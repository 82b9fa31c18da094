// Package volume writes observer.VolumeInfo snapshots by periodically
// probing the default PipeWire sink through wpctl's command-line output.
package volume

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/INDIW33D/hyprline/internal/observer"
)

const defaultSink = "@DEFAULT_AUDIO_SINK@"

// Prober runs the volume probe command and returns its raw stdout.
// Production code uses runWpctl; tests substitute a fake.
type Prober func() (string, error)

// Collector polls a Prober on a ticker and writes diffed VolumeInfo
// snapshots into slot.
type Collector struct {
	slot   *observer.Slot[observer.VolumeInfo]
	probe  Prober
	ticker *time.Ticker
	done   chan struct{}
}

// New returns a collector bound to slot, using wpctl as the default prober.
func New(slot *observer.Slot[observer.VolumeInfo]) *Collector {
	return &Collector{slot: slot, probe: runWpctl}
}

// Start polls the prober every interval, writing to the slot only when the
// parsed value differs from the cached snapshot (spec's "diff check ensures
// no spurious notification").
func (c *Collector) Start(ctx context.Context, interval time.Duration) {
	c.ticker = time.NewTicker(interval)
	c.done = make(chan struct{})

	c.poll()

	go func() {
		defer c.ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-c.ticker.C:
				c.poll()
			}
		}
	}()
}

// Stop ends the polling goroutine. The collector cannot be restarted.
func (c *Collector) Stop() {
	if c.done != nil {
		close(c.done)
	}
}

func (c *Collector) poll() {
	output, err := c.probe()
	if err != nil {
		return
	}
	info, ok := ParseVolumeOutput(output)
	if !ok {
		return
	}
	if info != c.slot.Get() {
		c.slot.Set(info)
	}
}

func runWpctl() (string, error) {
	out, err := exec.Command("wpctl", "get-volume", defaultSink).Output()
	return string(out), err
}

// ParseVolumeOutput parses wpctl's "Volume: <float>[ [MUTED]]" format into
// a VolumeInfo. The float is a 0.0-1.0 fraction, converted to a rounded
// 0-100 percentage.
func ParseVolumeOutput(output string) (observer.VolumeInfo, bool) {
	fields := strings.Fields(output)
	if len(fields) < 2 {
		return observer.VolumeInfo{}, false
	}

	fraction, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return observer.VolumeInfo{}, false
	}

	return observer.VolumeInfo{
		Percentage: int(fraction*100 + 0.5),
		Muted:      strings.Contains(output, "[MUTED]"),
	}, true
}
