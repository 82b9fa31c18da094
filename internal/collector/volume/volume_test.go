package volume

import (
	"context"
	"testing"
	"time"

	"github.com/INDIW33D/hyprline/internal/observer"
)

func TestParseVolumeOutput(t *testing.T) {
	tests := []struct {
		input   string
		want    observer.VolumeInfo
		wantOk  bool
		comment string
	}{
		{"Volume: 0.45\n", observer.VolumeInfo{Percentage: 45, Muted: false}, true, "plain"},
		{"Volume: 0.45 [MUTED]\n", observer.VolumeInfo{Percentage: 45, Muted: true}, true, "muted"},
		{"Volume: 1.00\n", observer.VolumeInfo{Percentage: 100, Muted: false}, true, "full"},
		{"garbage", observer.VolumeInfo{}, false, "malformed"},
		{"", observer.VolumeInfo{}, false, "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.comment, func(t *testing.T) {
			got, ok := ParseVolumeOutput(tt.input)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && got != tt.want {
				t.Errorf("ParseVolumeOutput(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCollectorSkipsDuplicateWrites(t *testing.T) {
	slot := observer.NewSlot[observer.VolumeInfo]()
	var setCount int
	slot.Subscribe(func() { setCount++ })

	calls := 0
	c := &Collector{
		slot: slot,
		probe: func() (string, error) {
			calls++
			return "Volume: 0.50\n", nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx, time.Hour)
	defer c.Stop()

	c.poll()
	c.poll()

	if setCount != 1 {
		t.Errorf("slot.Set called %d times, want 1 (second poll should be a no-op diff)", setCount)
	}
	if calls < 3 {
		t.Errorf("probe called %d times, want at least 3 (initial Start poll + two manual polls)", calls)
	}
}
