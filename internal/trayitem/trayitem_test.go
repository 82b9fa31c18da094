package trayitem

import (
	"bytes"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestSplitService(t *testing.T) {
	tests := []struct {
		service        string
		wantBus        string
		wantObjectPath dbus.ObjectPath
	}{
		{":1.50", ":1.50", "/StatusNotifierItem"},
		{"org.example.Tray", "org.example.Tray", "/StatusNotifierItem"},
		{":1.50/org/ayatana/NotificationItem/app", ":1.50", "/org/ayatana/NotificationItem/app"},
	}

	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			bus, path := SplitService(tt.service)
			if bus != tt.wantBus {
				t.Errorf("bus = %q, want %q", bus, tt.wantBus)
			}
			if path != tt.wantObjectPath {
				t.Errorf("path = %q, want %q", path, tt.wantObjectPath)
			}
		})
	}
}

func TestSelectedIcon(t *testing.T) {
	pixmaps := []Pixmap{
		{Width: 16, Height: 16, Bytes: []byte{1}},
		{Width: 32, Height: 32, Bytes: []byte{2}},
		{Width: 48, Height: 24, Bytes: []byte{3}},
	}

	tests := []struct {
		name              string
		status            Status
		attentionIconName string
		iconName          string
		pixmaps           []Pixmap
		wantName          string
		wantPixmap        *Pixmap
	}{
		{
			name:              "needs attention uses attention icon",
			status:            StatusNeedsAttention,
			attentionIconName: "app-urgent",
			iconName:          "app-normal",
			wantName:          "app-urgent",
		},
		{
			name:     "icon name wins when present",
			status:   StatusActive,
			iconName: "app-icon",
			wantName: "app-icon",
		},
		{
			name:     "empty icon name falls back to pixmap",
			status:   StatusActive,
			iconName: "",
			pixmaps:  pixmaps,
			wantPixmap: &Pixmap{
				Width: 32, Height: 32, Bytes: []byte{2},
			},
		},
		{
			name:     "generic placeholder falls back to pixmap",
			status:   StatusActive,
			iconName: "application-x-executable",
			pixmaps:  pixmaps,
			wantPixmap: &Pixmap{
				Width: 32, Height: 32, Bytes: []byte{2},
			},
		},
		{
			name:   "nothing available leaves icon empty",
			status: StatusActive,
		},
		{
			name:              "needs attention but no attention icon falls through",
			status:            StatusNeedsAttention,
			attentionIconName: "",
			iconName:          "app-normal",
			wantName:          "app-normal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotName, gotPixmap := SelectedIcon(tt.status, tt.attentionIconName, tt.iconName, tt.pixmaps)
			if gotName != tt.wantName {
				t.Errorf("name = %q, want %q", gotName, tt.wantName)
			}
			switch {
			case tt.wantPixmap == nil && gotPixmap != nil:
				t.Errorf("pixmap = %+v, want nil", gotPixmap)
			case tt.wantPixmap != nil && gotPixmap == nil:
				t.Errorf("pixmap = nil, want %+v", tt.wantPixmap)
			case tt.wantPixmap != nil && gotPixmap != nil:
				if gotPixmap.Width != tt.wantPixmap.Width || gotPixmap.Height != tt.wantPixmap.Height || !bytes.Equal(gotPixmap.Bytes, tt.wantPixmap.Bytes) {
					t.Errorf("pixmap = %+v, want %+v", gotPixmap, tt.wantPixmap)
				}
			}
		})
	}
}

func TestLargestPixmapTiebreakOnMinDimension(t *testing.T) {
	// A 48x10 pixmap has min(48,10)=10, smaller than a 20x20's min=20,
	// even though 48x10 has more total area.
	pixmaps := []Pixmap{
		{Width: 48, Height: 10},
		{Width: 20, Height: 20},
	}
	got := largestPixmap(pixmaps)
	if got == nil || got.Width != 20 {
		t.Errorf("largestPixmap() = %+v, want the 20x20 entry", got)
	}
}

func TestLargestPixmapEmpty(t *testing.T) {
	if got := largestPixmap(nil); got != nil {
		t.Errorf("largestPixmap(nil) = %+v, want nil", got)
	}
}

func TestLargestPixmapSingleZeroSizeIsNoPixmap(t *testing.T) {
	pixmaps := []Pixmap{{Width: 0, Height: 0, Bytes: nil}}
	if got := largestPixmap(pixmaps); got != nil {
		t.Errorf("largestPixmap() = %+v, want nil for a single 0x0 entry", got)
	}
}

func TestDecodePixmapsStructSlice(t *testing.T) {
	raw := []any{
		[]any{int32(16), int32(16), []byte{0xAA, 0xBB}},
		[]any{int32(32), int32(32), []byte{0xCC, 0xDD}},
	}
	got := decodePixmaps(raw)
	if len(got) != 2 {
		t.Fatalf("decodePixmaps() returned %d entries, want 2", len(got))
	}
	if got[0].Width != 16 || got[1].Width != 32 {
		t.Errorf("decodePixmaps() = %+v", got)
	}
}

func TestDecodePixmapsMalformedEntrySkipped(t *testing.T) {
	raw := []any{
		[]any{int32(16), int32(16), []byte{0xAA}},
		"not a tuple",
		[]any{int32(1)}, // wrong length
	}
	got := decodePixmaps(raw)
	if len(got) != 1 {
		t.Fatalf("decodePixmaps() returned %d entries, want 1", len(got))
	}
}
