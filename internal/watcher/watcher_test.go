package watcher

import "testing"

func TestOwnerSegment(t *testing.T) {
	tests := []struct {
		identifier string
		want       string
	}{
		{":1.50/StatusNotifierItem", ":1.50"},
		{"org.example.Tray/StatusNotifierItem", "org.example.Tray"},
		{"org.example.Tray", "org.example.Tray"},
		{":1.50", ":1.50"},
	}

	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			if got := ownerSegment(tt.identifier); got != tt.want {
				t.Errorf("ownerSegment(%q) = %q, want %q", tt.identifier, got, tt.want)
			}
		})
	}
}

// TestOwnerSegmentDoesNotLoosePrefixMatch guards the exact bug the
// original bus-name-prefix matching had: a NameOwnerChanged for
// "org.example.Tray" must never evict an item owned by
// "org.example.Tray2", even though strings.HasPrefix would say it does.
func TestOwnerSegmentDoesNotLoosePrefixMatch(t *testing.T) {
	item := "org.example.Tray2/StatusNotifierItem"
	if ownerSegment(item) == "org.example.Tray" {
		t.Fatalf("ownerSegment(%q) incorrectly matched %q", item, "org.example.Tray")
	}
}

