package dbusmenu

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestStripMnemonic(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"_Open", "Open"},
		{"Save _As", "Save As"},
		{"File__Name", "File_Name"},
		{"No mnemonic", "No mnemonic"},
		{"_", ""},
		{"__", "_"},
		{"___", "_"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := stripMnemonic(tt.input); got != tt.want {
				t.Errorf("stripMnemonic(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func variantMap(m map[string]any) map[string]dbus.Variant {
	out := make(map[string]dbus.Variant, len(m))
	for k, v := range m {
		out[k] = dbus.MakeVariant(v)
	}
	return out
}

func TestParseNodeDefaults(t *testing.T) {
	raw := []any{
		int32(1),
		variantMap(map[string]any{}),
		[]dbus.Variant{},
	}

	node, err := parseNode(raw)
	if err != nil {
		t.Fatalf("parseNode() error = %v", err)
	}
	if !node.Enabled || !node.Visible {
		t.Errorf("defaults: Enabled=%v Visible=%v, want both true", node.Enabled, node.Visible)
	}
	if node.ToggleState != ToggleIndeterminate {
		t.Errorf("default ToggleState = %v, want %v", node.ToggleState, ToggleIndeterminate)
	}
	if node.Separator {
		t.Errorf("default Separator = true, want false")
	}
}

func TestParseNodeFullProperties(t *testing.T) {
	raw := []any{
		int32(7),
		variantMap(map[string]any{
			"label":        "_Enable Sound",
			"enabled":      false,
			"visible":      true,
			"type":         "separator",
			"toggle-type":  "checkmark",
			"toggle-state": int32(1),
			"icon-name":    "audio-volume-high",
			"icon-data":    []byte{0x89, 0x50},
		}),
		[]dbus.Variant{},
	}

	node, err := parseNode(raw)
	if err != nil {
		t.Fatalf("parseNode() error = %v", err)
	}
	if node.Label != "Enable Sound" {
		t.Errorf("Label = %q, want %q", node.Label, "Enable Sound")
	}
	if node.Enabled {
		t.Errorf("Enabled = true, want false")
	}
	if !node.Separator {
		t.Errorf("Separator = false, want true")
	}
	if node.ToggleType != "checkmark" {
		t.Errorf("ToggleType = %q, want %q", node.ToggleType, "checkmark")
	}
	if node.ToggleState != ToggleOn {
		t.Errorf("ToggleState = %v, want %v", node.ToggleState, ToggleOn)
	}
	if node.IconName != "audio-volume-high" {
		t.Errorf("IconName = %q, want %q", node.IconName, "audio-volume-high")
	}
}

func TestParseNodeRecursesChildren(t *testing.T) {
	child := []any{
		int32(2),
		variantMap(map[string]any{"label": "Child"}),
		[]dbus.Variant{},
	}
	root := []any{
		int32(1),
		variantMap(map[string]any{"label": "Root"}),
		[]dbus.Variant{dbus.MakeVariant(child)},
	}

	node, err := parseNode(root)
	if err != nil {
		t.Fatalf("parseNode() error = %v", err)
	}
	if len(node.Children) != 1 {
		t.Fatalf("Children len = %d, want 1", len(node.Children))
	}
	if node.Children[0].Label != "Child" {
		t.Errorf("Children[0].Label = %q, want %q", node.Children[0].Label, "Child")
	}
}

func TestParseNodeFiltersInvisibleChildren(t *testing.T) {
	visible := []any{
		int32(2),
		variantMap(map[string]any{"label": "Visible"}),
		[]dbus.Variant{},
	}
	hidden := []any{
		int32(3),
		variantMap(map[string]any{"label": "Hidden", "visible": false}),
		[]dbus.Variant{},
	}
	root := []any{
		int32(1),
		variantMap(map[string]any{}),
		[]dbus.Variant{dbus.MakeVariant(visible), dbus.MakeVariant(hidden)},
	}

	node, err := parseNode(root)
	if err != nil {
		t.Fatalf("parseNode() error = %v", err)
	}
	if len(node.Children) != 1 {
		t.Fatalf("Children len = %d, want 1 (invisible child filtered out)", len(node.Children))
	}
	if node.Children[0].Label != "Visible" {
		t.Errorf("Children[0].Label = %q, want %q", node.Children[0].Label, "Visible")
	}
}

func TestParseNodeSkipsMalformedChild(t *testing.T) {
	root := []any{
		int32(1),
		variantMap(map[string]any{}),
		[]dbus.Variant{dbus.MakeVariant("not a node")},
	}

	node, err := parseNode(root)
	if err != nil {
		t.Fatalf("parseNode() error = %v", err)
	}
	if len(node.Children) != 0 {
		t.Errorf("Children len = %d, want 0", len(node.Children))
	}
}

func TestParseNodeInvalidShape(t *testing.T) {
	if _, err := parseNode([]any{int32(1)}); err == nil {
		t.Fatal("expected error for short tuple")
	}
	if _, err := parseNode("not a tuple"); err == nil {
		t.Fatal("expected error for non-tuple input")
	}
}
