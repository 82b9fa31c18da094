// Package dbusmenu implements a client for com.canonical.dbusmenu, fetching
// and parsing the recursive menu-layout tree tray items expose.
package dbusmenu

import (
	"log/slog"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	InterfaceName = "com.canonical.dbusmenu"

	toggleCheckmark = "checkmark"
	toggleRadio     = "radio"
)

// ToggleState mirrors the three-valued toggle-state property.
type ToggleState int32

const (
	ToggleIndeterminate ToggleState = -1
	ToggleOff           ToggleState = 0
	ToggleOn            ToggleState = 1
)

// Node is one parsed menu entry. Children is ordered and owns its own
// subtree; there are no parent pointers, so a Node can be handed to a
// renderer without aliasing concerns.
type Node struct {
	ID          int32
	Label       string
	Enabled     bool
	Visible     bool
	Separator   bool
	ToggleType  string // "" (none), "checkmark", or "radio"
	ToggleState ToggleState
	IconName    string
	IconData    []byte
	Children    []*Node
}

// Client fetches and activates menus exposed at a given bus name and
// object path.
type Client struct {
	conn *dbus.Conn
}

// New returns a dbusmenu client bound to conn.
func New(conn *dbus.Conn) *Client {
	return &Client{conn: conn}
}

// FetchMenu calls GetLayout(0, -1, []) against busName/objectPath and
// parses the result into a Node tree. It always returns a (possibly nil)
// tree rather than an error: a failed or malformed call is logged and
// treated as "no menu available", per the component's result-delivery
// contract.
func (c *Client) FetchMenu(busName string, objectPath dbus.ObjectPath) *Node {
	obj := c.conn.Object(busName, objectPath)

	call := obj.Call(InterfaceName+".GetLayout", 0, int32(0), int32(-1), []string{})
	if call.Err != nil {
		slog.Debug("dbusmenu GetLayout failed", "service", busName, "path", objectPath, "error", call.Err)
		return nil
	}
	if len(call.Body) != 2 {
		slog.Debug("dbusmenu GetLayout returned unexpected body shape", "service", busName)
		return nil
	}

	root, err := parseNode(call.Body[1])
	if err != nil {
		slog.Debug("dbusmenu GetLayout parse failed", "service", busName, "error", err)
		return nil
	}
	return root
}

// Activate sends a "clicked" event for the node with the given id. No
// response is awaited and a failure is swallowed, matching the protocol's
// fire-and-forget activation contract.
func (c *Client) Activate(busName string, objectPath dbus.ObjectPath, id int32) {
	obj := c.conn.Object(busName, objectPath)
	call := obj.Call(InterfaceName+".Event", 0, id, "clicked", dbus.MakeVariant(int32(0)), uint32(time.Now().Unix()))
	if call.Err != nil {
		slog.Debug("dbusmenu Event failed", "service", busName, "id", id, "error", call.Err)
	}
}

// parseNode recursively converts the wire tuple (id, properties,
// children) into a Node tree. Unknown properties are ignored; type
// mismatches fall back to the field's zero/default value rather than
// failing the whole parse.
func parseNode(raw any) (*Node, error) {
	tuple, ok := raw.([]any)
	if !ok || len(tuple) != 3 {
		return nil, errInvalidNode
	}

	id, ok := tuple[0].(int32)
	if !ok {
		return nil, errInvalidNode
	}

	props, ok := tuple[1].(map[string]dbus.Variant)
	if !ok {
		return nil, errInvalidNode
	}

	children, ok := tuple[2].([]dbus.Variant)
	if !ok {
		return nil, errInvalidNode
	}

	node := &Node{
		ID:          id,
		Enabled:     true,
		Visible:     true,
		ToggleState: ToggleIndeterminate,
	}

	if v, ok := props["label"]; ok {
		if s, ok := v.Value().(string); ok {
			node.Label = stripMnemonic(s)
		}
	}
	if v, ok := props["enabled"]; ok {
		if b, ok := v.Value().(bool); ok {
			node.Enabled = b
		}
	}
	if v, ok := props["visible"]; ok {
		if b, ok := v.Value().(bool); ok {
			node.Visible = b
		}
	}
	if v, ok := props["type"]; ok {
		if s, ok := v.Value().(string); ok && s == "separator" {
			node.Separator = true
		}
	}
	if v, ok := props["toggle-type"]; ok {
		if s, ok := v.Value().(string); ok {
			node.ToggleType = s
		}
	}
	if v, ok := props["toggle-state"]; ok {
		if i, ok := v.Value().(int32); ok {
			node.ToggleState = ToggleState(i)
		}
	}
	if v, ok := props["icon-name"]; ok {
		if s, ok := v.Value().(string); ok {
			node.IconName = s
		}
	}
	if v, ok := props["icon-data"]; ok {
		if b, ok := v.Value().([]byte); ok {
			node.IconData = b
		}
	}

	node.Children = make([]*Node, 0, len(children))
	for _, child := range children {
		childNode, err := parseNode(child.Value())
		if err != nil {
			continue
		}
		if !childNode.Visible {
			continue
		}
		node.Children = append(node.Children, childNode)
	}

	return node, nil
}

// stripMnemonic applies the dbusmenu mnemonic-underscore convention: a
// single underscore before a character marks an accelerator and is
// removed, while a doubled underscore collapses to one literal
// underscore.
func stripMnemonic(label string) string {
	var b strings.Builder
	b.Grow(len(label))

	runes := []rune(label)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '_' {
			if i+1 < len(runes) && runes[i+1] == '_' {
				b.WriteRune('_')
				i++
				continue
			}
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

type invalidNodeError struct{}

func (invalidNodeError) Error() string { return "dbusmenu: invalid layout node format" }

var errInvalidNode = invalidNodeError{}
