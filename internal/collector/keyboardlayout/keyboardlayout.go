// Package keyboardlayout writes the observer hub's keyboard-layout slot by
// parsing Hyprland's event-socket line protocol. Connecting to the actual
// compositor socket is the caller's responsibility (spec.md's Non-goals
// exclude compositor-specific IPC parsing beyond this line format); this
// package only knows how to read activelayout lines from whatever
// io.Reader it is given.
package keyboardlayout

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/INDIW33D/hyprline/internal/observer"
)

const eventPrefix = "activelayout>>"

// SocketPath returns the path of Hyprland's event socket 2, or "" if the
// required environment variables are not set.
func SocketPath() string {
	sig := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if sig == "" {
		return ""
	}
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		path := filepath.Join(runtimeDir, "hypr", sig, ".socket2.sock")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join("/tmp", "hypr", sig, ".socket2.sock")
}

// ParseLine extracts (device, layout) from a single event-socket line of
// the form "activelayout>>device,layout". ok is false for any other event
// line or a malformed activelayout line.
func ParseLine(line string) (device, layout string, ok bool) {
	data, found := strings.CutPrefix(line, eventPrefix)
	if !found {
		return "", "", false
	}
	comma := strings.LastIndex(data, ",")
	if comma < 0 {
		return "", "", false
	}
	return data[:comma], data[comma+1:], true
}

// Watch reads lines from r until it is closed or ctx is cancelled, writing
// the parsed device and layout into slot for every well-formed
// activelayout line. It returns when r
// reaches EOF or ctx is done; callers own reconnect policy.
func Watch(ctx context.Context, r io.Reader, slot *observer.Slot[observer.KeyboardLayoutInfo]) error {
	scanner := bufio.NewScanner(r)
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("read keyboard layout socket: %w", err)
				}
				return nil
			}
			device, layout, ok := ParseLine(line)
			if !ok {
				continue
			}
			slot.Set(observer.KeyboardLayoutInfo{Device: device, Layout: layout})
		}
	}
}
