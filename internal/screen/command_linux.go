//go:build linux

package screen

import (
	"context"
	"fmt"
)

type linuxTool struct{ bin string }

// platformTool prefers gnome-screenshot and falls back to scrot.
func platformTool() (tool, error) {
	for _, bin := range []string{"gnome-screenshot", "scrot"} {
		if _, err := lookPath(bin); err == nil {
			return linuxTool{bin: bin}, nil
		}
	}
	return nil, fmt.Errorf("%w: install gnome-screenshot or scrot", ErrUnsupported)
}

func (l linuxTool) name() string { return l.bin }

func (l linuxTool) shoot(ctx context.Context, path string) error {
	if l.bin == "scrot" {
		return runTool(ctx, "scrot", "-o", path)
	}
	return runTool(ctx, "gnome-screenshot", "-f", path)
}
