//go:build darwin

package screen

import "context"

type screencapture struct{}

func platformTool() (tool, error) {
	if _, err := lookPath("screencapture"); err != nil {
		return nil, ErrUnsupported
	}
	return screencapture{}, nil
}

func (screencapture) name() string { return "screencapture" }

// -x: no sound, -m: main display only
func (screencapture) shoot(ctx context.Context, path string) error {
	return runTool(ctx, "screencapture", "-x", "-t", "png", "-m", path)
}
