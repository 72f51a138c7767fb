//go:build linux || windows || darwin

package screen

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
)

type displayProjector struct {
	interval time.Duration
}

func newDisplayProjector(interval time.Duration) (Projector, error) {
	return &displayProjector{interval: interval}, nil
}

func (p *displayProjector) Authorize(_ context.Context, token string) (Projection, error) {
	idx, err := ParseDisplayToken(token)
	if err != nil {
		return nil, err
	}
	n := screenshot.NumActiveDisplays()
	if idx >= n {
		return nil, fmt.Errorf("%w: display %d of %d active", ErrNoProjection, idx, n)
	}
	return &displayProjection{
		index:    idx,
		bounds:   screenshot.GetDisplayBounds(idx),
		interval: p.interval,
	}, nil
}

type displayProjection struct {
	index    int
	bounds   image.Rectangle
	interval time.Duration

	mu      sync.Mutex
	stopped bool
}

func (d *displayProjection) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.bounds.Dx(), d.bounds.Dy())
}

func (d *displayProjection) CreateSource(ctx context.Context, opts SourceOptions) (Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return nil, ErrNoProjection
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = d.interval
	}
	rect := d.bounds
	grab := func(context.Context) (image.Image, error) {
		return screenshot.CaptureRect(rect)
	}
	return newPollingSource(ctx, grab, opts, nil), nil
}

func (d *displayProjection) Stop() error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	return nil
}
