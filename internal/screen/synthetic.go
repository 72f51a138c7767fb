package screen

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DenyToken is always rejected by the synthetic projector.
const DenyToken = "deny"

// SyntheticOptions shape the generated frames. Zero values pick small
// defaults suitable for tests.
type SyntheticOptions struct {
	Width        int
	Height       int
	PaddingBytes int
	// BlankFrames is the number of uniform frames each source emits first.
	BlankFrames int
	Interval    time.Duration
}

// SyntheticCounts tallies lifecycle calls across all projections.
type SyntheticCounts struct {
	Authorized int
	Sources    int
	Closed     int
	Released   int
	Stopped    int
}

// Synthetic is a headless projector producing deterministic gradient frames
// with padded rows.
type Synthetic struct {
	opts SyntheticOptions

	mu     sync.Mutex
	counts SyntheticCounts
}

func NewSynthetic(opts SyntheticOptions) *Synthetic {
	if opts.Width <= 0 {
		opts.Width = 64
	}
	if opts.Height <= 0 {
		opts.Height = 48
	}
	if opts.PaddingBytes < 0 {
		opts.PaddingBytes = 0
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Millisecond
	}
	return &Synthetic{opts: opts}
}

// Counts returns a snapshot of lifecycle tallies.
func (s *Synthetic) Counts() SyntheticCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

func (s *Synthetic) count(fn func(*SyntheticCounts)) {
	s.mu.Lock()
	fn(&s.counts)
	s.mu.Unlock()
}

func (s *Synthetic) Authorize(_ context.Context, token string) (Projection, error) {
	token = strings.TrimSpace(token)
	if token == "" || token == DenyToken {
		return nil, fmt.Errorf("%w: token %q", ErrNoProjection, token)
	}
	s.count(func(c *SyntheticCounts) { c.Authorized++ })
	return &syntheticProjection{owner: s}, nil
}

type syntheticProjection struct {
	owner   *Synthetic
	stopped atomic.Bool
}

func (p *syntheticProjection) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.owner.opts.Width, p.owner.opts.Height)
}

func (p *syntheticProjection) CreateSource(ctx context.Context, opts SourceOptions) (Source, error) {
	if p.stopped.Load() {
		return nil, ErrNoProjection
	}
	o := p.owner.opts
	w, h := o.Width, o.Height
	if opts.Width > 0 && opts.Height > 0 {
		w, h = opts.Width, opts.Height
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = o.Interval
	}

	var seq int
	grab := func(context.Context) (image.Image, error) {
		seq++
		if seq <= o.BlankFrames {
			return paddedImage(w, h, o.PaddingBytes, func(int, int) color.RGBA {
				return color.RGBA{A: 0xFF}
			}), nil
		}
		shift := seq
		return paddedImage(w, h, o.PaddingBytes, func(x, y int) color.RGBA {
			return color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8(shift * 16), A: 0xFF}
		}), nil
	}

	p.owner.count(func(c *SyntheticCounts) { c.Sources++ })
	src := &syntheticSource{owner: p.owner}
	src.pollingSource = newPollingSource(ctx, grab, opts, nil)
	return src, nil
}

func (p *syntheticProjection) Stop() error {
	if p.stopped.CompareAndSwap(false, true) {
		p.owner.count(func(c *SyntheticCounts) { c.Stopped++ })
	}
	return nil
}

type syntheticSource struct {
	*pollingSource
	owner    *Synthetic
	closed   atomic.Bool
	released atomic.Bool
}

func (s *syntheticSource) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.owner.count(func(c *SyntheticCounts) { c.Closed++ })
	}
	return s.pollingSource.Close()
}

func (s *syntheticSource) Release() error {
	if s.released.CompareAndSwap(false, true) {
		s.owner.count(func(c *SyntheticCounts) { c.Released++ })
	}
	return s.pollingSource.Release()
}

// paddedImage builds an RGBA image whose rows are padBytes wider than the
// pixel data, the padding filled with 0xAB.
func paddedImage(w, h, padBytes int, px func(x, y int) color.RGBA) *image.RGBA {
	stride := w*4 + padBytes
	pix := make([]byte, stride*h)
	for i := range pix {
		pix[i] = 0xAB
	}
	img := &image.RGBA{Pix: pix, Stride: stride, Rect: image.Rect(0, 0, w, h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, px(x, y))
		}
	}
	return img
}
