package capture

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/GriffinCanCode/screen-roaster/internal/frame"
	"github.com/GriffinCanCode/screen-roaster/internal/screen"
)

// recorder logs platform calls in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(c string) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(c string) int {
	n := 0
	for _, got := range r.list() {
		if got == c {
			n++
		}
	}
	return n
}

type mockProjector struct {
	rec        *recorder
	authErr    error
	createErr  error
	acquireErr error
	panicOn    string
	bounds     image.Rectangle
	frames     []*frame.Frame
	// makeFrames, when set, supplies fresh frames to every source.
	makeFrames func() []*frame.Frame
	// hold, when set, delays frame delivery until closed.
	hold chan struct{}
}

func (m *mockProjector) Authorize(_ context.Context, token string) (screen.Projection, error) {
	m.rec.add("authorize")
	if m.authErr != nil {
		return nil, m.authErr
	}
	if token == screen.DenyToken {
		return nil, screen.ErrNoProjection
	}
	return &mockProjection{m: m}, nil
}

type mockProjection struct{ m *mockProjector }

func (p *mockProjection) Bounds() image.Rectangle { return p.m.bounds }

func (p *mockProjection) CreateSource(_ context.Context, opts screen.SourceOptions) (screen.Source, error) {
	p.m.rec.add("create_source")
	if p.m.createErr != nil {
		return nil, p.m.createErr
	}
	frames := p.m.frames
	if p.m.makeFrames != nil {
		frames = p.m.makeFrames()
	}
	src := &mockSource{m: p.m, frames: frames, notify: make(chan struct{}, len(frames)+1), opts: opts}
	if p.m.hold == nil {
		for range frames {
			src.notify <- struct{}{}
		}
	} else {
		go func() {
			<-p.m.hold
			for range frames {
				src.notify <- struct{}{}
			}
		}()
	}
	return src, nil
}

func (p *mockProjection) Stop() error {
	p.m.rec.add("projection.stop")
	return nil
}

type mockSource struct {
	m      *mockProjector
	frames []*frame.Frame
	notify chan struct{}
	opts   screen.SourceOptions

	mu   sync.Mutex
	next int
}

func (s *mockSource) Frames() <-chan struct{} { return s.notify }

func (s *mockSource) AcquireLatest() (*frame.Frame, error) {
	s.m.rec.add("acquire")
	if s.m.panicOn == "acquire" {
		panic("buffer exploded")
	}
	if s.m.acquireErr != nil {
		return nil, s.m.acquireErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.frames) {
		return nil, screen.ErrNoFrame
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func (s *mockSource) Close() error {
	s.m.rec.add("source.close")
	if s.m.panicOn == "close" {
		panic("close exploded")
	}
	return nil
}

func (s *mockSource) Release() error {
	s.m.rec.add("source.release")
	return nil
}

// gradientFrame returns a w x h frame with padBytes of row padding and a
// release hook counting into closed.
func gradientFrame(w, h, padBytes int, closed *int) *frame.Frame {
	img := paddedRGBA(w, h, padBytes, func(x, y int) color.RGBA {
		return color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 0x40, A: 0xFF}
	})
	return frame.New(img.Pix, w, h, img.Stride, func() {
		if closed != nil {
			*closed++
		}
	})
}

func blankFrame(w, h int) *frame.Frame {
	img := paddedRGBA(w, h, 8, func(int, int) color.RGBA { return color.RGBA{A: 0xFF} })
	return frame.New(img.Pix, w, h, img.Stride, nil)
}

func paddedRGBA(w, h, padBytes int, px func(x, y int) color.RGBA) *image.RGBA {
	stride := w*4 + padBytes
	img := &image.RGBA{Pix: make([]byte, stride*h), Stride: stride, Rect: image.Rect(0, 0, w, h)}
	for i := range img.Pix {
		img.Pix[i] = 0xCD
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, px(x, y))
		}
	}
	return img
}
