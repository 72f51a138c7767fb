package screen

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/nfnt/resize"

	"github.com/GriffinCanCode/screen-roaster/internal/frame"
)

const defaultPollInterval = 100 * time.Millisecond

// latestQueue holds at most one frame. Putting a frame closes the one it
// replaces. A grab error occupies the slot the same way a frame does.
type latestQueue struct {
	mu     sync.Mutex
	cur    *frame.Frame
	err    error
	closed bool
	notify chan struct{}
}

func newLatestQueue() *latestQueue {
	return &latestQueue{notify: make(chan struct{}, 1)}
}

func (q *latestQueue) put(f *frame.Frame, err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		if f != nil {
			f.Close()
		}
		return
	}
	old := q.cur
	q.cur, q.err = f, err
	q.mu.Unlock()

	if old != nil {
		old.Close()
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *latestQueue) take() (*frame.Frame, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrSourceClosed
	}
	f, err := q.cur, q.err
	q.cur, q.err = nil, nil
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNoFrame
	}
	return f, nil
}

func (q *latestQueue) close() {
	q.mu.Lock()
	f := q.cur
	q.cur, q.err, q.closed = nil, nil, true
	q.mu.Unlock()
	if f != nil {
		f.Close()
	}
}

// grabFunc produces one mirrored image.
type grabFunc func(ctx context.Context) (image.Image, error)

// pollingSource mirrors by grabbing on an interval.
type pollingSource struct {
	queue     *latestQueue
	grab      grabFunc
	width     int
	height    int
	interval  time.Duration
	onRelease func()

	cancel      context.CancelFunc
	done        chan struct{}
	closeOnce   sync.Once
	releaseOnce sync.Once
}

func newPollingSource(ctx context.Context, grab grabFunc, opts SourceOptions, onRelease func()) *pollingSource {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &pollingSource{
		queue:     newLatestQueue(),
		grab:      grab,
		width:     opts.Width,
		height:    opts.Height,
		interval:  interval,
		onRelease: onRelease,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go s.loop(ctx)
	return s
}

func (s *pollingSource) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *pollingSource) poll(ctx context.Context) {
	img, err := s.grab(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Debug("frame grab failed", "error", err)
		s.queue.put(nil, err)
		return
	}
	img = s.scale(img)
	f := frame.FromImage(img)
	f.Timestamp = time.Now()
	s.queue.put(f, nil)
}

func (s *pollingSource) scale(img image.Image) image.Image {
	if s.width <= 0 || s.height <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == s.width && b.Dy() == s.height {
		return img
	}
	return resize.Resize(uint(s.width), uint(s.height), img, resize.Bilinear)
}

func (s *pollingSource) Frames() <-chan struct{} { return s.queue.notify }

func (s *pollingSource) AcquireLatest() (*frame.Frame, error) { return s.queue.take() }

func (s *pollingSource) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		s.queue.close()
	})
	return nil
}

func (s *pollingSource) Release() error {
	s.releaseOnce.Do(func() {
		s.cancel()
		if s.onRelease != nil {
			s.onRelease()
		}
	})
	return nil
}
