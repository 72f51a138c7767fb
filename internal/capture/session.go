package capture

import (
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
	"github.com/GriffinCanCode/screen-roaster/internal/frame"
	"github.com/GriffinCanCode/screen-roaster/internal/screen"
	"github.com/GriffinCanCode/screen-roaster/internal/trace"
)

// Options configure every session a Manager starts.
type Options struct {
	Dir          string
	Delay        time.Duration
	SkipBlank    bool
	MaxSkipped   int
	PollInterval time.Duration

	// Hooks; nil picks the real implementation.
	Now     func() time.Time
	Sleep   func(ctx context.Context, d time.Duration) error
	Encode  EncodeFunc
	OnState func(id string, s State)
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
	return o
}

// Session performs one capture. Run may be called once.
type Session struct {
	id        string
	projector screen.Projector
	req       Request
	opts      Options

	state atomic.Int32
	ran   atomic.Bool

	projection  screen.Projection
	source      screen.Source
	releaseOnce sync.Once
	log         *slog.Logger
}

func NewSession(projector screen.Projector, req Request, opts Options) *Session {
	return &Session{
		id:        ulid.Make().String(),
		projector: projector,
		req:       req,
		opts:      opts.withDefaults(),
		log:       slog.Default(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.log.Debug("capture state", "state", st.String())
	if s.opts.OnState != nil {
		s.opts.OnState(s.id, st)
	}
}

// Run drives the session to Released and returns its outcome. Resources
// are released on every path, panics included.
func (s *Session) Run(ctx context.Context) (res Result) {
	if !s.ran.CompareAndSwap(false, true) {
		return Result{ID: s.id, Err: apperrors.New(apperrors.Internal, "capture session already run")}
	}

	ctx, span := trace.StartSpan(ctx, "capture.session")
	span.SetAttr("session_id", s.id)
	s.log = trace.Logger(ctx).With("session_id", s.id)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("capture session panicked", "panic", r)
			s.setState(StateFailed)
			res = Result{Err: apperrors.Wrap(fmt.Errorf("panic: %v", r), apperrors.CaptureFailed, MsgCaptureFailed)}
		}
		s.release()
		res.ID = s.id
		span.SetAttr("ok", res.OK())
	}()

	return s.run(ctx)
}

func (s *Session) run(ctx context.Context) Result {
	proj, err := s.projector.Authorize(ctx, s.req.Token)
	if err != nil {
		s.log.Warn("projection authorization failed", "error", err)
		return Result{Err: apperrors.Wrap(err, apperrors.AuthorizationFailed, MsgAuthorizationFailed)}
	}
	s.projection = proj
	s.setState(StateAuthorized)

	width, height := s.req.Width, s.req.Height
	if width <= 0 || height <= 0 {
		b := proj.Bounds()
		width, height = b.Dx(), b.Dy()
	}
	src, err := proj.CreateSource(ctx, screen.SourceOptions{
		Width:        width,
		Height:       height,
		Density:      s.req.Density,
		PollInterval: s.opts.PollInterval,
	})
	if err != nil {
		return s.fail(apperrors.Wrap(err, apperrors.CaptureFailed, MsgCaptureFailed))
	}
	s.source = src
	s.setState(StateMirroring)

	if err := s.opts.Sleep(ctx, s.opts.Delay); err != nil {
		return s.fail(s.cancelled(err))
	}
	s.setState(StateFrameReady)

	img, err := s.awaitFrame(ctx, src)
	if err != nil {
		return s.fail(err)
	}

	name := FileName(s.opts.Now())
	path, err := WriteImage(s.opts.Dir, name, img, s.opts.Encode)
	if err != nil {
		return s.fail(apperrors.Wrap(err, apperrors.CaptureFailed, MsgSaveFailed))
	}
	s.setState(StateSaved)
	s.log.Info("screenshot saved", "path", path, "width", img.Rect.Dx(), "height", img.Rect.Dy())
	return Result{Path: path}
}

// awaitFrame blocks on frame notifications until a frame converts and
// passes the blank guard. This is the only unbounded wait.
func (s *Session) awaitFrame(ctx context.Context, src screen.Source) (*image.RGBA, error) {
	guard := newBlankGuard(s.opts.SkipBlank, s.opts.MaxSkipped)
	for {
		select {
		case <-ctx.Done():
			return nil, s.cancelled(ctx.Err())
		case <-src.Frames():
		}

		f, err := src.AcquireLatest()
		if stderrors.Is(err, screen.ErrNoFrame) {
			continue
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CaptureFailed, MsgCaptureFailed)
		}
		s.setState(StateConverting)

		img, err := convert(f)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CaptureFailed, MsgCaptureFailed)
		}
		if guard.skip(img) {
			s.log.Debug("skipped blank leading frame", "skipped", guard.skipped)
			s.setState(StateFrameReady)
			continue
		}
		return img, nil
	}
}

// convert strips padding and closes the frame regardless of outcome.
func convert(f *frame.Frame) (*image.RGBA, error) {
	defer f.Close()
	return frame.ToRGBA(f)
}

func (s *Session) fail(err error) Result {
	s.setState(StateFailed)
	s.log.Warn("capture failed", "error", err)
	return Result{Err: err}
}

func (s *Session) cancelled(err error) error {
	return apperrors.Wrap(err, apperrors.Cancelled, MsgCancelled)
}

// release tears down the frame source, the mirror, then the projection.
// A failing step does not skip the ones after it.
func (s *Session) release() {
	s.releaseOnce.Do(func() {
		if s.source != nil {
			s.releaseStep("close frame source", s.source.Close)
			s.releaseStep("release mirror", s.source.Release)
		}
		if s.projection != nil {
			s.releaseStep("stop projection", s.projection.Stop)
		}
		s.setState(StateReleased)
	})
}

func (s *Session) releaseStep(what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("release step panicked", "step", what, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		s.log.Warn("release step failed", "step", what, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
