// Package orchestrator wires capture sessions to the gallery.
package orchestrator

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/screen-roaster/internal/capture"
	"github.com/GriffinCanCode/screen-roaster/internal/config"
	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
	"github.com/GriffinCanCode/screen-roaster/internal/gallery"
	"github.com/GriffinCanCode/screen-roaster/internal/screen"
	"github.com/GriffinCanCode/screen-roaster/internal/trace"
)

// Orchestrator owns the capture manager and the gallery. Every capture
// result is marshalled onto the gallery loop before it is reported done.
type Orchestrator struct {
	cfg      *config.Config
	captures *capture.Manager
	gallery  *gallery.Gallery
	launcher *gallery.Launcher

	events   chan gallery.Event
	mu       sync.Mutex
	stopped  bool
	stopOnce sync.Once
	cancel   context.CancelFunc
	loops    sync.WaitGroup
	delivery sync.WaitGroup
}

// New builds an orchestrator around projector.
func New(cfg *config.Config, projector screen.Projector) *Orchestrator {
	buf := cfg.EventBuffer
	if buf <= 0 {
		buf = DefaultEventBuffer
	}
	return &Orchestrator{
		cfg: cfg,
		captures: capture.NewManager(projector, capture.Options{
			Dir:          cfg.CaptureDir,
			Delay:        cfg.CaptureDelay,
			SkipBlank:    cfg.SkipBlankFrames,
			MaxSkipped:   cfg.MaxSkippedFrames,
			PollInterval: cfg.PollInterval,
		}),
		gallery:  gallery.New(cfg.CaptureDir, gallery.Options{EventBuffer: buf}),
		launcher: gallery.NewLauncher(cfg.ShareBaseURL),
		events:   make(chan gallery.Event, buf),
	}
}

// NewFromConfig builds the projector the config names.
func NewFromConfig(cfg *config.Config) (*Orchestrator, error) {
	projector, err := screen.NewProjector(screen.Options{
		Backend:      cfg.CaptureBackend,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "capture backend unavailable")
	}
	return New(cfg, projector), nil
}

// Events forwards gallery events. Closed after Stop.
func (o *Orchestrator) Events() <-chan gallery.Event { return o.events }

// Start runs the gallery loop and loads the initial list.
func (o *Orchestrator) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel

	o.loops.Add(2)
	go func() {
		defer o.loops.Done()
		_ = o.gallery.Run(loopCtx)
	}()
	go func() {
		defer o.loops.Done()
		defer close(o.events)
		for evt := range o.gallery.Events() {
			select {
			case o.events <- evt:
			default:
			}
		}
	}()

	if _, err := o.gallery.Refresh(ctx); err != nil {
		trace.Logger(ctx).Warn("initial gallery scan failed", "dir", o.cfg.CaptureDir, "error", err)
	}
	return nil
}

// Stop cancels any in-flight capture, waits for its release and for the
// result to reach the gallery, then stops the loop.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.mu.Lock()
		o.stopped = true
		o.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := o.captures.Shutdown(ctx); err != nil {
			trace.Logger(ctx).Warn("capture shutdown timed out", "error", err)
		}
		o.delivery.Wait()
		if o.cancel != nil {
			o.cancel()
		}
		o.loops.Wait()
	})
}

// DefaultRequest targets the configured display at native size.
func (o *Orchestrator) DefaultRequest() capture.Request {
	return capture.Request{Token: screen.DisplayToken(o.cfg.DisplayIndex)}
}

// StartCapture begins a capture and returns its future. The result is
// delivered to the gallery whether or not anyone waits.
func (o *Orchestrator) StartCapture(ctx context.Context, req capture.Request) (*capture.Pending, <-chan struct{}, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return nil, nil, apperrors.New(apperrors.Cancelled, "capture service stopped")
	}
	p, err := o.captures.Start(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	delivered := make(chan struct{})
	o.delivery.Add(1)
	go func() {
		defer o.delivery.Done()
		defer close(delivered)
		o.deliver(trace.WithContext(context.Background(), traceOf(ctx)), p)
	}()
	return p, delivered, nil
}

// Capture runs one capture to completion, including its gallery update.
func (o *Orchestrator) Capture(ctx context.Context, req capture.Request) (capture.Result, error) {
	p, delivered, err := o.StartCapture(ctx, req)
	if err != nil {
		return capture.Result{Err: err}, err
	}
	select {
	case <-delivered:
	case <-ctx.Done():
		return capture.Result{ID: p.ID()}, ctx.Err()
	}
	res := p.Result()
	return res, res.Err
}

func (o *Orchestrator) deliver(ctx context.Context, p *capture.Pending) {
	res := p.Result()
	log := trace.Logger(ctx).With("session_id", res.ID)

	ctx, cancel := context.WithTimeout(ctx, DeliveryTimeout)
	defer cancel()

	var err error
	if res.OK() {
		err = o.gallery.OnCaptureSucceeded(ctx, res.Path)
	} else {
		err = o.gallery.OnCaptureFailed(ctx, res.Message())
	}
	if err != nil {
		log.Warn("capture result not delivered to gallery", "error", err)
	}
}

func traceOf(ctx context.Context) trace.Context {
	tc, ok := trace.FromContext(ctx)
	if !ok {
		return trace.New()
	}
	return tc
}

// Items returns the current gallery list.
func (o *Orchestrator) Items() gallery.List { return o.gallery.Items() }

// Refresh forces a full rescan.
func (o *Orchestrator) Refresh(ctx context.Context) (gallery.List, error) {
	return o.gallery.Refresh(ctx)
}

func (o *Orchestrator) Delete(ctx context.Context, name string) error {
	return o.gallery.Delete(ctx, name)
}

// Item finds name in the list, falling back to the file on disk.
func (o *Orchestrator) Item(name string) (gallery.SavedImage, error) {
	if it, ok := o.gallery.Get(name); ok {
		return it, nil
	}
	path, err := o.gallery.Path(name)
	if err != nil {
		return gallery.SavedImage{}, err
	}
	it, err := gallery.Stat(path)
	if err != nil {
		return gallery.SavedImage{}, apperrors.Wrap(err, apperrors.NotFound, "screenshot not found")
	}
	return it, nil
}

func (o *Orchestrator) FilePath(name string) (string, error) { return o.gallery.Path(name) }

func (o *Orchestrator) Thumbnail(name string, maxEdge int) ([]byte, error) {
	if maxEdge <= 0 {
		maxEdge = o.cfg.ThumbnailSize
	}
	return o.gallery.Thumbnail(name, maxEdge)
}

func (o *Orchestrator) Open(ctx context.Context, name string) error {
	it, err := o.Item(name)
	if err != nil {
		return err
	}
	return o.launcher.Open(ctx, it)
}

func (o *Orchestrator) Share(name string) (gallery.Handle, error) {
	it, err := o.Item(name)
	if err != nil {
		return gallery.Handle{}, err
	}
	return o.launcher.Share(it)
}

// Status reports the in-flight capture and lifetime counters.
func (o *Orchestrator) Status() Status {
	st := Status{Busy: o.captures.Busy(), Gallery: gallery.StateHasItems, Stats: o.captures.Stats()}
	if o.gallery.Empty() {
		st.Gallery = gallery.StateEmpty
	}
	if id, state, ok := o.captures.Active(); ok {
		st.ActiveID, st.ActiveState = id, state.String()
	}
	return st
}

type Status struct {
	Busy        bool          `json:"busy"`
	Gallery     string        `json:"gallery"`
	ActiveID    string        `json:"active_id,omitempty"`
	ActiveState string        `json:"active_state,omitempty"`
	Stats       capture.Stats `json:"stats"`
}
