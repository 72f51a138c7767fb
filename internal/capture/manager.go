package capture

import (
	"context"
	"sync"
	"sync/atomic"

	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
	"github.com/GriffinCanCode/screen-roaster/internal/screen"
	"github.com/GriffinCanCode/screen-roaster/internal/syncx"
)

// Pending is the future for one started session.
type Pending struct {
	id     string
	done   chan struct{}
	result Result
}

func (p *Pending) ID() string { return p.id }

// Done is closed once the session has released its resources.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Result is valid after Done is closed.
func (p *Pending) Result() Result {
	<-p.done
	return p.result
}

// Wait blocks for the result. Cancelling ctx stops waiting, not the session.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return Result{ID: p.id}, ctx.Err()
	}
}

// Stats counts session outcomes since the manager was created.
type Stats struct {
	Started  int64 `json:"started"`
	Saved    int64 `json:"saved"`
	Failed   int64 `json:"failed"`
	Released int64 `json:"released"`
	Rejected int64 `json:"rejected"`
}

// Manager runs at most one session at a time.
type Manager struct {
	projector screen.Projector
	opts      Options
	slot      syncx.Slot

	mu       sync.Mutex
	closed   bool
	active   *Session
	cancel   context.CancelFunc
	inflight *Pending

	started, saved, failed, released, rejected atomic.Int64
}

func NewManager(projector screen.Projector, opts Options) *Manager {
	return &Manager{projector: projector, opts: opts}
}

// Start launches a session and returns its future. It fails fast with
// SESSION_BUSY while another session has not yet released.
//
// The session outlives ctx: only its values (trace IDs) carry over.
// Shutdown is the way to cancel it.
func (m *Manager) Start(ctx context.Context, req Request) (*Pending, error) {
	if !m.slot.TryAcquire() {
		m.rejected.Add(1)
		return nil, apperrors.New(apperrors.SessionBusy, MsgSessionBusy)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.slot.Release()
		return nil, apperrors.New(apperrors.Cancelled, "capture manager stopped")
	}
	sess := NewSession(m.projector, req, m.opts)
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &Pending{id: sess.ID(), done: make(chan struct{})}
	m.active, m.cancel, m.inflight = sess, cancel, p
	m.mu.Unlock()

	m.started.Add(1)
	go m.run(sctx, cancel, sess, p)
	return p, nil
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, sess *Session, p *Pending) {
	res := sess.Run(ctx)
	cancel()

	m.released.Add(1)
	if res.OK() {
		m.saved.Add(1)
	} else {
		m.failed.Add(1)
	}

	m.mu.Lock()
	m.active, m.cancel, m.inflight = nil, nil, nil
	m.mu.Unlock()
	m.slot.Release()

	p.result = res
	close(p.done)
}

// Capture starts a session and waits for it. The returned error is the
// session's failure, or ctx's if waiting was abandoned.
func (m *Manager) Capture(ctx context.Context, req Request) (Result, error) {
	p, err := m.Start(ctx, req)
	if err != nil {
		return Result{Err: err}, err
	}
	res, err := p.Wait(ctx)
	if err != nil {
		return res, err
	}
	return res, res.Err
}

// Active reports the in-flight session, if any.
func (m *Manager) Active() (id string, state State, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return "", StateIdle, false
	}
	return m.active.ID(), m.active.State(), true
}

// Busy reports whether a session holds the single-flight slot. It stays
// true until the session has released, slightly past Active.
func (m *Manager) Busy() bool { return m.slot.Held() }

// Shutdown refuses new sessions, cancels the in-flight one and waits for
// it to release.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	cancel, p := m.cancel, m.inflight
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) Stats() Stats {
	return Stats{
		Started:  m.started.Load(),
		Saved:    m.saved.Load(),
		Failed:   m.failed.Load(),
		Released: m.released.Load(),
		Rejected: m.rejected.Load(),
	}
}
