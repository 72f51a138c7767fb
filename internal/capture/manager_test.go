package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
	"github.com/GriffinCanCode/screen-roaster/internal/frame"
)

func freshFrames() []*frame.Frame {
	return []*frame.Frame{gradientFrame(8, 8, 4, nil)}
}

func waitState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, st, ok := m.Active(); ok && st == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never reached %v", want)
}

func TestManagerRejectsConcurrentStart(t *testing.T) {
	hold := make(chan struct{})
	mock := &mockProjector{rec: &recorder{}, makeFrames: freshFrames, hold: hold}
	m := NewManager(mock, Options{Dir: t.TempDir()})
	ctx := context.Background()

	p, err := m.Start(ctx, Request{Token: "t"})
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := m.Start(ctx, Request{Token: "t"}); !apperrors.IsCode(err, apperrors.SessionBusy) {
		t.Fatalf("second Start = %v, want SESSION_BUSY", err)
	}
	if id, _, ok := m.Active(); !ok || id != p.ID() {
		t.Errorf("Active() = %q, %v; want %q", id, ok, p.ID())
	}
	if !m.Busy() {
		t.Error("Busy() = false while a session is in flight")
	}

	close(hold)
	res, err := p.Wait(ctx)
	if err != nil || res.Err != nil {
		t.Fatalf("Wait: %v / %v", err, res.Err)
	}
	if m.Busy() {
		t.Error("Busy() = true after the session released")
	}

	mock.hold = nil
	if _, err := m.Capture(ctx, Request{Token: "t"}); err != nil {
		t.Errorf("Start after release should succeed: %v", err)
	}
	if s := m.Stats(); s.Rejected != 1 || s.Saved != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestManagerConcurrentStartsOneWins(t *testing.T) {
	hold := make(chan struct{})
	m := NewManager(&mockProjector{rec: &recorder{}, makeFrames: freshFrames, hold: hold}, Options{Dir: t.TempDir()})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*Pending
		busy    int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := m.Start(context.Background(), Request{Token: "t"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, p)
			} else if apperrors.IsCode(err, apperrors.SessionBusy) {
				busy++
			}
		}()
	}
	wg.Wait()
	close(hold)

	if len(winners) != 1 || busy != 15 {
		t.Fatalf("winners = %d, busy = %d", len(winners), busy)
	}
	<-winners[0].Done()
}

func TestManagerShutdownReleasesInFlight(t *testing.T) {
	rec := &recorder{}
	m := NewManager(&mockProjector{rec: rec, makeFrames: freshFrames, hold: make(chan struct{})}, Options{Dir: t.TempDir()})

	p, err := m.Start(context.Background(), Request{Token: "t"})
	if err != nil {
		t.Fatal(err)
	}
	waitState(t, m, StateFrameReady)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	res := p.Result()
	if !apperrors.IsCode(res.Err, apperrors.Cancelled) {
		t.Errorf("Err = %v, want CANCELLED", res.Err)
	}
	if rec.count("projection.stop") != 1 || rec.count("source.close") != 1 {
		t.Errorf("calls = %v", rec.list())
	}
	if _, err := m.Start(context.Background(), Request{Token: "t"}); !apperrors.IsCode(err, apperrors.Cancelled) {
		t.Errorf("Start after Shutdown = %v, want CANCELLED", err)
	}
	if s := m.Stats(); s.Released != 1 || s.Failed != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestManagerStatsMatchSessions(t *testing.T) {
	rec := &recorder{}
	m := NewManager(&mockProjector{rec: rec, makeFrames: freshFrames}, Options{Dir: t.TempDir()})
	tokens := []string{"a", "deny", "b", "deny", "c"}

	for i, tok := range tokens {
		at := fixedNow.Add(time.Duration(i) * time.Second)
		m.opts.Now = func() time.Time { return at }
		res, err := m.Capture(context.Background(), Request{Token: tok})
		if tok == "deny" {
			if !apperrors.IsCode(err, apperrors.AuthorizationFailed) {
				t.Errorf("token %q: err = %v", tok, err)
			}
			continue
		}
		if err != nil || res.Path == "" {
			t.Errorf("token %q: %v", tok, err)
		}
	}

	s := m.Stats()
	if s.Started != 5 || s.Released != 5 || s.Saved != 3 || s.Failed != 2 {
		t.Errorf("Stats() = %+v", s)
	}
	if n := rec.count("projection.stop"); n != 3 {
		t.Errorf("projection.stop = %d, want one per authorized session", n)
	}
}

func TestPendingWaitAbandonDoesNotCancel(t *testing.T) {
	hold := make(chan struct{})
	m := NewManager(&mockProjector{rec: &recorder{}, makeFrames: freshFrames, hold: hold}, Options{Dir: t.TempDir()})

	reqCtx, cancelReq := context.WithCancel(context.Background())
	p, err := m.Start(reqCtx, Request{Token: "t"})
	if err != nil {
		t.Fatal(err)
	}
	cancelReq()
	if _, err := p.Wait(reqCtx); err == nil {
		t.Fatal("Wait should return the caller's context error")
	}

	close(hold)
	if res := p.Result(); res.Err != nil {
		t.Errorf("session should finish after the caller left: %v", res.Err)
	}
}
