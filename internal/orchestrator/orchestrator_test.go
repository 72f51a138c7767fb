package orchestrator

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/screen-roaster/internal/capture"
	"github.com/GriffinCanCode/screen-roaster/internal/config"
	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
	"github.com/GriffinCanCode/screen-roaster/internal/gallery"
	"github.com/GriffinCanCode/screen-roaster/internal/screen"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.CaptureDir = t.TempDir()
	cfg.CaptureBackend = config.BackendSynthetic
	cfg.CaptureDelay = 0
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

func startOrchestrator(t *testing.T, cfg *config.Config, syn *screen.Synthetic) *Orchestrator {
	t.Helper()
	o := New(cfg, syn)
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(o.Stop)
	return o
}

func waitEvent(t *testing.T, o *Orchestrator, typ string) gallery.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt, ok := <-o.Events():
			if !ok {
				t.Fatalf("events closed before %q", typ)
			}
			if evt.Type == typ {
				return evt
			}
		case <-timeout:
			t.Fatalf("no %q event", typ)
		}
	}
}

func TestCaptureAddsToGallery(t *testing.T) {
	syn := screen.NewSynthetic(screen.SyntheticOptions{Width: 16, Height: 9, PaddingBytes: 12})
	o := startOrchestrator(t, testConfig(t), syn)
	waitEvent(t, o, gallery.EventRefreshed)

	res, err := o.Capture(context.Background(), o.DefaultRequest())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !strings.HasPrefix(res.Path, o.cfg.CaptureDir) || !strings.HasSuffix(res.Path, ".png") {
		t.Errorf("Path = %q", res.Path)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Fatal(err)
	}

	items := o.Items()
	if len(items) != 1 || items[0].Path != res.Path {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Width != 16 || items[0].Height != 9 {
		t.Errorf("saved %s, want 16x9", items[0].Dimensions())
	}
	evt := waitEvent(t, o, gallery.EventCaptured)
	if evt.State != gallery.StateHasItems {
		t.Errorf("event state = %q", evt.State)
	}

	c := syn.Counts()
	if c.Stopped != 1 || c.Released != 1 || c.Closed != 1 {
		t.Errorf("Counts() = %+v", c)
	}
}

func TestCaptureDeniedReportsFailure(t *testing.T) {
	syn := screen.NewSynthetic(screen.SyntheticOptions{})
	o := startOrchestrator(t, testConfig(t), syn)

	_, err := o.Capture(context.Background(), capture.Request{Token: screen.DenyToken})
	if !apperrors.IsCode(err, apperrors.AuthorizationFailed) {
		t.Fatalf("Capture = %v, want AUTHORIZATION_FAILED", err)
	}
	evt := waitEvent(t, o, gallery.EventCaptureFailed)
	if evt.Reason != "Failed to start media projection" {
		t.Errorf("Reason = %q", evt.Reason)
	}
	if !o.gallery.Empty() {
		t.Error("gallery should stay empty")
	}
	entries, _ := os.ReadDir(o.cfg.CaptureDir)
	if len(entries) != 0 {
		t.Errorf("files written: %v", entries)
	}
}

func TestStopReleasesInFlightCapture(t *testing.T) {
	cfg := testConfig(t)
	cfg.CaptureDelay = time.Hour
	syn := screen.NewSynthetic(screen.SyntheticOptions{})
	o := New(cfg, syn)
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	p, _, err := o.StartCapture(context.Background(), o.DefaultRequest())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := o.StartCapture(context.Background(), o.DefaultRequest()); !apperrors.IsCode(err, apperrors.SessionBusy) {
		t.Errorf("second capture = %v, want SESSION_BUSY", err)
	}

	o.Stop()

	if res := p.Result(); !apperrors.IsCode(res.Err, apperrors.Cancelled) {
		t.Errorf("Result = %v, want CANCELLED", res.Err)
	}
	c := syn.Counts()
	if c.Stopped != 1 || c.Released != 1 || c.Closed != 1 {
		t.Errorf("Counts() = %+v", c)
	}
	if _, _, err := o.StartCapture(context.Background(), o.DefaultRequest()); err == nil {
		t.Error("capture after Stop should fail")
	}
}

func TestShare(t *testing.T) {
	cfg := testConfig(t)
	o := startOrchestrator(t, cfg, screen.NewSynthetic(screen.SyntheticOptions{}))
	res, err := o.Capture(context.Background(), o.DefaultRequest())
	if err != nil {
		t.Fatal(err)
	}
	name := res.Path[len(cfg.CaptureDir)+1:]

	if _, err := o.Share(name); !apperrors.IsCode(err, apperrors.ShareFailed) {
		t.Errorf("Share without base URL = %v", err)
	}
	if _, err := o.Share("Screenshot_19700101_000000.png"); !apperrors.IsCode(err, apperrors.NotFound) {
		t.Errorf("Share of missing file = %v, want NOT_FOUND", err)
	}

	cfg2 := testConfig(t)
	cfg2.CaptureDir = cfg.CaptureDir
	cfg2.ShareBaseURL = "http://localhost:8000"
	o2 := startOrchestrator(t, cfg2, screen.NewSynthetic(screen.SyntheticOptions{}))
	h, err := o2.Share(name)
	if err != nil {
		t.Fatal(err)
	}
	if h.URL != "http://localhost:8000/files/"+name || h.MIMEType != "image/*" {
		t.Errorf("handle = %+v", h)
	}
}

func TestStatus(t *testing.T) {
	o := startOrchestrator(t, testConfig(t), screen.NewSynthetic(screen.SyntheticOptions{}))
	if st := o.Status(); st.Gallery != gallery.StateEmpty || st.Busy {
		t.Errorf("initial Status = %+v", st)
	}
	o.Capture(context.Background(), o.DefaultRequest())
	o.Capture(context.Background(), capture.Request{Token: screen.DenyToken})

	st := o.Status()
	if st.ActiveID != "" {
		t.Errorf("ActiveID = %q, want none", st.ActiveID)
	}
	if st.Busy || st.Gallery != gallery.StateHasItems {
		t.Errorf("Busy = %v, Gallery = %q", st.Busy, st.Gallery)
	}
	if st.Stats.Saved != 1 || st.Stats.Failed != 1 || st.Stats.Released != 2 {
		t.Errorf("Stats = %+v", st.Stats)
	}
}

func TestNewFromConfigRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.CaptureBackend = "vnc"
	if _, err := NewFromConfig(cfg); !apperrors.IsCode(err, apperrors.ConfigInvalid) {
		t.Errorf("NewFromConfig = %v, want CONFIG_INVALID", err)
	}
}
