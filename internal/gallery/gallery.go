// Package gallery keeps the list of saved captures and mediates per-item
// actions. All list mutation happens on the goroutine running Gallery.Run;
// other goroutines marshal work onto it.
package gallery

import (
	"bytes"
	"context"
	stderrors "errors"
	"image"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/nfnt/resize"

	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
	"github.com/GriffinCanCode/screen-roaster/internal/syncx"
)

// Event types.
const (
	EventRefreshed     = "refreshed"
	EventCaptured      = "captured"
	EventCaptureFailed = "capture_failed"
	EventDeleted       = "deleted"
	EventDeleteFailed  = "delete_failed"
)

const defaultEventBuffer = 64

// ErrStopped is returned for work submitted after Run has returned.
var ErrStopped = stderrors.New("gallery: event loop stopped")

// Event reports a list change or a failure to show the user.
type Event struct {
	Type   string    `json:"type"`
	Name   string    `json:"name,omitempty"`
	Path   string    `json:"path,omitempty"`
	Reason string    `json:"reason,omitempty"`
	State  string    `json:"state"`
	Count  int       `json:"count"`
	At     time.Time `json:"at"`
}

type Options struct {
	EventBuffer int
}

type Gallery struct {
	dir    string
	ops    chan func()
	events chan Event
	view   *syncx.Guard[List]

	// items is owned by the Run goroutine.
	items List

	stopped chan struct{}
}

func New(dir string, opts Options) *Gallery {
	buf := opts.EventBuffer
	if buf <= 0 {
		buf = defaultEventBuffer
	}
	return &Gallery{
		dir:     dir,
		ops:     make(chan func()),
		events:  make(chan Event, buf),
		view:    syncx.NewGuard(List{}),
		stopped: make(chan struct{}),
	}
}

func (g *Gallery) Dir() string { return g.dir }

// Run executes submitted work until ctx is done, then closes Events.
func (g *Gallery) Run(ctx context.Context) error {
	defer close(g.events)
	defer close(g.stopped)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case op := <-g.ops:
			op()
		}
	}
}

// Events delivers list changes. Events are dropped when nobody reads.
func (g *Gallery) Events() <-chan Event { return g.events }

// do runs fn on the loop and waits for it.
func (g *Gallery) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn()
	}
	select {
	case g.ops <- op:
	case <-g.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publish replaces the shared snapshot and emits evt. Loop only.
func (g *Gallery) publish(evt Event) {
	g.view.Set(g.items.clone())
	evt.State = g.items.State()
	evt.Count = len(g.items)
	evt.At = time.Now()
	select {
	case g.events <- evt:
	default:
		slog.Debug("gallery event dropped", "type", evt.Type)
	}
}

// Refresh rescans the directory and replaces the whole list.
func (g *Gallery) Refresh(ctx context.Context) (List, error) {
	var (
		out List
		err error
	)
	if derr := g.do(ctx, func() {
		var list List
		list, err = Scan(g.dir)
		if err != nil {
			return
		}
		g.items = list
		g.publish(Event{Type: EventRefreshed})
		out = list.clone()
	}); derr != nil {
		return nil, derr
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "Failed to list screenshots")
	}
	return out, nil
}

// OnCaptureSucceeded inserts the new file where a rescan would put it,
// without rescanning. An entry with the same name is replaced. If the file cannot be
// read the list is rebuilt from disk instead.
func (g *Gallery) OnCaptureSucceeded(ctx context.Context, path string) error {
	item, statErr := Stat(path)
	if statErr != nil {
		slog.Warn("captured file unreadable, rescanning", "path", path, "error", statErr)
		_, err := g.Refresh(ctx)
		return err
	}
	return g.do(ctx, func() {
		if i := g.items.Index(item.Name); i >= 0 {
			g.items = append(g.items[:i], g.items[i+1:]...)
		}
		at := g.items.insertAt(item)
		g.items = append(g.items[:at], append(List{item}, g.items[at:]...)...)
		g.publish(Event{Type: EventCaptured, Name: item.Name, Path: item.Path})
	})
}

// OnCaptureFailed leaves the list alone and reports reason.
func (g *Gallery) OnCaptureFailed(ctx context.Context, reason string) error {
	return g.do(ctx, func() {
		g.publish(Event{Type: EventCaptureFailed, Reason: reason})
	})
}

// Delete removes the file and, only if that worked, its list entry.
func (g *Gallery) Delete(ctx context.Context, name string) error {
	path, err := resolve(g.dir, name)
	if err != nil {
		return err
	}
	var opErr error
	if err := g.do(ctx, func() {
		if err := os.Remove(path); err != nil {
			var pathErr *fs.PathError
			if stderrors.As(err, &pathErr) {
				err = pathErr.Err
			}
			ae := apperrors.Wrap(err, apperrors.DeleteFailed, "Failed to delete screenshot").
				WithMetadata("name", name)
			opErr = ae
			g.publish(Event{Type: EventDeleteFailed, Name: name, Reason: ae.UserMessage()})
			return
		}
		if i := g.items.Index(name); i >= 0 {
			g.items = append(g.items[:i], g.items[i+1:]...)
		}
		g.publish(Event{Type: EventDeleted, Name: name, Path: path})
	}); err != nil {
		return err
	}
	return opErr
}

// Items returns a snapshot of the list.
func (g *Gallery) Items() List { return g.view.Get().clone() }

func (g *Gallery) Empty() bool { return len(g.view.Get()) == 0 }

func (g *Gallery) Get(name string) (SavedImage, bool) {
	list := g.view.Get()
	if i := list.Index(name); i >= 0 {
		return list[i], true
	}
	return SavedImage{}, false
}

// Path resolves name to its file, which must exist.
func (g *Gallery) Path(name string) (string, error) {
	path, err := resolve(g.dir, name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return "", apperrors.Newf(apperrors.NotFound, "screenshot %q not found", name)
		}
		return "", apperrors.Wrap(err, apperrors.Internal, "stat screenshot")
	}
	return path, nil
}

// Thumbnail renders name as a PNG no larger than maxEdge on either side.
func (g *Gallery) Thumbnail(name string, maxEdge int) ([]byte, error) {
	if maxEdge <= 0 {
		return nil, apperrors.New(apperrors.InvalidArgument, "thumbnail size must be positive")
	}
	path, err := g.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "open screenshot")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "decode screenshot")
	}
	thumb := resize.Thumbnail(uint(maxEdge), uint(maxEdge), img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "encode thumbnail")
	}
	return buf.Bytes(), nil
}
