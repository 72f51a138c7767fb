// Package screen mirrors a display into an off-screen frame source.
//
// A Projector exchanges a capture token for a Projection. The Projection
// creates a Source that receives mirrored frames into a single-slot queue
// and announces each arrival on Frames.
package screen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/screen-roaster/internal/config"
	"github.com/GriffinCanCode/screen-roaster/internal/frame"
)

var (
	// ErrNoProjection means the token could not be exchanged for a projection.
	ErrNoProjection = errors.New("screen: token rejected, no projection")
	ErrNoFrame      = errors.New("screen: no frame available")
	ErrSourceClosed = errors.New("screen: source closed")
	ErrUnsupported  = errors.New("screen: capture backend not supported on this platform")
)

const tokenPrefix = "display:"

// DisplayToken builds the capture token for a display index.
func DisplayToken(index int) string {
	return tokenPrefix + strconv.Itoa(index)
}

// ParseDisplayToken extracts the display index from a token.
func ParseDisplayToken(token string) (int, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(token), tokenPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: malformed token %q", ErrNoProjection, token)
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("%w: bad display index %q", ErrNoProjection, rest)
	}
	return idx, nil
}

type Projector interface {
	Authorize(ctx context.Context, token string) (Projection, error)
}

type Projection interface {
	// Bounds is the native display size, or an empty rectangle when the
	// backend only learns it from the first frame.
	Bounds() image.Rectangle
	CreateSource(ctx context.Context, opts SourceOptions) (Source, error)
	Stop() error
}

type Source interface {
	// Frames delivers one notification per frame arrival. Notifications
	// coalesce: a pending one is not duplicated.
	Frames() <-chan struct{}
	// AcquireLatest takes the queued frame. Older frames never exist since
	// the queue holds one.
	AcquireLatest() (*frame.Frame, error)
	// Close stops delivery and drops the queued frame.
	Close() error
	// Release unregisters the mirror from the projection.
	Release() error
}

// SourceOptions sizes the mirror. Zero Width or Height means native size.
type SourceOptions struct {
	Width        int
	Height       int
	Density      int
	PollInterval time.Duration
}

// Options select and tune a backend.
type Options struct {
	Backend      string
	PollInterval time.Duration
	Synthetic    SyntheticOptions
}

// NewProjector returns the projector for the configured backend.
func NewProjector(opts Options) (Projector, error) {
	switch opts.Backend {
	case config.BackendDisplay, "":
		return newDisplayProjector(opts.PollInterval)
	case config.BackendCommand:
		return newCommandProjector(opts.PollInterval)
	case config.BackendSynthetic:
		return NewSynthetic(opts.Synthetic), nil
	default:
		return nil, fmt.Errorf("unknown capture backend %q", opts.Backend)
	}
}
