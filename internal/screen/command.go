package screen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// tool writes one screenshot of the main display to path.
type tool interface {
	shoot(ctx context.Context, path string) error
	name() string
}

// commandProjector shells out to the platform screenshot tool. Only the
// main display (index 0) can be projected.
type commandProjector struct {
	tool     tool
	interval time.Duration
}

func newCommandProjector(interval time.Duration) (Projector, error) {
	t, err := platformTool()
	if err != nil {
		return nil, err
	}
	return &commandProjector{tool: t, interval: interval}, nil
}

func (p *commandProjector) Authorize(_ context.Context, token string) (Projection, error) {
	idx, err := ParseDisplayToken(token)
	if err != nil {
		return nil, err
	}
	if idx != 0 {
		return nil, fmt.Errorf("%w: %s captures the main display only", ErrNoProjection, p.tool.name())
	}
	tmpDir, err := os.MkdirTemp("", "roaster-screen-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &commandProjection{tool: p.tool, tempDir: tmpDir, interval: p.interval}, nil
}

type commandProjection struct {
	tool     tool
	tempDir  string
	interval time.Duration

	mu      sync.Mutex
	seq     int
	stopped bool
}

func (c *commandProjection) Bounds() image.Rectangle { return image.Rectangle{} }

func (c *commandProjection) CreateSource(ctx context.Context, opts SourceOptions) (Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil, ErrNoProjection
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = c.interval
	}
	return newPollingSource(ctx, c.captureRaw, opts, nil), nil
}

func (c *commandProjection) captureRaw(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	c.seq++
	tmpFile := filepath.Join(c.tempDir, fmt.Sprintf("frame-%d.png", c.seq))
	c.mu.Unlock()

	if err := c.tool.shoot(ctx, tmpFile); err != nil {
		return nil, err
	}
	defer os.Remove(tmpFile)

	data, err := os.ReadFile(tmpFile)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

func (c *commandProjection) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil
	}
	c.stopped = true
	if err := os.RemoveAll(c.tempDir); err != nil {
		slog.Warn("failed to remove screenshot temp dir", "dir", c.tempDir, "error", err)
		return err
	}
	return nil
}

// runTool runs a screenshot command, folding stderr into the error.
func runTool(ctx context.Context, name string, args ...string) error {
	cmd := execCommand(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}
