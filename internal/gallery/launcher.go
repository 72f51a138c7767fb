package gallery

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
)

// ShareMIMEType is announced with every share handle.
const ShareMIMEType = "image/*"

// Handle is a provider-scoped reference to a capture that another
// program can fetch.
type Handle struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MIMEType string `json:"mime"`
}

// Launcher hands captures to the platform viewer and builds share handles.
type Launcher struct {
	baseURL string
	goos    string

	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

// NewLauncher shares under baseURL; an empty baseURL disables sharing.
func NewLauncher(baseURL string) *Launcher {
	return &Launcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

// Open shows item in the platform's default image viewer.
func (l *Launcher) Open(ctx context.Context, item SavedImage) error {
	name, args, err := viewerCommand(l.goos, item.Path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.OpenFailed, "No application can open this screenshot")
	}
	if _, err := l.lookPath(name); err != nil {
		return apperrors.Wrap(err, apperrors.OpenFailed, "No application can open this screenshot")
	}
	if err := l.run(ctx, name, args...); err != nil {
		return apperrors.Wrap(err, apperrors.OpenFailed, "Failed to open screenshot").WithMetadata("name", item.Name)
	}
	return nil
}

// Share resolves item to a URL served under /files/.
func (l *Launcher) Share(item SavedImage) (Handle, error) {
	if l.baseURL == "" {
		return Handle{}, apperrors.New(apperrors.ShareFailed, "No share target configured")
	}
	return Handle{
		Name:     item.Name,
		URL:      l.baseURL + "/files/" + url.PathEscape(item.Name),
		MIMEType: ShareMIMEType,
	}, nil
}

func viewerCommand(goos, path string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{path}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", path}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{path}, nil
	default:
		return "", nil, fmt.Errorf("no viewer for %s", goos)
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}
