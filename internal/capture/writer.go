package capture

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"
)

// EncodeFunc writes img to w.
type EncodeFunc func(w io.Writer, img image.Image) error

// FileName is the capture file name for t, at second resolution.
func FileName(t time.Time) string {
	return FilePrefix + t.Format(FileTimeLayout) + FileExt
}

// WriteImage encodes img into dir/name through a temp file in the same
// directory, renaming over any existing file. On error nothing is left
// behind. Returns the absolute path.
func WriteImage(dir, name string, img image.Image, encode EncodeFunc) (string, error) {
	if encode == nil {
		encode = png.Encode
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".roaster-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := encode(tmp, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close: %w", err)
	}

	final := filepath.Join(dir, name)
	if err := os.Rename(tmpName, final); err != nil {
		return "", fmt.Errorf("rename: %w", err)
	}
	committed = true

	abs, err := filepath.Abs(final)
	if err != nil {
		return final, nil
	}
	return abs, nil
}
