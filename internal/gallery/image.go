package gallery

import (
	stderrors "errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
)

// Display states.
const (
	StateEmpty    = "empty"
	StateHasItems = "has_items"
)

// DateLayout formats SavedImage timestamps for display.
const DateLayout = "2006-01-02 15:04:05"

var imageExts = map[string]string{
	".png": "image/png",
	".jpg": "image/jpeg",
}

// IsImageName reports whether name carries a listed image extension,
// compared case-insensitively.
func IsImageName(name string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// SavedImage is a capture file as found on disk. It is derived from the
// filesystem and never stored on its own.
type SavedImage struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
}

func (s SavedImage) FormattedSize() string { return humanize.Bytes(uint64(s.Size)) }

func (s SavedImage) FormattedDate() string { return s.CreatedAt.Format(DateLayout) }

// Age is a relative time such as "3 minutes ago".
func (s SavedImage) Age() string { return humanize.Time(s.CreatedAt) }

func (s SavedImage) Dimensions() string {
	if s.Width == 0 || s.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

func (s SavedImage) MIMEType() string {
	if m, ok := imageExts[strings.ToLower(filepath.Ext(s.Name))]; ok {
		return m
	}
	return "application/octet-stream"
}

// List is sorted newest first.
type List []SavedImage

func (l List) State() string {
	if len(l) == 0 {
		return StateEmpty
	}
	return StateHasItems
}

func (l List) Index(name string) int {
	for i, it := range l {
		if it.Name == name {
			return i
		}
	}
	return -1
}

func (l List) clone() List {
	return append(List(nil), l...)
}

// newer orders the gallery: newest first, equal timestamps by name.
func newer(a, b SavedImage) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Name < b.Name
}

// insertAt is the index that keeps l ordered after inserting it.
func (l List) insertAt(it SavedImage) int {
	return sort.Search(len(l), func(i int) bool { return newer(it, l[i]) })
}

// Scan lists the image files of dir, newest first, equal timestamps by
// name. Symlinks are followed; links to anything but a regular image file
// are skipped. A missing dir is an empty list.
func Scan(dir string) (List, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return List{}, nil
		}
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	list := make(List, 0, len(entries))
	for _, e := range entries {
		if !IsImageName(e.Name()) {
			continue
		}
		var info fs.FileInfo
		switch {
		case e.Type().IsRegular():
			info, err = e.Info()
		case e.Type()&fs.ModeSymlink != 0:
			info, err = os.Stat(filepath.Join(abs, e.Name()))
		default:
			continue
		}
		if err != nil || !info.Mode().IsRegular() {
			continue // removed since ReadDir, or a dangling link
		}
		list = append(list, fromInfo(abs, info))
	}
	sort.Slice(list, func(i, j int) bool { return newer(list[i], list[j]) })
	return list, nil
}

// Stat builds the SavedImage for one file.
func Stat(path string) (SavedImage, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return SavedImage{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return SavedImage{}, err
	}
	if !info.Mode().IsRegular() || !IsImageName(info.Name()) {
		return SavedImage{}, fmt.Errorf("%s is not an image file", path)
	}
	return fromInfo(filepath.Dir(abs), info), nil
}

func fromInfo(dir string, info fs.FileInfo) SavedImage {
	item := SavedImage{
		Path:      filepath.Join(dir, info.Name()),
		Name:      info.Name(),
		CreatedAt: info.ModTime(),
		Size:      info.Size(),
	}
	if f, err := os.Open(item.Path); err == nil {
		if cfg, _, err := image.DecodeConfig(f); err == nil {
			item.Width, item.Height = cfg.Width, cfg.Height
		}
		f.Close()
	}
	return item
}

// resolve maps an item name to its path inside dir. Names with path
// elements or without an image extension are rejected.
func resolve(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", apperrors.Newf(apperrors.InvalidArgument, "invalid screenshot name %q", name)
	}
	if !IsImageName(name) {
		return "", apperrors.Newf(apperrors.InvalidArgument, "%q is not a screenshot", name)
	}
	return filepath.Join(dir, name), nil
}
