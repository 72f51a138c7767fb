package gallery

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func writeImage(t *testing.T, dir, name string, w, h int, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return path
}

func startGallery(t *testing.T, dir string) *Gallery {
	t.Helper()
	g := New(dir, Options{EventBuffer: 32})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = g.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return g
}

func nextEvent(t *testing.T, g *Gallery) Event {
	t.Helper()
	select {
	case evt := <-g.Events():
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("no gallery event")
		return Event{}
	}
}

func names(l List) []string {
	out := make([]string, len(l))
	for i, it := range l {
		out[i] = it.Name
	}
	return out
}

func TestScanMissingDir(t *testing.T) {
	list, err := Scan(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(list) != 0 || list.State() != StateEmpty {
		t.Errorf("list = %v, state %q", list, list.State())
	}
}

func TestScanFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png", 2, 2, base.Add(-3*time.Minute))
	writeImage(t, dir, "B.JPG", 2, 2, base.Add(-1*time.Minute))
	writeImage(t, dir, "g.png", 2, 2, base.Add(-2*time.Minute))
	writeImage(t, dir, "f.png", 5, 3, base.Add(-2*time.Minute))
	writeImage(t, dir, "d.jpeg", 2, 2, base)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	os.Mkdir(filepath.Join(dir, "dir.png"), 0o755)

	list, err := Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"B.JPG", "f.png", "g.png", "a.png"}
	if got := names(list); !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.After(list[i-1].CreatedAt) {
			t.Errorf("list not descending at %d", i)
		}
	}
	if list[1].Dimensions() != "5x3" {
		t.Errorf("Dimensions() = %q, want 5x3", list[1].Dimensions())
	}
	if !filepath.IsAbs(list[0].Path) {
		t.Errorf("Path %q is not absolute", list[0].Path)
	}
	if list.State() != StateHasItems {
		t.Errorf("State() = %q", list.State())
	}
}

func TestRefreshEmptyDirectory(t *testing.T) {
	g := startGallery(t, t.TempDir())
	list, err := g.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 || !g.Empty() {
		t.Errorf("list = %v", list)
	}
	if evt := nextEvent(t, g); evt.Type != EventRefreshed || evt.State != StateEmpty {
		t.Errorf("event = %+v", evt)
	}
}

func TestCaptureThenRefreshConverges(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "Screenshot_20240501_115800.png", 3, 3, base.Add(-2*time.Minute))
	writeImage(t, dir, "Screenshot_20240501_115900.png", 3, 3, base.Add(-time.Minute))
	g := startGallery(t, dir)
	ctx := context.Background()

	if _, err := g.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	path := writeImage(t, dir, "Screenshot_20240501_120000.png", 4, 4, base)
	if err := g.OnCaptureSucceeded(ctx, path); err != nil {
		t.Fatal(err)
	}
	prepended := g.Items()
	if prepended[0].Name != "Screenshot_20240501_120000.png" {
		t.Fatalf("new capture not first: %v", names(prepended))
	}

	rescanned, err := g.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(prepended, rescanned) {
		t.Errorf("prepend and rescan diverge:\n%v\n%v", prepended, rescanned)
	}
}

func TestCaptureWithTiedMtimeMatchesRefresh(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "A_old.png", 2, 2, base)
	writeImage(t, dir, "Z_old.png", 2, 2, base)
	writeImage(t, dir, "Screenshot_20240501_115900.png", 2, 2, base.Add(-time.Minute))
	g := startGallery(t, dir)
	ctx := context.Background()
	if _, err := g.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	path := writeImage(t, dir, "Screenshot_20240501_120000.png", 3, 3, base)
	if err := g.OnCaptureSucceeded(ctx, path); err != nil {
		t.Fatal(err)
	}
	inserted := g.Items()
	want := []string{"A_old.png", "Screenshot_20240501_120000.png", "Z_old.png", "Screenshot_20240501_115900.png"}
	if !reflect.DeepEqual(names(inserted), want) {
		t.Fatalf("order = %v, want %v", names(inserted), want)
	}

	rescanned, err := g.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(inserted, rescanned) {
		t.Errorf("insert and rescan diverge:\n%v\n%v", names(inserted), names(rescanned))
	}
}

func TestScanFollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	target := writeImage(t, outside, "elsewhere.png", 4, 2, base)
	if err := os.Symlink(target, filepath.Join(dir, "linked.png")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "missing.png"), filepath.Join(dir, "dangling.png")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(dir, "dir.png")); err != nil {
		t.Fatal(err)
	}

	list, err := Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "linked.png" {
		t.Fatalf("Scan = %v, want only linked.png", names(list))
	}
	if list[0].Path != filepath.Join(dir, "linked.png") || list[0].Width != 4 {
		t.Errorf("item = %+v", list[0])
	}
}

func TestOnCaptureSucceededReplacesSameName(t *testing.T) {
	dir := t.TempDir()
	path := writeImage(t, dir, "Screenshot_20240501_120000.png", 2, 2, base)
	g := startGallery(t, dir)
	ctx := context.Background()
	g.Refresh(ctx)

	writeImage(t, dir, "Screenshot_20240501_120000.png", 6, 6, base.Add(time.Second))
	if err := g.OnCaptureSucceeded(ctx, path); err != nil {
		t.Fatal(err)
	}
	items := g.Items()
	if len(items) != 1 || items[0].Width != 6 {
		t.Errorf("items = %+v", items)
	}
}

func TestOnCaptureSucceededMissingFileRescans(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png", 1, 1, base)
	g := startGallery(t, dir)
	if err := g.OnCaptureSucceeded(context.Background(), filepath.Join(dir, "gone.png")); err != nil {
		t.Fatal(err)
	}
	if got := names(g.Items()); !reflect.DeepEqual(got, []string{"a.png"}) {
		t.Errorf("items = %v", got)
	}
}

func TestOnCaptureFailedKeepsList(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png", 1, 1, base)
	g := startGallery(t, dir)
	ctx := context.Background()
	g.Refresh(ctx)
	nextEvent(t, g)

	if err := g.OnCaptureFailed(ctx, "Failed to start media projection"); err != nil {
		t.Fatal(err)
	}
	evt := nextEvent(t, g)
	if evt.Type != EventCaptureFailed || evt.Reason != "Failed to start media projection" || evt.Count != 1 {
		t.Errorf("event = %+v", evt)
	}
	if len(g.Items()) != 1 {
		t.Error("list changed on capture failure")
	}
}

func TestDeleteRemovesFileAndItem(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png", 1, 1, base)
	path := writeImage(t, dir, "b.png", 1, 1, base.Add(time.Minute))
	g := startGallery(t, dir)
	ctx := context.Background()
	g.Refresh(ctx)
	nextEvent(t, g)

	if err := g.Delete(ctx, "b.png"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still exists")
	}
	if got := names(g.Items()); !reflect.DeepEqual(got, []string{"a.png"}) {
		t.Errorf("items = %v", got)
	}
	if evt := nextEvent(t, g); evt.Type != EventDeleted || evt.Name != "b.png" {
		t.Errorf("event = %+v", evt)
	}
}

func TestDeleteMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := writeImage(t, dir, "a.png", 1, 1, base)
	g := startGallery(t, dir)
	ctx := context.Background()
	g.Refresh(ctx)
	nextEvent(t, g)
	before := g.Items()

	os.Remove(path)
	err := g.Delete(ctx, "a.png")
	if !apperrors.IsCode(err, apperrors.DeleteFailed) {
		t.Fatalf("Delete() = %v, want DELETE_FAILED", err)
	}
	if !reflect.DeepEqual(before, g.Items()) {
		t.Error("list changed after failed delete")
	}
	evt := nextEvent(t, g)
	if evt.Type != EventDeleteFailed {
		t.Fatalf("event = %+v", evt)
	}
	if !strings.HasPrefix(evt.Reason, "Failed to delete screenshot") ||
		strings.Contains(evt.Reason, "[") || strings.Contains(evt.Reason, dir) {
		t.Errorf("Reason = %q, want a one-line message without code or path", evt.Reason)
	}
}

func TestDeleteRejectsUnsafeNames(t *testing.T) {
	g := startGallery(t, t.TempDir())
	for _, name := range []string{"../x.png", "sub/x.png", "..", "", "notes.txt"} {
		if err := g.Delete(context.Background(), name); !apperrors.IsCode(err, apperrors.InvalidArgument) {
			t.Errorf("Delete(%q) = %v, want INVALID_ARGUMENT", name, err)
		}
	}
}

func TestGetAndPath(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png", 1, 1, base)
	g := startGallery(t, dir)
	g.Refresh(context.Background())

	if _, ok := g.Get("a.png"); !ok {
		t.Error("Get(a.png) missing")
	}
	if _, ok := g.Get("b.png"); ok {
		t.Error("Get(b.png) should miss")
	}
	if _, err := g.Path("b.png"); !apperrors.IsCode(err, apperrors.NotFound) {
		t.Errorf("Path(b.png) = %v, want NOT_FOUND", err)
	}
}

func TestThumbnail(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "wide.png", 400, 200, base)
	g := New(dir, Options{})

	data, err := g.Thumbnail("wide.png", 100)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("thumbnail %dx%d, want 100x50", cfg.Width, cfg.Height)
	}
	if _, err := g.Thumbnail("wide.png", 0); !apperrors.IsCode(err, apperrors.InvalidArgument) {
		t.Errorf("Thumbnail(size 0) = %v", err)
	}
}

func TestStoppedLoopRejectsWork(t *testing.T) {
	g := New(t.TempDir(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v", err)
	}
	if _, err := g.Refresh(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Refresh after stop = %v, want ErrStopped", err)
	}
	if _, ok := <-g.Events(); ok {
		t.Error("Events should be closed")
	}
}

func TestSavedImageFormatting(t *testing.T) {
	item := SavedImage{Name: "x.JPG", Size: 2048, Width: 4, Height: 3, CreatedAt: base}
	if item.FormattedSize() != "2.0 kB" {
		t.Errorf("FormattedSize() = %q", item.FormattedSize())
	}
	if item.FormattedDate() != "2024-05-01 12:00:00" {
		t.Errorf("FormattedDate() = %q", item.FormattedDate())
	}
	if item.MIMEType() != "image/jpeg" {
		t.Errorf("MIMEType() = %q", item.MIMEType())
	}
	if (SavedImage{}).Dimensions() != "" {
		t.Error("unknown dimensions should be empty")
	}
	if v := item.View(); v.Dimensions != "4x3" {
		t.Errorf("View().Dimensions = %q, want 4x3", v.Dimensions)
	}
}
