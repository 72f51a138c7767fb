package capture

import (
	"image"
	"log/slog"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/screen-roaster/internal/frame"
)

// blankGuard skips blank or repeated leading frames, at most max of them.
// A frame is skipped when it is uniform, or when its perception hash is
// within BlankHashDistance of the previously skipped frame.
type blankGuard struct {
	enabled  bool
	max      int
	skipped  int
	lastHash *goimagehash.ImageHash
}

func newBlankGuard(enabled bool, max int) *blankGuard {
	return &blankGuard{enabled: enabled, max: max}
}

func (g *blankGuard) skip(img *image.RGBA) bool {
	if !g.enabled || g.skipped >= g.max {
		return false
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		hash = nil
	}

	if frame.IsBlank(img) {
		g.skipped++
		g.lastHash = hash
		return true
	}
	if g.lastHash != nil && hash != nil {
		dist, err := g.lastHash.Distance(hash)
		if err == nil && dist <= BlankHashDistance {
			slog.Debug("skipping repeated leading frame", "distance", dist)
			g.skipped++
			g.lastHash = hash
			return true
		}
	}
	return false
}
