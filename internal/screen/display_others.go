//go:build !linux && !windows && !darwin

package screen

import "time"

func newDisplayProjector(time.Duration) (Projector, error) {
	return nil, ErrUnsupported
}
