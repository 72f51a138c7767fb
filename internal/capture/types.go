package capture

import (
	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
)

// Request is one authorized capture. Zero Width or Height means the
// display's native size.
type Request struct {
	Token   string `json:"token"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Density int    `json:"density,omitempty"`
}

// Result is the single terminal outcome of a session. Exactly one of Path
// and Err is set.
type Result struct {
	ID   string
	Path string
	Err  error
}

func (r Result) OK() bool { return r.Err == nil }

// Message is the one-line description shown to a person.
func (r Result) Message() string {
	if r.Err == nil {
		return r.Path
	}
	if ae, ok := apperrors.As(r.Err); ok {
		return ae.UserMessage()
	}
	return r.Err.Error()
}

type State int32

const (
	StateIdle State = iota
	StateAuthorized
	StateMirroring
	StateFrameReady
	StateConverting
	StateSaved
	StateFailed
	StateReleased
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateAuthorized: "authorized",
	StateMirroring:  "mirroring",
	StateFrameReady: "frame_ready",
	StateConverting: "converting",
	StateSaved:      "saved",
	StateFailed:     "failed",
	StateReleased:   "released",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
