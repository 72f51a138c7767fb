// Package capture runs capture sessions: one authorized request in, one
// saved PNG or one failure out, with platform resources released exactly
// once either way.
package capture

import "time"

// User-visible messages.
const (
	MsgAuthorizationFailed = "Failed to start media projection"
	MsgCaptureFailed       = "Failed to capture screen"
	MsgSaveFailed          = "Failed to save screenshot"
	MsgSessionBusy         = "A capture is already in progress"
	MsgCancelled           = "Capture cancelled"
)

// Output file naming: Screenshot_<yyyyMMdd_HHmmss>.png
const (
	FilePrefix     = "Screenshot_"
	FileTimeLayout = "20060102_150405"
	FileExt        = ".png"
)

const (
	// DefaultDelay lets the mirrored surface receive its first real frame.
	DefaultDelay = 500 * time.Millisecond

	// BlankHashDistance is the largest perception-hash distance at which a
	// frame still counts as a repeat of the last skipped one.
	BlankHashDistance = 2
)
