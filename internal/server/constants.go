// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection WebSocket message rate limiting
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Upper bound for one broadcast write to a WebSocket client
	BroadcastWriteTimeout = 5 * time.Second

	// Largest accepted JSON request body
	MaxRequestBody = 64 << 10

	// Largest thumbnail edge a client may ask for
	MaxThumbnailSize = 2048
)
