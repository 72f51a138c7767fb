package grpcclient

import "time"

// Client configuration defaults
const (
	// Keepalive configuration
	DefaultKeepaliveTime    = 30 * time.Second
	DefaultKeepaliveTimeout = 5 * time.Second

	// Per-call deadlines applied when the caller's context has none
	CaptureTimeout = 30 * time.Second
	CallTimeout    = 5 * time.Second
	HealthTimeout  = 2 * time.Second
)
