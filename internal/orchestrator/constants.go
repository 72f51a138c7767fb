package orchestrator

import "time"

// Orchestrator configuration constants
const (
	// How long Stop waits for an in-flight capture to release
	ShutdownTimeout = 5 * time.Second

	// Upper bound for marshalling one capture result onto the gallery loop
	DeliveryTimeout = 5 * time.Second

	// Forwarded gallery event buffer, used when config leaves it unset
	DefaultEventBuffer = 64
)
