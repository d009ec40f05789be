// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection inbound message rate limiting
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Default and ceiling for snapshot thumbnail width
	SnapshotDefaultWidth = 320
	SnapshotMaxWidth     = 1280
)
