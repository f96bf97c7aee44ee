// Package server exposes conversations over HTTP and stage changes over a
// WebSocket.
package server

import "time"

// Server configuration constants
const (
	// Multipart form memory before spilling to disk
	MultipartMemory = 8 << 20

	// Buffered stage events per WebSocket subscriber
	SubscriberBuffer = 32

	// Deadline for a single WebSocket write
	WriteTimeout = 5 * time.Second

	// Upload form field carrying the recording
	UploadField = "file"
)
