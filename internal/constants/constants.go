// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// MaxThreshold is the largest distance threshold a request may ask for
	MaxThreshold = 2.0
)

// File upload constants
const (
	// MaxUploadSize is the maximum query image upload size in bytes (50MB)
	MaxUploadSize = 50 << 20

	// MaxUploadMemory is how much of a multipart upload is kept in memory before spilling to disk
	MaxUploadMemory = 32 << 20
)

// Server constants
const (
	// RequestTimeout bounds a single search, which re-scans the whole corpus
	RequestTimeout = 5 * time.Minute

	// ShutdownTimeout is how long in-flight searches get to finish on shutdown
	ShutdownTimeout = 30 * time.Second
)
