// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Nearest-identity diagnostics
const (
	// DefaultNearestLimit is the default number of neighbors returned by nearest queries
	DefaultNearestLimit = 5

	// MaxNearestLimit caps the number of neighbors a single request may ask for
	MaxNearestLimit = 50
)

// Upload constants
const (
	// MaxImageUpload is the maximum size of a multipart face upload in bytes
	MaxImageUpload = 10 << 20

	// MaxImageSize is the maximum dimension (width or height) sent to the detector
	MaxImageSize = 1920
)

// Enrollment session constants
const (
	// EnrollmentTTL is how long an idle enrollment session is kept
	EnrollmentTTL = 30 * time.Minute

	// EnrollmentCleanupInterval is how often expired sessions are swept
	EnrollmentCleanupInterval = time.Minute
)
