// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Registration number constants
const (
	// DefaultPrefix is the institution prefix every registration number starts with
	DefaultPrefix = "URK"

	// RegNoSuffixLength is the number of characters after the prefix (2 digits, 2 letters, 4 digits)
	RegNoSuffixLength = 8
)

// Card detection constants
const (
	// DefaultMinCardArea is the minimum contour area in pixels for a card candidate
	DefaultMinCardArea = 8000

	// AdaptiveMinCardArea is the minimum contour area used by the adaptive threshold strategy
	AdaptiveMinCardArea = 10000

	// MinCardAspect and MaxCardAspect bound the width/height ratio of a card bounding box
	MinCardAspect = 0.8
	MaxCardAspect = 3.0

	// LenientAreaFactor multiplies the minimum area for candidates outside the aspect range
	LenientAreaFactor = 1.5

	// MinCardExtent is the minimum contour area / bounding box area for lenient candidates
	MinCardExtent = 0.6

	// PolygonEpsilonFactor scales the contour perimeter into the polygon approximation tolerance
	PolygonEpsilonFactor = 0.02
)

// Scanning constants
const (
	// DefaultStabilityThreshold is the number of consecutive identical reads required
	DefaultStabilityThreshold = 3

	// DefaultScanInterval is the minimum spacing between processing task starts
	DefaultScanInterval = time.Second

	// DefaultCooldown is the pause after an accepted scan
	DefaultCooldown = 2 * time.Second

	// LedgerWriteTimeout bounds a single attendance write
	LedgerWriteTimeout = 30 * time.Second

	// AcquisitionOfflineAfter is the number of consecutive failed reads before the camera is reported offline
	AcquisitionOfflineAfter = 10

	// AcquisitionBackoffBase is the wait after the first failed read, doubled per further failure
	AcquisitionBackoffBase = 250 * time.Millisecond

	// AcquisitionBackoffMax caps the wait between failed reads
	AcquisitionBackoffMax = 5 * time.Second
)

// Attendance constants
const (
	// StatusPresent is the status column value written for every attendance row
	StatusPresent = "Present"

	// DateLayout is the civil date layout used in the ledger
	DateLayout = "2006-01-02"

	// TimeLayout is the wall-clock time layout used in the ledger
	TimeLayout = "15:04:05"

	// PlaceholderNamePrefix is used when no name source knows the student
	PlaceholderNamePrefix = "QR_STUDENT_"
)
