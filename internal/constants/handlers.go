package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (20MB)
	MaxUploadSize = 20 << 20
)

// Worker constants
const (
	// DefaultConcurrency is the default number of parallel workers for file scanning
	DefaultConcurrency = 4
)
