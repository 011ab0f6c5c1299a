// Package monitor runs the capture, detection, and recognition loop.
package monitor

// Monitoring constants
const (
	// Hamming distance at or below which consecutive captures count as the
	// same frame and detection is skipped
	MaxHashDistance = 3

	// Captures per second when the configured rate is unusable
	DefaultCaptureRate = 1.0
)
