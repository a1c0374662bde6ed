package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrServiceNotFound is returned when the landmark service script cannot be located.
var ErrServiceNotFound = errors.New("hand landmark service not found")

// Detector defines the interface for hand detection implementations.
// It is the keypoint source of a try-on session: each call yields zero to
// MaxHands hands for one video frame.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Hands below the configured confidence are omitted, never returned
	// with a low score. Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int `json:"max_num_hands"`

	// ModelComplexity selects the landmark model tier (0 = lite, 1 = full).
	ModelComplexity int `json:"model_complexity"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `json:"min_detection_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `json:"min_tracking_confidence"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		ModelComplexity: 1,
		MinConfidence:   0.6,
		MinTrackingConf: 0.5,
	}
}
