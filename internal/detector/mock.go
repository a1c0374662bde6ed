package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	hands  []HandLandmarks
	err    error
	calls  int
	closed bool
	mu     sync.Mutex
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector as released.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Shifted returns a copy of h with every landmark moved by (dx, dy).
func Shifted(h HandLandmarks, dx, dy float64) HandLandmarks {
	out := h
	for i := range out.Points {
		out.Points[i].X += dx
		out.Points[i].Y += dy
	}
	return out
}

// BackOfHandLandmarks returns a preset HandLandmarks of a relaxed right hand
// held knuckles-up with the wrist clearly visible, the pose shoppers use to
// try on bangles and bracelets.
func BackOfHandLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.93,
	}

	// Wrist low in the frame, forearm continuing downward
	landmarks.Points[Wrist] = Point3D{X: 0.50, Y: 0.70, Z: 0.0}

	// Thumb relaxed to the side
	landmarks.Points[ThumbCMC] = Point3D{X: 0.40, Y: 0.65, Z: -0.01}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.36, Y: 0.60, Z: -0.02}
	landmarks.Points[ThumbIP] = Point3D{X: 0.33, Y: 0.55, Z: -0.02}
	landmarks.Points[ThumbTip] = Point3D{X: 0.31, Y: 0.51, Z: -0.02}

	// Index finger
	landmarks.Points[IndexMCP] = Point3D{X: 0.43, Y: 0.50, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.42, Y: 0.42, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.42, Y: 0.37, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.42, Y: 0.33, Z: 0.0}

	// Middle finger
	landmarks.Points[MiddleMCP] = Point3D{X: 0.49, Y: 0.49, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.49, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.49, Y: 0.34, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.49, Y: 0.30, Z: 0.0}

	// Ring finger
	landmarks.Points[RingMCP] = Point3D{X: 0.55, Y: 0.50, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.56, Y: 0.42, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.56, Y: 0.37, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.57, Y: 0.33, Z: 0.0}

	// Pinky finger
	landmarks.Points[PinkyMCP] = Point3D{X: 0.60, Y: 0.53, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.62, Y: 0.47, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.63, Y: 0.43, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.64, Y: 0.40, Z: 0.0}

	return landmarks
}

// OpenPalmLandmarks returns a preset HandLandmarks representing an open palm gesture.
// All fingers are extended outward.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	// Wrist at base
	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended to the side
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	// Index finger extended upward
	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	// Middle finger extended upward (slightly longer)
	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	// Ring finger extended upward
	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	// Pinky finger extended upward
	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return landmarks
}
