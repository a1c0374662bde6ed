package geometry

import (
	"math"

	"github.com/ayusman/kundan/internal/detector"
)

// WristOptions tunes the wrist ellipse fit per rendering variant.
type WristOptions struct {
	// Aspect is minor/major axis ratio approximating the forearm section.
	Aspect float64
	// CenterOffset moves the center toward the forearm, as a fraction of
	// surface height. The raw wrist landmark sits slightly distal to where
	// a bangle rests.
	CenterOffset float64
	// Mirror flips landmarks horizontally to match a mirrored video.
	Mirror bool
}

// DefaultWristOptions returns the options of the segmented renderer.
func DefaultWristOptions() WristOptions {
	return WristOptions{Aspect: 0.65, CenterOffset: 0.08}
}

// RingOptions tunes the ring anchor fit.
type RingOptions struct {
	// Mirror flips landmarks horizontally. The try-on view is mirrored, so
	// callers normally set it.
	Mirror bool
}

// FitWrist fits the bangle ellipse from the wrist center, thumb base and
// pinky base landmarks.
func FitWrist(wrist, thumb, pinky Point, width, height float64, opts WristOptions) (Ellipse, error) {
	if !validCanvas(width, height) {
		return Ellipse{}, ErrInvalidCanvas
	}

	w := ToPixel(wrist, width, height, opts.Mirror)
	t := ToPixel(thumb, width, height, opts.Mirror)
	p := ToPixel(pinky, width, height, opts.Mirror)

	aspect := opts.Aspect
	if aspect <= 0 || math.IsNaN(aspect) {
		aspect = DefaultWristOptions().Aspect
	}

	major := clampExtent(Distance(t, p) * Snugness)
	minor := clampExtent(major * aspect)

	return Ellipse{
		CenterX:  w.X,
		CenterY:  w.Y + opts.CenterOffset*height,
		Width:    major,
		Height:   minor,
		Rotation: NormalizeAngle(math.Atan2(p.Y-t.Y, p.X-t.X)),
	}, nil
}

// FitRing fits the ring anchor from the ring finger base, middle and
// tip-ward joints. The anchor sits on the middle joint, which centers the
// band better than either neighbor.
func FitRing(base, mid, tip Point, width, height float64, opts RingOptions) (RingAnchor, error) {
	if !validCanvas(width, height) {
		return RingAnchor{}, ErrInvalidCanvas
	}

	b := ToPixel(base, width, height, opts.Mirror)
	m := ToPixel(mid, width, height, opts.Mirror)
	t := ToPixel(tip, width, height, opts.Mirror)

	return RingAnchor{
		X:        m.X,
		Y:        m.Y,
		Size:     clampExtent(Distance(b, m) * RingFit),
		Rotation: NormalizeAngle(math.Atan2(t.Y-m.Y, t.X-m.X)),
	}, nil
}

// WristFromHand fits the wrist ellipse of a detected hand.
func WristFromHand(h *detector.HandLandmarks, width, height float64, opts WristOptions) (Ellipse, error) {
	return FitWrist(
		landmark(h, detector.Wrist),
		landmark(h, detector.ThumbCMC),
		landmark(h, detector.PinkyMCP),
		width, height, opts,
	)
}

// RingFromHand fits the ring anchor of a detected hand using the ring
// finger MCP, PIP and DIP joints.
func RingFromHand(h *detector.HandLandmarks, width, height float64, opts RingOptions) (RingAnchor, error) {
	return FitRing(
		landmark(h, detector.RingMCP),
		landmark(h, detector.RingPIP),
		landmark(h, detector.RingDIP),
		width, height, opts,
	)
}

func landmark(h *detector.HandLandmarks, i int) Point {
	return Point{X: h.Points[i].X, Y: h.Points[i].Y}
}
