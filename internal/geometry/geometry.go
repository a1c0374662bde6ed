// Package geometry fits jewelry anchors to hand landmarks.
//
// All fitted primitives are expressed in output-surface pixels. Landmarks
// arrive normalized to [0,1] and are scaled by the surface width and height.
package geometry

import (
	"errors"
	"math"
)

// Fit constants.
const (
	// Snugness scales the thumb-base to pinky-base span up to the size of a
	// bangle resting on the wrist.
	Snugness = 1.8
	// RingFit scales the ring-finger base-to-mid span to the ring band size.
	RingFit = 1.2
	// MinExtent is the smallest width, height or size a fit may produce.
	MinExtent = 4.0
)

// ErrInvalidCanvas is returned when the surface dimensions are not positive.
var ErrInvalidCanvas = errors.New("canvas width and height must be positive")

// Point is a 2-D position, normalized or in pixels depending on context.
type Point struct {
	X, Y float64
}

// Ellipse anchors wrist jewelry. Width is the major axis along the hand's
// lateral direction, Height the minor axis.
type Ellipse struct {
	CenterX  float64 `json:"center_x"`
	CenterY  float64 `json:"center_y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

// Valid reports whether the ellipse can be rendered.
func (e Ellipse) Valid() bool {
	return finite(e.CenterX, e.CenterY, e.Width, e.Height, e.Rotation) && e.Width > 0 && e.Height > 0
}

// Offset returns the ellipse moved by (dx, dy).
func (e Ellipse) Offset(dx, dy float64) Ellipse {
	e.CenterX += dx
	e.CenterY += dy
	return e
}

// Contains reports whether (x, y) lies strictly inside the ellipse scaled
// by k around its center.
func (e Ellipse) Contains(x, y, k float64) bool {
	a := e.Width / 2 * k
	b := e.Height / 2 * k
	if a <= 0 || b <= 0 {
		return false
	}
	sin, cos := math.Sincos(-e.Rotation)
	dx, dy := x-e.CenterX, y-e.CenterY
	lx := dx*cos - dy*sin
	ly := dx*sin + dy*cos
	return (lx*lx)/(a*a)+(ly*ly)/(b*b) < 1
}

// RingAnchor anchors a ring on the ring finger. Rotation is the direction
// of the finger's long axis in display (mirrored) space.
type RingAnchor struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Size     float64 `json:"size"`
	Rotation float64 `json:"rotation"`
}

// Valid reports whether the anchor can be rendered.
func (r RingAnchor) Valid() bool {
	return finite(r.X, r.Y, r.Size, r.Rotation) && r.Size > 0
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// ToPixel converts a normalized point to surface pixels, optionally
// mirroring it horizontally first.
func ToPixel(p Point, width, height float64, mirror bool) Point {
	x := p.X
	if mirror {
		x = 1 - x
	}
	return Point{X: x * width, Y: p.Y * height}
}

// NormalizeAngle wraps an angle into (-π, π].
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

func clampExtent(v float64) float64 {
	if math.IsNaN(v) || v < MinExtent {
		return MinExtent
	}
	return v
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func validCanvas(width, height float64) bool {
	return finite(width, height) && width > 0 && height > 0
}
