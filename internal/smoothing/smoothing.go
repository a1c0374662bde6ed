// Package smoothing suppresses per-frame detector jitter with exponential
// moving averages, blending rotation along the shortest arc.
package smoothing

import (
	"math"

	"github.com/ayusman/kundan/internal/geometry"
)

// Alphas holds per-field blend factors in (0, 1]. Higher is more responsive.
type Alphas struct {
	Position float64 `json:"position" validate:"gt=0,lte=1"`
	Size     float64 `json:"size" validate:"gt=0,lte=1"`
	Rotation float64 `json:"rotation" validate:"gt=0,lte=1"`
}

// DefaultAlphas returns the tuned defaults. Size blends slower than
// position so the jewelry does not pulse as the hand moves.
func DefaultAlphas() Alphas {
	return Alphas{Position: 0.35, Size: 0.25, Rotation: 0.35}
}

// EMA moves current toward target by alpha.
func EMA(current, target, alpha float64) float64 {
	return current + (target-current)*alpha
}

// ShortestAngle wraps an angular difference into (-π, π].
func ShortestAngle(diff float64) float64 {
	for diff > math.Pi {
		diff -= 2 * math.Pi
	}
	for diff <= -math.Pi {
		diff += 2 * math.Pi
	}
	return diff
}

// AngleEMA blends current toward target along the shorter arc, so crossing
// the ±π boundary never spins the overlay the long way around.
func AngleEMA(current, target, alpha float64) float64 {
	return geometry.NormalizeAngle(current + ShortestAngle(target-current)*alpha)
}

// Pose is the smoothed state shared by ellipses and ring anchors. Rings use
// Width == Height == Size.
type Pose struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

// PoseFromEllipse converts a fitted ellipse.
func PoseFromEllipse(e geometry.Ellipse) Pose {
	return Pose{X: e.CenterX, Y: e.CenterY, Width: e.Width, Height: e.Height, Rotation: e.Rotation}
}

// PoseFromRing converts a fitted ring anchor.
func PoseFromRing(r geometry.RingAnchor) Pose {
	return Pose{X: r.X, Y: r.Y, Width: r.Size, Height: r.Size, Rotation: r.Rotation}
}

// Ellipse converts the pose back to an ellipse.
func (p Pose) Ellipse() geometry.Ellipse {
	return geometry.Ellipse{CenterX: p.X, CenterY: p.Y, Width: p.Width, Height: p.Height, Rotation: p.Rotation}
}

// Ring converts the pose back to a ring anchor.
func (p Pose) Ring() geometry.RingAnchor {
	return geometry.RingAnchor{X: p.X, Y: p.Y, Size: p.Width, Rotation: p.Rotation}
}

// Smoother blends fitted poses into persistent state.
type Smoother struct {
	alphas Alphas
}

// New creates a Smoother. Alphas outside (0, 1] fall back to defaults.
func New(alphas Alphas) *Smoother {
	def := DefaultAlphas()
	return &Smoother{alphas: Alphas{
		Position: validAlpha(alphas.Position, def.Position),
		Size:     validAlpha(alphas.Size, def.Size),
		Rotation: validAlpha(alphas.Rotation, def.Rotation),
	}}
}

// Alphas returns the effective blend factors.
func (s *Smoother) Alphas() Alphas {
	return s.alphas
}

// Blend returns prev moved toward target.
func (s *Smoother) Blend(prev, target Pose) Pose {
	return Pose{
		X:        EMA(prev.X, target.X, s.alphas.Position),
		Y:        EMA(prev.Y, target.Y, s.alphas.Position),
		Width:    EMA(prev.Width, target.Width, s.alphas.Size),
		Height:   EMA(prev.Height, target.Height, s.alphas.Size),
		Rotation: AngleEMA(prev.Rotation, target.Rotation, s.alphas.Rotation),
	}
}

func validAlpha(a, fallback float64) float64 {
	if math.IsNaN(a) || a <= 0 || a > 1 {
		return fallback
	}
	return a
}
