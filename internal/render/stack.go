package render

import (
	"math"

	"github.com/ayusman/kundan/internal/geometry"
)

// Stacking constants.
const (
	// DefaultStackSpacing is the gap between stacked items as a fraction
	// of the ellipse height.
	DefaultStackSpacing = 0.13
	MinStackSpacing     = 0.12
	MaxStackSpacing     = 0.15
	// MaxStack keeps stacked opacities distinct and positive.
	MaxStack = 8

	stackBaseOpacity = 0.95
	stackFalloff     = 0.05
)

// StackItem places one item of a stack.
type StackItem struct {
	Index   int
	Offset  float64
	Opacity float64
	Ellipse geometry.Ellipse
}

// Stack lays out n items on the wrist, each shifted toward the forearm by
// index × height × spacing and slightly lighter than the one before, so
// items further from the wrist read as behind. n is clamped to
// [1, MaxStack] and spacing to [MinStackSpacing, MaxStackSpacing].
func Stack(e geometry.Ellipse, n int, spacing float64) []StackItem {
	if n < 1 {
		n = 1
	}
	if n > MaxStack {
		n = MaxStack
	}
	if math.IsNaN(spacing) || spacing == 0 {
		spacing = DefaultStackSpacing
	}
	spacing = math.Min(math.Max(spacing, MinStackSpacing), MaxStackSpacing)

	step := e.Height * spacing
	items := make([]StackItem, n)
	for i := range items {
		off := float64(i) * step
		items[i] = StackItem{
			Index:   i,
			Offset:  off,
			Opacity: stackBaseOpacity - float64(i)*stackFalloff,
			Ellipse: e.Offset(0, off),
		}
	}
	return items
}
