package render

import (
	"image"
	"image/color"
	"math"

	"github.com/ayusman/kundan/internal/geometry"
)

// ellipseMask is opaque strictly inside an ellipse scaled by k and
// transparent elsewhere.
type ellipseMask struct {
	e      geometry.Ellipse
	k      float64
	bounds image.Rectangle
}

func (m ellipseMask) ColorModel() color.Model { return color.AlphaModel }
func (m ellipseMask) Bounds() image.Rectangle { return m.bounds }

func (m ellipseMask) At(x, y int) color.Color {
	if m.e.Contains(float64(x)+0.5, float64(y)+0.5, m.k) {
		return color.Alpha{A: 0xff}
	}
	return color.Alpha{}
}

// radialMask is a radial falloff around a focus point, clipped to the
// annulus of clip between hole and 1. Alpha peaks at intensity on the focus
// and reaches zero at radius.
type radialMask struct {
	clip      geometry.Ellipse
	hole      float64
	fx, fy    float64
	radius    float64
	intensity float64
	bounds    image.Rectangle
}

func (m radialMask) ColorModel() color.Model { return color.AlphaModel }
func (m radialMask) Bounds() image.Rectangle { return m.bounds }

func (m radialMask) At(x, y int) color.Color {
	px, py := float64(x)+0.5, float64(y)+0.5
	if !m.clip.Contains(px, py, 1) || m.clip.Contains(px, py, m.hole) {
		return color.Alpha{}
	}
	d := math.Hypot(px-m.fx, py-m.fy) / m.radius
	if d >= 1 {
		return color.Alpha{}
	}
	f := 1 - d
	return color.Alpha{A: uint8(math.Round(255 * m.intensity * f * f))}
}

// ellipseBounds returns the integer bounding box of e scaled by k.
func ellipseBounds(e geometry.Ellipse, k float64) image.Rectangle {
	a := e.Width / 2 * k
	b := e.Height / 2 * k
	sin, cos := math.Sincos(e.Rotation)
	hx := math.Hypot(a*cos, b*sin)
	hy := math.Hypot(a*sin, b*cos)
	return image.Rect(
		int(math.Floor(e.CenterX-hx)), int(math.Floor(e.CenterY-hy)),
		int(math.Ceil(e.CenterX+hx)), int(math.Ceil(e.CenterY+hy)),
	)
}

// destinationOut removes dst content within r in proportion to the mask's
// alpha: dst = dst * (1 - mask).
func destinationOut(dst *image.RGBA, r image.Rectangle, mask image.Image) {
	r = r.Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			_, _, _, ma := mask.At(x, y).RGBA()
			if ma == 0 {
				continue
			}
			keep := float64(0xffff-ma) / 0xffff
			i := dst.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				dst.Pix[i+c] = scale8(dst.Pix[i+c], keep)
			}
		}
	}
}
