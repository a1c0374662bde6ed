package render

import (
	"image"
	"image/draw"
	"math"
)

// Wedge names one angular slice of a product image.
type Wedge int

const (
	WedgeFront Wedge = iota
	WedgeLeft
	WedgeBack
	WedgeRight
	numWedges
)

// Shading applied to the wedges that curve away from the viewer.
const (
	sideShade = 0.72
	backShade = 0.55
)

// Gradient ramp: rows above gradientSolid stay opaque, then alpha falls
// linearly to zero at the bottom edge.
const gradientSolid = 0.35

// wedgeOf classifies an angle in degrees, measured clockwise from the
// image's up axis. Front spans -60..60, left 60..120, back 120..240 and
// right 240..300. Left and right are named from the wearer's side of the
// mirrored view.
func wedgeOf(deg float64) Wedge {
	switch {
	case deg < 60 || deg >= 300:
		return WedgeFront
	case deg < 120:
		return WedgeLeft
	case deg < 240:
		return WedgeBack
	default:
		return WedgeRight
	}
}

// toRGBA copies src into a premultiplied RGBA image at origin (0, 0).
func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// splitWedges cuts src into four full-color wedge images of the same size.
// Pixels closer to the center than inner (fraction of the half-size) belong
// to no wedge.
func splitWedges(src *image.RGBA, inner float64) [numWedges]*image.RGBA {
	b := src.Bounds()
	var out [numWedges]*image.RGBA
	for i := range out {
		out[i] = image.NewRGBA(b)
	}

	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2
	half := math.Min(float64(b.Dx()), float64(b.Dy())) / 2
	hole := inner * half

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := src.PixOffset(x, y)
			if src.Pix[i+3] == 0 {
				continue
			}
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if math.Hypot(dx, dy) < hole {
				continue
			}
			deg := math.Atan2(dx, -dy) * 180 / math.Pi
			if deg < 0 {
				deg += 360
			}
			dst := out[wedgeOf(deg)]
			copy(dst.Pix[i:i+4], src.Pix[i:i+4])
		}
	}
	return out
}

// shade multiplies color channels by k, keeping alpha.
func shade(img *image.RGBA, k float64) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = scale8(img.Pix[i], k)
		img.Pix[i+1] = scale8(img.Pix[i+1], k)
		img.Pix[i+2] = scale8(img.Pix[i+2], k)
	}
}

// highlight adds white proportional to each pixel's alpha.
func highlight(img *image.RGBA, h float64) {
	for i := 0; i < len(img.Pix); i += 4 {
		a := float64(img.Pix[i+3])
		for c := 0; c < 3; c++ {
			v := float64(img.Pix[i+c]) + h*a
			if v > a {
				v = a
			}
			img.Pix[i+c] = uint8(v + 0.5)
		}
	}
}

// fade scales every channel by o, lowering opacity of a premultiplied image.
func fade(img *image.RGBA, o float64) {
	for i := range img.Pix {
		img.Pix[i] = scale8(img.Pix[i], o)
	}
}

// gradientFade applies the vertical alpha ramp in place.
func gradientFade(img *image.RGBA) {
	b := img.Bounds()
	h := float64(b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		t := (float64(y-b.Min.Y) + 0.5) / h
		if t <= gradientSolid {
			continue
		}
		o := 1 - (t-gradientSolid)/(1-gradientSolid)
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X-1, y)+4]
		for i := range row {
			row[i] = scale8(row[i], o)
		}
	}
}

func scale8(v uint8, k float64) uint8 {
	f := float64(v) * k
	if f <= 0 {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(f + 0.5)
}

// preparedImage holds everything derived from one product image for one
// parameter set, so per-frame work is only resampling.
type preparedImage struct {
	base     *image.RGBA
	gradient *image.RGBA
	wedges   [numWedges]*image.RGBA
}

func prepare(src image.Image, p Params) *preparedImage {
	base := toRGBA(src)

	grad := image.NewRGBA(base.Bounds())
	copy(grad.Pix, base.Pix)
	gradientFade(grad)

	wedges := splitWedges(base, p.WedgeInnerRadius)
	highlight(wedges[WedgeFront], p.HighlightIntensity)
	shade(wedges[WedgeLeft], sideShade)
	shade(wedges[WedgeRight], sideShade)
	shade(wedges[WedgeBack], backShade)
	fade(wedges[WedgeBack], p.OcclusionOpacity)

	return &preparedImage{base: base, gradient: grad, wedges: wedges}
}
