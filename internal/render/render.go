// Package render composites product images onto fitted hand anchors.
//
// A Compositor never writes to the visible output. Every call assembles its
// result on a fresh transparent Layer which the caller blends in, so
// intermediate geometry such as occlusion masks can never leak to screen.
package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"reflect"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ayusman/kundan/internal/geometry"
)

var (
	// ErrDegenerate is returned when the image or anchor cannot be drawn.
	ErrDegenerate = errors.New("degenerate render input")
	// ErrUnknownStrategy is returned by ParseStrategy.
	ErrUnknownStrategy = errors.New("unknown render strategy")
	// ErrInvalidParams is returned by Params.Validate.
	ErrInvalidParams = errors.New("invalid render params")
)

// maxCached bounds the number of prepared product images kept in memory.
const maxCached = 16

// Layer is a composited overlay. Its image bounds are in surface pixels.
type Layer struct {
	Image *image.RGBA
}

// Bounds returns the surface region the layer covers.
func (l *Layer) Bounds() image.Rectangle {
	return l.Image.Bounds()
}

// DrawOnto blends the layer over dst at the given opacity.
func (l *Layer) DrawOnto(dst draw.Image, opacity float64) {
	if l == nil || l.Image == nil || opacity <= 0 {
		return
	}
	r := l.Image.Bounds()
	if opacity >= 1 {
		draw.Draw(dst, r, l.Image, r.Min, draw.Over)
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(opacity * 255))})
	draw.DrawMask(dst, r, l.Image, r.Min, mask, image.Point{}, draw.Over)
}

// Compositor renders product images with one strategy and parameter set.
// It caches per-image preprocessing and is safe for concurrent use.
type Compositor struct {
	strategy Strategy
	params   Params
	kernel   xdraw.Interpolator

	mu    sync.Mutex
	cache map[image.Image]*preparedImage
}

// NewCompositor creates a Compositor. Invalid params fall back to defaults.
func NewCompositor(strategy Strategy, params Params) *Compositor {
	if params.Validate() != nil {
		params = DefaultParams()
	}
	return &Compositor{
		strategy: strategy,
		params:   params,
		kernel:   xdraw.BiLinear,
		cache:    make(map[image.Image]*preparedImage),
	}
}

// Strategy returns the configured strategy.
func (c *Compositor) Strategy() Strategy {
	return c.strategy
}

// Params returns the effective parameters.
func (c *Compositor) Params() Params {
	return c.params
}

// Composite renders img wrapped onto the wrist ellipse e.
func (c *Compositor) Composite(e geometry.Ellipse, img image.Image) (*Layer, error) {
	if !e.Valid() || emptyImage(img) {
		return nil, ErrDegenerate
	}

	prep := c.prepared(img)
	sb := prep.base.Bounds()
	kx := e.Width / float64(sb.Dx())
	ky := e.Height / float64(sb.Dy())
	reach := math.Hypot(float64(sb.Dx())*kx, float64(sb.Dy())*math.Max(kx, ky)*c.params.FrontThickness) / 2
	layer := newLayer(e.CenterX, e.CenterY, reach)

	switch c.strategy {
	case StrategyDirect:
		c.place(layer, prep.base, e.CenterX, e.CenterY, kx, kx, e.Rotation)
	case StrategyWarp:
		c.place(layer, prep.base, e.CenterX, e.CenterY, kx, ky, e.Rotation)
	case StrategyGradient:
		c.place(layer, prep.gradient, e.CenterX, e.CenterY, kx, ky, e.Rotation)
	default:
		c.segmented(layer, prep, e, kx, ky)
	}

	return layer, nil
}

// CompositeRing renders img as a ring on anchor r. The ring image is drawn
// with its band horizontal when the finger points up.
func (c *Compositor) CompositeRing(r geometry.RingAnchor, img image.Image) (*Layer, error) {
	if !r.Valid() || emptyImage(img) {
		return nil, ErrDegenerate
	}

	prep := c.prepared(img)
	sb := prep.base.Bounds()
	k := r.Size / math.Max(float64(sb.Dx()), float64(sb.Dy()))

	layer := newLayer(r.X, r.Y, r.Size*math.Sqrt2/2)
	c.place(layer, prep.base, r.X, r.Y, k, k, r.Rotation+math.Pi/2)
	return layer, nil
}

// segmented assembles the wedge composite on layer, back to front: back
// wedge, occlusion, sides, front, then the contact shadow.
func (c *Compositor) segmented(layer *Layer, prep *preparedImage, e geometry.Ellipse, kx, ky float64) {
	p := c.params

	// The back wedge is cut from the image's lower arc, so it already sits
	// in its 180° position and needs no extra turn.
	c.place(layer, prep.wedges[WedgeBack], e.CenterX, e.CenterY, kx, ky, e.Rotation)

	foot := ellipseBounds(e, p.WristFootprint).Intersect(layer.Bounds())
	destinationOut(layer.Image, foot, ellipseMask{e: e, k: p.WristFootprint, bounds: foot})

	c.place(layer, prep.wedges[WedgeLeft], e.CenterX, e.CenterY, kx*p.SideCompression, ky, e.Rotation)
	c.place(layer, prep.wedges[WedgeRight], e.CenterX, e.CenterY, kx*p.SideCompression, ky, e.Rotation)
	c.place(layer, prep.wedges[WedgeFront], e.CenterX, e.CenterY, kx, ky*p.FrontThickness, e.Rotation)

	if p.ShadowIntensity <= 0 {
		return
	}
	// Darkest just below the front wedge's inner edge, and never inside the
	// wedge hole, which the wrist fills.
	sin, cos := math.Sincos(e.Rotation)
	ly := -e.Height / 2 * p.WedgeInnerRadius
	clip := ellipseBounds(e, 1).Intersect(layer.Bounds())
	draw.DrawMask(layer.Image, clip, image.Black, image.Point{}, radialMask{
		clip:      e,
		hole:      p.WedgeInnerRadius,
		fx:        e.CenterX - ly*sin,
		fy:        e.CenterY + ly*cos,
		radius:    e.Height / 2,
		intensity: p.ShadowIntensity,
		bounds:    clip,
	}, clip.Min, draw.Over)
}

// place draws src centered at (cx, cy), scaled by (kx, ky) in its own
// frame and then rotated by theta.
func (c *Compositor) place(layer *Layer, src *image.RGBA, cx, cy, kx, ky, theta float64) {
	sb := src.Bounds()
	scx := float64(sb.Min.X) + float64(sb.Dx())/2
	scy := float64(sb.Min.Y) + float64(sb.Dy())/2
	sin, cos := math.Sincos(theta)

	a, b := cos*kx, -sin*ky
	d, e := sin*kx, cos*ky
	s2d := f64.Aff3{
		a, b, cx - (a*scx + b*scy),
		d, e, cy - (d*scx + e*scy),
	}
	c.kernel.Transform(layer.Image, s2d, src, sb, xdraw.Over, nil)
}

func (c *Compositor) prepared(img image.Image) *preparedImage {
	if !reflect.TypeOf(img).Comparable() {
		return prepare(img, c.params)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.cache[img]; ok {
		return p
	}
	if len(c.cache) >= maxCached {
		c.cache = make(map[image.Image]*preparedImage)
	}
	p := prepare(img, c.params)
	c.cache[img] = p
	return p
}

func newLayer(cx, cy, radius float64) *Layer {
	r := radius + 2
	return &Layer{Image: image.NewRGBA(image.Rect(
		int(math.Floor(cx-r)), int(math.Floor(cy-r)),
		int(math.Ceil(cx+r)), int(math.Ceil(cy+r)),
	))}
}

func emptyImage(img image.Image) bool {
	if img == nil {
		return true
	}
	if v := reflect.ValueOf(img); v.Kind() == reflect.Pointer && v.IsNil() {
		return true
	}
	return img.Bounds().Empty()
}
