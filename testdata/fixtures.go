// Package testdata generates synthetic product images and camera frames
// for tests. Nothing here touches the filesystem unless asked to.
package testdata

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// Wedge colors used by WedgeDisc. Only Back carries red.
var (
	FrontColor = color.NRGBA{G: 0xff, A: 0xff}
	SideColor  = color.NRGBA{B: 0xff, A: 0xff}
	BackColor  = color.NRGBA{R: 0xff, A: 0xff}
)

// Bangle returns a size×size annulus of color c with the given inner radius
// as a fraction of the half-size.
func Bangle(size int, inner float64, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	half := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)+0.5-half, float64(y)+0.5-half) / half
			if d >= inner && d <= 1 {
				img.SetNRGBA(x, y, c)
			}
		}
	}
	return img
}

// WedgeDisc returns a size×size disc colored by angle, measured clockwise
// from up: FrontColor within 60° of up, BackColor within 60° of down and
// SideColor elsewhere.
func WedgeDisc(size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	half := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x) + 0.5 - half
			dy := float64(y) + 0.5 - half
			if math.Hypot(dx, dy) > half {
				continue
			}
			deg := math.Atan2(dx, -dy) * 180 / math.Pi
			if deg < 0 {
				deg += 360
			}
			switch {
			case deg < 60 || deg >= 300:
				img.SetNRGBA(x, y, FrontColor)
			case deg >= 120 && deg < 240:
				img.SetNRGBA(x, y, BackColor)
			default:
				img.SetNRGBA(x, y, SideColor)
			}
		}
	}
	return img
}

// Solid returns a w×h image filled with c.
func Solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// PNG encodes img.
func PNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// WritePNG encodes img to dir/name and returns the path.
func WritePNG(dir, name string, img image.Image) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, PNG(img), 0o644); err != nil {
		return "", fmt.Errorf("write fixture %s: %w", name, err)
	}
	return path, nil
}

// FrameMat returns a w×h BGR camera frame filled with one gray level.
// The caller must Close it.
func FrameMat(w, h int, gray float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(gray, gray, gray, 0), h, w, gocv.MatTypeCV8UC3)
}
