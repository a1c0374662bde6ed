package capture

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/kundan/internal/detector"
)

// Frame is one camera image together with the hands detected in it.
// Image is unmirrored; Width and Height are its native resolution.
type Frame struct {
	Image     image.Image
	Hands     []detector.HandLandmarks
	Timestamp int64
	Width     int
	Height    int
}

// Valid reports whether the frame has pixels to paint.
func (f Frame) Valid() bool {
	return f.Image != nil && f.Width > 0 && f.Height > 0
}

// FrameFromMat converts a BGR Mat into a Frame stamped with ts.
func FrameFromMat(mat *gocv.Mat, hands []detector.HandLandmarks, ts time.Time) (Frame, error) {
	if mat == nil || mat.Empty() {
		return Frame{}, ErrEmptyFrame
	}
	img, err := mat.ToImage()
	if err != nil {
		return Frame{}, fmt.Errorf("convert frame: %w", err)
	}
	b := img.Bounds()
	return Frame{
		Image:     img,
		Hands:     hands,
		Timestamp: ts.UnixMilli(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}
