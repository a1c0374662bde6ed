package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion gating constants.
const (
	// BlurSize is the Gaussian kernel applied before differencing.
	BlurSize = 21
	// DiffThreshold is the per-pixel gray difference counted as change.
	DiffThreshold = 25
	// DefaultMaxStill is how many still frames may reuse the previous
	// detection before the detector runs again anyway.
	DefaultMaxStill = 5
)

// MotionGate decides per frame whether the hand detector must run. A frame
// passes when enough pixels changed since the previous one, or when too
// many still frames have gone by.
type MotionGate struct {
	threshold float64
	maxStill  int

	mu       sync.Mutex
	prevGray gocv.Mat
	primed   bool
	still    int
}

// NewMotionGate creates a gate. threshold is the percentage of changed
// pixels that counts as motion; maxStill <= 0 uses DefaultMaxStill.
func NewMotionGate(threshold float64, maxStill int) *MotionGate {
	if threshold <= 0 {
		threshold = 1.0
	}
	if maxStill <= 0 {
		maxStill = DefaultMaxStill
	}
	return &MotionGate{
		threshold: threshold,
		maxStill:  maxStill,
		prevGray:  gocv.NewMat(),
	}
}

// Pass reports whether the detector should run on frame, and the
// percentage of pixels that changed. The first frame always passes.
func (g *MotionGate) Pass(frame *gocv.Mat) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	grayBlur(frame, &blurred)

	if !g.primed {
		blurred.CopyTo(&g.prevGray)
		g.primed = true
		g.still = 0
		return true, 0
	}

	change := changedPercent(blurred, g.prevGray)
	blurred.CopyTo(&g.prevGray)

	if change > g.threshold || g.still >= g.maxStill {
		g.still = 0
		return true, change
	}
	g.still++
	return false, change
}

// Reset forgets the baseline so the next frame passes.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release()
}

// Close releases the baseline Mat. The gate may still be used afterwards.
func (g *MotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release()
}

func (g *MotionGate) release() {
	if !g.prevGray.Empty() {
		g.prevGray.Close()
		g.prevGray = gocv.NewMat()
	}
	g.primed = false
	g.still = 0
}

func grayBlur(frame *gocv.Mat, dst *gocv.Mat) {
	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, dst, image.Point{X: BlurSize, Y: BlurSize}, 0, 0, gocv.BorderDefault)
}

func changedPercent(a, b gocv.Mat) float64 {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	total := thresh.Rows() * thresh.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(thresh)) / float64(total) * 100
}
