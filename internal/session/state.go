package session

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ayusman/kundan/internal/geometry"
)

// State is the lifecycle of a Session.
type State int

const (
	// StateUninitialized means neither camera nor product image is ready.
	StateUninitialized State = iota
	// StateReady means both preconditions have completed.
	StateReady
	// StateRunning means frames are being painted.
	StateRunning
	// StateTornDown means the session is closed for good.
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Anchor is one smoothed anchor drawn in a frame. Exactly one of Ellipse
// and Ring is set.
type Anchor struct {
	TrackID   int                  `json:"track_id"`
	Placement string               `json:"placement"`
	Ellipse   *geometry.Ellipse    `json:"ellipse,omitempty"`
	Ring      *geometry.RingAnchor `json:"ring,omitempty"`
}

// AnchorSet is every anchor of one frame.
type AnchorSet struct {
	Frame     uint64   `json:"frame"`
	Timestamp int64    `json:"timestamp"`
	Anchors   []Anchor `json:"anchors"`
}

// paintVideo replaces dst with src scaled to dst, flipped horizontally
// when mirror is set.
func paintVideo(dst *image.RGBA, src image.Image, mirror bool) {
	sb, db := src.Bounds(), dst.Bounds()
	if !mirror && sb.Size() == db.Size() {
		draw.Draw(dst, db, src, sb.Min, draw.Src)
		return
	}

	kx := float64(db.Dx()) / float64(sb.Dx())
	ky := float64(db.Dy()) / float64(sb.Dy())
	a, c := kx, float64(db.Min.X)-kx*float64(sb.Min.X)
	if mirror {
		a, c = -kx, float64(db.Max.X)+kx*float64(sb.Min.X)
	}
	s2d := f64.Aff3{
		a, 0, c,
		0, ky, float64(db.Min.Y) - ky*float64(sb.Min.Y),
	}
	xdraw.NearestNeighbor.Transform(dst, s2d, src, sb, xdraw.Src, nil)
}
