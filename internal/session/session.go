// Package session runs one live try-on: it joins camera and product-image
// readiness, then paints every delivered frame with the fitted, smoothed
// and composited jewelry overlays.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/kundan/internal/capture"
	"github.com/ayusman/kundan/internal/geometry"
	"github.com/ayusman/kundan/internal/log"
	"github.com/ayusman/kundan/internal/render"
	"github.com/ayusman/kundan/internal/smoothing"
)

var (
	// ErrAssetLoad is returned by Start when a product image cannot be
	// loaded. It is meant to be shown to the shopper.
	ErrAssetLoad = errors.New("product image could not be loaded")
	// ErrSource is returned when the camera or detector fails.
	ErrSource = errors.New("camera unavailable")
	// ErrState is returned when Start is called twice.
	ErrState = errors.New("session already started")
	// ErrClosed is returned when the session was closed during Start.
	ErrClosed = errors.New("session closed")
	// ErrNoProducts is returned by New when nothing is selected.
	ErrNoProducts = errors.New("no products selected")
)

// Source delivers frames with detected hands. Start must invoke onFrame
// from one goroutine at a time and must not call it after Close returns.
type Source interface {
	Ready(ctx context.Context) error
	Start(onFrame func(capture.Frame)) error
	Close() error
}

// ImageLoader resolves a product ID to its overlay image.
type ImageLoader interface {
	Load(ctx context.Context, id string) (image.Image, error)
}

// Placement says where a product is worn.
type Placement int

const (
	// Wrist items are stacked on the wrist ellipse.
	Wrist Placement = iota
	// Ring items sit on the ring finger.
	Ring
)

func (p Placement) String() string {
	if p == Ring {
		return "ring"
	}
	return "wrist"
}

// Item is one selected product.
type Item struct {
	ID        string
	Placement Placement
}

// Config configures a Session.
type Config struct {
	Items        []Item
	Strategy     render.Strategy
	Params       *render.Params
	StackSpacing float64
	Mirror       bool
	Tracker      smoothing.TrackerConfig
}

// Session is one try-on. All methods are safe for concurrent use.
type Session struct {
	id     string
	cfg    Config
	src    Source
	assets ImageLoader
	log    *logrus.Entry

	variant    render.Variant
	compositor *render.Compositor
	wristOpts  geometry.WristOptions
	ringOpts   geometry.RingOptions

	mu       sync.Mutex
	state    State
	starting bool
	err      error

	wristImgs []image.Image
	ringImg   image.Image

	wrist   *smoothing.Tracker
	ring    *smoothing.Tracker
	surface *image.RGBA
	anchors AnchorSet
	frames  uint64
	skipped uint64
}

// New creates a session in StateUninitialized. Nothing is opened until Start.
func New(cfg Config, src Source, assets ImageLoader, logger *logrus.Entry) (*Session, error) {
	if len(cfg.Items) == 0 {
		return nil, ErrNoProducts
	}
	if logger == nil {
		logger = log.Discard()
	}

	v := render.VariantFor(cfg.Strategy)
	if cfg.Params != nil {
		v.Params = *cfg.Params
	}
	id := uuid.NewString()

	return &Session{
		id:         id,
		cfg:        cfg,
		src:        src,
		assets:     assets,
		log:        logger.WithField("session", id),
		variant:    v,
		compositor: v.Compositor(),
		wristOpts:  v.WristOptions(cfg.Mirror),
		ringOpts:   geometry.RingOptions{Mirror: cfg.Mirror},
		wrist:      smoothing.NewTracker(cfg.Tracker),
		ring:       smoothing.NewTracker(cfg.Tracker),
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Strategy returns the rendering strategy in use.
func (s *Session) Strategy() render.Strategy {
	return s.variant.Strategy
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start waits for the camera and every product image, then starts the
// frame loop. On failure the source is closed and the session torn down.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized || s.starting {
		s.mu.Unlock()
		return ErrState
	}
	s.starting = true
	s.mu.Unlock()

	wrist, ring, err := s.join(ctx)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.starting = false
	if s.state == StateTornDown {
		s.mu.Unlock()
		return ErrClosed
	}
	s.wristImgs = wrist
	s.ringImg = ring
	s.state = StateReady
	s.log.WithFields(log.Fields{
		"strategy": s.variant.Strategy,
		"wrist":    len(wrist),
		"ring":     ring != nil,
	}).Info("session ready")
	s.state = StateRunning
	s.mu.Unlock()

	if err := s.src.Start(s.OnFrame); err != nil {
		err = fmt.Errorf("%w: %v", ErrSource, err)
		s.fail(err)
		return err
	}
	return nil
}

// join resolves the two preconditions of the frame loop concurrently.
func (s *Session) join(ctx context.Context) ([]image.Image, image.Image, error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.src.Ready(gctx); err != nil {
			return fmt.Errorf("%w: %v", ErrSource, err)
		}
		return nil
	})

	imgs := make([]image.Image, len(s.cfg.Items))
	for i, it := range s.cfg.Items {
		g.Go(func() error {
			img, err := s.assets.Load(gctx, it.ID)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrAssetLoad, it.ID, err)
			}
			imgs[i] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var wrist []image.Image
	var ring image.Image
	for i, it := range s.cfg.Items {
		switch {
		case it.Placement == Ring && ring == nil:
			ring = imgs[i]
		case it.Placement == Wrist && len(wrist) < render.MaxStack:
			wrist = append(wrist, imgs[i])
		default:
			s.log.WithField("product", it.ID).Warn("product ignored, slot already taken")
		}
	}
	return wrist, ring, nil
}

// Fail tears the session down because of an unrecoverable source fault.
func (s *Session) Fail(err error) {
	s.fail(fmt.Errorf("%w: %v", ErrSource, err))
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.starting = false
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()

	s.log.WithError(err).Error("session failed")
	if cerr := s.Close(); cerr != nil {
		s.log.WithError(cerr).Warn("closing source after failure")
	}
}

// Close stops the source and drops all per-hand state. It is idempotent;
// frames delivered afterwards are ignored.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateTornDown {
		s.mu.Unlock()
		return nil
	}
	s.state = StateTornDown
	s.wrist.Reset()
	s.ring.Reset()
	s.anchors = AnchorSet{}
	s.mu.Unlock()

	s.log.Info("session closed")
	return s.src.Close()
}

// OnFrame paints one frame. It is the Source callback.
func (s *Session) OnFrame(f capture.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return
	}
	if !f.Valid() {
		s.skipped++
		return
	}

	s.resize(f.Width, f.Height)
	paintVideo(s.surface, f.Image, s.cfg.Mirror)

	w, h := float64(f.Width), float64(f.Height)
	var wristPoses, ringPoses []smoothing.Pose
	for i := range f.Hands {
		hand := &f.Hands[i]
		if !hand.Valid() {
			s.log.WithField("hand", i).Debug("skipping hand with invalid landmarks")
			continue
		}
		if len(s.wristImgs) > 0 {
			if e, err := geometry.WristFromHand(hand, w, h, s.wristOpts); err == nil {
				wristPoses = append(wristPoses, smoothing.PoseFromEllipse(e))
			}
		}
		if s.ringImg != nil {
			if r, err := geometry.RingFromHand(hand, w, h, s.ringOpts); err == nil {
				ringPoses = append(ringPoses, smoothing.PoseFromRing(r))
			}
		}
	}

	set := AnchorSet{Frame: s.frames + 1, Timestamp: f.Timestamp}
	for _, obs := range s.wrist.Update(wristPoses) {
		e := obs.Pose.Ellipse()
		if err := s.guard(obs.TrackID, func() error { return s.drawWrist(e) }); err != nil {
			continue
		}
		set.Anchors = append(set.Anchors, Anchor{TrackID: obs.TrackID, Placement: "wrist", Ellipse: &e})
	}
	for _, obs := range s.ring.Update(ringPoses) {
		r := obs.Pose.Ring()
		if err := s.guard(obs.TrackID, func() error { return s.drawRing(r) }); err != nil {
			continue
		}
		set.Anchors = append(set.Anchors, Anchor{TrackID: obs.TrackID, Placement: "ring", Ring: &r})
	}

	s.frames++
	s.anchors = set
}

// guard runs one hand's rendering so that an error or panic only loses
// that hand.
func (s *Session) guard(track int, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
		if err != nil {
			s.log.WithField("track", track).WithError(err).Warn("hand not rendered")
		}
	}()
	return fn()
}

// drawWrist composites the stacked wrist items, farthest first so the
// item nearest the hand ends up on top. Nothing is blended unless every
// item of the stack rendered.
func (s *Session) drawWrist(e geometry.Ellipse) error {
	items := render.Stack(e, len(s.wristImgs), s.cfg.StackSpacing)
	layers := make([]*render.Layer, len(items))
	for i, it := range items {
		layer, err := s.compositor.Composite(it.Ellipse, s.wristImgs[it.Index])
		if err != nil {
			return fmt.Errorf("stack item %d: %w", it.Index, err)
		}
		layers[i] = layer
	}
	for i := len(items) - 1; i >= 0; i-- {
		layers[i].DrawOnto(s.surface, items[i].Opacity)
	}
	return nil
}

func (s *Session) drawRing(r geometry.RingAnchor) error {
	layer, err := s.compositor.CompositeRing(r, s.ringImg)
	if err != nil {
		return err
	}
	layer.DrawOnto(s.surface, 1)
	return nil
}

func (s *Session) resize(w, h int) {
	if s.surface != nil && s.surface.Rect.Dx() == w && s.surface.Rect.Dy() == h {
		return
	}
	s.surface = image.NewRGBA(image.Rect(0, 0, w, h))
	s.log.WithFields(log.Fields{"width": w, "height": h}).Debug("output surface resized")
}

// Snapshot returns a copy of the output surface after the last completed
// frame. ok is false before the first frame.
func (s *Session) Snapshot() (img *image.RGBA, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.surface == nil || s.frames == 0 {
		return nil, false
	}
	out := image.NewRGBA(s.surface.Rect)
	draw.Draw(out, out.Rect, s.surface, s.surface.Rect.Min, draw.Src)
	return out, true
}

// Anchors returns the smoothed anchors drawn in the last frame.
func (s *Session) Anchors() AnchorSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.anchors
	out.Anchors = append([]Anchor(nil), s.anchors.Anchors...)
	return out
}

// Stats returns how many frames were painted and how many were skipped.
func (s *Session) Stats() (frames, skipped uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames, s.skipped
}
