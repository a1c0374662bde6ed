// Package app wires the camera, detector, catalog and rendering pipeline
// into try-on sessions.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/kundan/internal/capture"
	"github.com/ayusman/kundan/internal/catalog"
	"github.com/ayusman/kundan/internal/config"
	"github.com/ayusman/kundan/internal/detector"
	"github.com/ayusman/kundan/internal/log"
	"github.com/ayusman/kundan/internal/render"
	"github.com/ayusman/kundan/internal/session"
	"github.com/ayusman/kundan/internal/smoothing"
)

var (
	// ErrNoSession is returned when no try-on is active.
	ErrNoSession = errors.New("no active try-on session")
	// ErrInvalidRequest is returned for malformed try-on requests.
	ErrInvalidRequest = errors.New("invalid try-on request")
)

var validate = validator.New()

// TryOnRequest selects the products of a new session.
type TryOnRequest struct {
	Products []string `json:"products" validate:"required,min=1,max=9,dive,required"`
	Strategy string   `json:"strategy,omitempty" validate:"omitempty,oneof=direct warp gradient segmented"`
	Stack    float64  `json:"stack_spacing,omitempty" validate:"omitempty,gte=0.12,lte=0.15"`
	Mirror   *bool    `json:"mirror,omitempty"`
}

// Products resolves product IDs.
type Products interface {
	GetByID(id string) (*catalog.Product, error)
}

// SourceFactory builds the frame source of a new session. onError must be
// passed through to the source so faults tear the session down.
type SourceFactory func(onError func(error)) session.Source

// Config holds the dependencies of an App.
type Config struct {
	Settings config.Config
	Products Products
	Images   session.ImageLoader
	// NewSource defaults to a camera and MediaPipe detector.
	NewSource SourceFactory
	Logger    *logrus.Entry
}

// App owns at most one running try-on session at a time.
type App struct {
	cfg Config
	log *logrus.Entry

	// lifecycle serializes StartTryOn and StopTryOn, so a stop issued while
	// a start is waiting on the camera applies to the new session.
	lifecycle sync.Mutex

	mu      sync.Mutex
	current *session.Session
}

// New creates an App.
func New(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	a := &App{cfg: cfg, log: cfg.Logger}
	if a.cfg.NewSource == nil {
		a.cfg.NewSource = a.liveSource
	}
	return a
}

// StartTryOn replaces any running session with a new one for req. It
// blocks until the camera and product images are ready.
func (a *App) StartTryOn(ctx context.Context, req TryOnRequest) (*session.Session, error) {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	items, override, err := a.resolve(req.Products)
	if err != nil {
		return nil, err
	}
	strategy, err := a.strategy(req.Strategy, override)
	if err != nil {
		return nil, err
	}

	st := a.cfg.Settings
	mirror := st.Mirror
	if req.Mirror != nil {
		mirror = *req.Mirror
	}
	spacing := st.StackSpacing
	if req.Stack != 0 {
		spacing = req.Stack
	}

	if err := a.stop(); err != nil && !errors.Is(err, ErrNoSession) {
		a.log.WithError(err).Warn("stopping previous try-on")
	}

	var sess *session.Session
	src := a.cfg.NewSource(func(err error) {
		if sess != nil {
			sess.Fail(err)
		}
	})
	sess, err = session.New(session.Config{
		Items:        items,
		Strategy:     strategy,
		StackSpacing: spacing,
		Mirror:       mirror,
		Tracker: smoothing.TrackerConfig{
			Mode: smoothing.ParseKeyMode(st.KeyMode),
			Alphas: smoothing.Alphas{
				Position: st.AlphaPosition,
				Size:     st.AlphaSize,
				Rotation: st.AlphaRotation,
			},
			MaxMissed:   st.MaxMissed,
			MatchFactor: smoothing.DefaultTrackerConfig().MatchFactor,
		},
	}, src, a.cfg.Images, a.log.WithField("component", "session"))
	if err != nil {
		src.Close()
		return nil, err
	}

	if err := sess.Start(ctx); err != nil {
		return nil, err
	}

	a.mu.Lock()
	prev := a.current
	a.current = sess
	a.mu.Unlock()
	if prev != nil && prev != sess {
		prev.Close()
	}

	a.log.WithFields(log.Fields{
		"session":  sess.ID(),
		"products": req.Products,
		"strategy": strategy,
	}).Info("try-on started")
	return sess, nil
}

// StopTryOn closes the running session, if any. It waits for a start in
// progress and stops the session that start produced.
func (a *App) StopTryOn() error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()
	return a.stop()
}

func (a *App) stop() error {
	a.mu.Lock()
	sess := a.current
	a.current = nil
	a.mu.Unlock()

	if sess == nil {
		return ErrNoSession
	}
	return sess.Close()
}

// Session returns the running session.
func (a *App) Session() (*session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil || a.current.State() == session.StateTornDown {
		return nil, ErrNoSession
	}
	return a.current, nil
}

// Close stops any running session.
func (a *App) Close() {
	if err := a.StopTryOn(); err != nil && !errors.Is(err, ErrNoSession) {
		a.log.WithError(err).Warn("stopping try-on")
	}
}

// resolve maps product IDs to session items. override is the strategy
// named by the products when they all agree on one, or empty.
func (a *App) resolve(ids []string) (items []session.Item, override string, err error) {
	named := make(map[string]bool)
	for _, id := range ids {
		p, err := a.cfg.Products.GetByID(id)
		if err != nil {
			return nil, "", fmt.Errorf("product %s: %w", id, err)
		}
		placement := session.Wrist
		if !p.Kind.OnWrist() {
			placement = session.Ring
		}
		items = append(items, session.Item{ID: p.ID, Placement: placement})

		if p.Strategy != "" {
			named[p.Strategy] = true
			override = p.Strategy
		}
	}
	if len(named) != 1 {
		override = ""
	}
	return items, override, nil
}

func (a *App) strategy(requested, override string) (render.Strategy, error) {
	name := a.cfg.Settings.Strategy
	switch {
	case requested != "":
		name = requested
	case override != "":
		name = override
	}
	s, err := render.ParseStrategy(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return s, nil
}

// liveSource builds the default camera source, using MediaPipe when it
// is installed and a detector that sees no hands otherwise.
func (a *App) liveSource(onError func(error)) session.Source {
	st := a.cfg.Settings

	dcfg := detector.DefaultConfig()
	dcfg.MaxHands = st.DetectorHands
	dcfg.MinConfidence = st.DetectorMinConf

	var det detector.Detector
	if mp, err := detector.NewMediaPipeDetector(dcfg, a.log.WithField("component", "detector")); err == nil {
		det = mp
	} else {
		a.log.WithError(err).Warn("MediaPipe not available, no hands will be detected")
		det = detector.NewMockDetector()
	}

	return NewLiveSource(SourceConfig{
		Camera:   capture.NewCameraWithOptions(capture.Options{DeviceID: st.CameraID, FPS: st.FPS}),
		Detector: det,
		Gate:     capture.NewMotionGate(st.MotionThreshold, capture.DefaultMaxStill),
		FPS:      st.FPS,
		OnError:  onError,
		Logger:   a.log.WithField("component", "capture"),
	})
}
