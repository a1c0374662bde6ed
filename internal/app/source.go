package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/kundan/internal/capture"
	"github.com/ayusman/kundan/internal/detector"
	"github.com/ayusman/kundan/internal/log"
)

// Fault tolerance of the live loop.
const (
	// MaxReadFailures is how many consecutive camera read errors end the
	// session.
	MaxReadFailures = 30
	// MaxDetectFailures is how many consecutive detector errors end the
	// session.
	MaxDetectFailures = 3
)

// ErrSourceClosed is returned when a closed LiveSource is reused.
var ErrSourceClosed = errors.New("source closed")

// SourceConfig configures a LiveSource.
type SourceConfig struct {
	Camera   capture.Camera
	Detector detector.Detector
	Gate     *capture.MotionGate
	FPS      int
	// OnError receives the fault that stopped the loop. It runs on its own
	// goroutine, so it may call Close.
	OnError func(error)
	Logger  *logrus.Entry
}

// LiveSource reads the camera on a ticker, runs the detector on frames
// that pass the motion gate and reuses the previous hands otherwise.
type LiveSource struct {
	cfg SourceConfig
	log *logrus.Entry

	mu      sync.Mutex
	stopCh  chan struct{}
	done    chan struct{}
	closed  bool
	frames  int
	detects int
}

// NewLiveSource creates a LiveSource. The camera is opened by Ready.
func NewLiveSource(cfg SourceConfig) *LiveSource {
	if cfg.FPS <= 0 {
		cfg.FPS = capture.DefaultFPS
	}
	if cfg.Gate == nil {
		cfg.Gate = capture.NewMotionGate(1.0, capture.DefaultMaxStill)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	return &LiveSource{cfg: cfg, log: cfg.Logger}
}

// Ready opens the camera, giving up when ctx is done.
func (s *LiveSource) Ready(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSourceClosed
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.cfg.Camera.Open()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		s.cfg.Camera.SetFPS(s.cfg.FPS)
		return nil
	case <-ctx.Done():
		go func() {
			if err := <-errCh; err == nil {
				s.cfg.Camera.Close()
			}
		}()
		return ctx.Err()
	}
}

// Start launches the capture loop. onFrame is called from one goroutine.
func (s *LiveSource) Start(onFrame func(capture.Frame)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}
	if s.stopCh != nil {
		return nil
	}
	if !s.cfg.Camera.IsOpen() {
		return capture.ErrCameraNotOpen
	}

	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stopCh, s.done, onFrame)

	s.log.WithField("fps", s.cfg.FPS).Info("capture loop started")
	return nil
}

// Close stops the loop, waits for the last callback to return and
// releases the camera and detector. It is idempotent.
func (s *LiveSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-done
	}

	var errs []error
	if err := s.cfg.Camera.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}
	s.cfg.Gate.Close()
	if s.cfg.Detector != nil {
		if err := s.cfg.Detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
	}

	s.log.Info("capture loop stopped")
	return errors.Join(errs...)
}

// Stats returns frames delivered and detector invocations.
func (s *LiveSource) Stats() (frames, detects int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames, s.detects
}

func (s *LiveSource) run(stopCh <-chan struct{}, done chan<- struct{}, onFrame func(capture.Frame)) {
	err := s.loop(stopCh, onFrame)
	close(done)

	if err != nil {
		s.log.WithError(err).Error("capture loop failed")
		if s.cfg.OnError != nil {
			go s.cfg.OnError(err)
		}
	}
}

func (s *LiveSource) loop(stopCh <-chan struct{}, onFrame func(capture.Frame)) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	var (
		hands       []detector.HandLandmarks
		readFails   int
		detectFails int
	)

	for {
		select {
		case <-stopCh:
			return nil
		case <-ticker.C:
		}

		mat, err := s.cfg.Camera.ReadFrame()
		if err != nil {
			readFails++
			if readFails >= MaxReadFailures {
				return fmt.Errorf("camera: %w", err)
			}
			s.log.WithError(err).Debug("frame read failed")
			continue
		}
		readFails = 0

		if pass, _ := s.cfg.Gate.Pass(mat); pass && s.cfg.Detector != nil {
			detected, err := s.cfg.Detector.Detect(mat)
			if err != nil {
				detectFails++
				if detectFails >= MaxDetectFailures {
					mat.Close()
					return fmt.Errorf("detector: %w", err)
				}
				s.log.WithError(err).Warn("hand detection failed")
			} else {
				detectFails = 0
				hands = detected
			}
			s.mu.Lock()
			s.detects++
			s.mu.Unlock()
		}

		frame, err := capture.FrameFromMat(mat, hands, time.Now())
		mat.Close()
		if err != nil {
			s.log.WithError(err).Debug("frame dropped")
			continue
		}

		select {
		case <-stopCh:
			return nil
		default:
		}
		onFrame(frame)

		s.mu.Lock()
		s.frames++
		s.mu.Unlock()
	}
}
