package app

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/kundan/internal/assets"
	"github.com/ayusman/kundan/internal/capture"
	"github.com/ayusman/kundan/internal/catalog"
	"github.com/ayusman/kundan/internal/config"
	"github.com/ayusman/kundan/internal/detector"
	"github.com/ayusman/kundan/internal/render"
	"github.com/ayusman/kundan/internal/session"
	"github.com/ayusman/kundan/testdata"
)

type stubSource struct {
	mu      sync.Mutex
	onFrame func(capture.Frame)
	onError func(error)
	closed  bool
	// ready, when set, holds Ready until it is closed.
	ready chan struct{}
}

func (s *stubSource) Ready(ctx context.Context) error {
	if s.ready == nil {
		return nil
	}
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubSource) Start(onFrame func(capture.Frame)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFrame = onFrame
	return nil
}

func (s *stubSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSource) push(f capture.Frame) {
	s.mu.Lock()
	cb := s.onFrame
	s.mu.Unlock()
	cb(f)
}

type harness struct {
	app   *App
	store *catalog.Store

	mu      sync.Mutex
	sources []*stubSource
	// ready is handed to every new source.
	ready chan struct{}
}

func (h *harness) source(i int) *stubSource {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sources[i]
}

func (h *harness) created() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sources)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	store, err := catalog.New(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	gold := color.NRGBA{R: 0xd4, G: 0xaf, B: 0x37, A: 0xff}
	if _, err := testdata.WritePNG(dir, "kada.png", testdata.Bangle(96, 0.6, gold)); err != nil {
		t.Fatal(err)
	}
	if _, err := testdata.WritePNG(dir, "band.png", testdata.Bangle(64, 0.8, gold)); err != nil {
		t.Fatal(err)
	}
	for _, p := range []*catalog.Product{
		{ID: "kada", Name: "Kada", Kind: catalog.KindBangle, ImagePath: "kada.png", Strategy: "warp"},
		{ID: "chain", Name: "Chain", Kind: catalog.KindBracelet, ImagePath: "kada.png"},
		{ID: "band", Name: "Band", Kind: catalog.KindRing, ImagePath: "band.png"},
		{ID: "broken", Name: "Broken", Kind: catalog.KindBangle, ImagePath: "missing.png"},
	} {
		if err := store.Products().Create(p); err != nil {
			t.Fatalf("Create(%s) error = %v", p.ID, err)
		}
	}

	h := &harness{store: store}
	h.app = New(Config{
		Settings: config.Default(),
		Products: store.Products(),
		Images:   assets.NewLoader(store.Products(), dir, nil),
		NewSource: func(onError func(error)) session.Source {
			h.mu.Lock()
			defer h.mu.Unlock()
			src := &stubSource{onError: onError, ready: h.ready}
			h.sources = append(h.sources, src)
			return src
		},
	})
	t.Cleanup(h.app.Close)
	return h
}

func TestApp_StartTryOn(t *testing.T) {
	h := newHarness(t)

	sess, err := h.app.StartTryOn(context.Background(), TryOnRequest{Products: []string{"kada", "chain", "band"}})
	if err != nil {
		t.Fatalf("StartTryOn() error = %v", err)
	}
	if sess.State() != session.StateRunning {
		t.Errorf("state = %v, want running", sess.State())
	}

	src := h.source(0)
	src.push(capture.Frame{
		Image:  image.NewRGBA(image.Rect(0, 0, 320, 240)),
		Hands:  []detector.HandLandmarks{detector.BackOfHandLandmarks()},
		Width:  320,
		Height: 240,
	})

	set := sess.Anchors()
	if len(set.Anchors) != 2 {
		t.Errorf("anchors = %+v, want wrist and ring", set.Anchors)
	}

	current, err := h.app.Session()
	if err != nil || current != sess {
		t.Errorf("Session() = %v, %v", current, err)
	}
}

func TestApp_ReplacesRunningSession(t *testing.T) {
	h := newHarness(t)

	first, err := h.app.StartTryOn(context.Background(), TryOnRequest{Products: []string{"kada"}})
	if err != nil {
		t.Fatalf("StartTryOn() error = %v", err)
	}
	second, err := h.app.StartTryOn(context.Background(), TryOnRequest{Products: []string{"band"}})
	if err != nil {
		t.Fatalf("second StartTryOn() error = %v", err)
	}

	if first.State() != session.StateTornDown {
		t.Errorf("first session state = %v, want torn_down", first.State())
	}
	if !h.source(0).closed {
		t.Error("first source should be closed")
	}
	if current, _ := h.app.Session(); current != second {
		t.Error("Session() should return the newest session")
	}

	if err := h.app.StopTryOn(); err != nil {
		t.Fatalf("StopTryOn() error = %v", err)
	}
	if err := h.app.StopTryOn(); !errors.Is(err, ErrNoSession) {
		t.Errorf("second StopTryOn() error = %v, want ErrNoSession", err)
	}
	if _, err := h.app.Session(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Session() error = %v, want ErrNoSession", err)
	}
}

func TestApp_StartTryOn_Errors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		req  TryOnRequest
		want error
	}{
		{"no products", TryOnRequest{}, ErrInvalidRequest},
		{"blank id", TryOnRequest{Products: []string{""}}, ErrInvalidRequest},
		{"bad strategy", TryOnRequest{Products: []string{"kada"}, Strategy: "mesh"}, ErrInvalidRequest},
		{"bad spacing", TryOnRequest{Products: []string{"kada"}, Stack: 0.5}, ErrInvalidRequest},
		{"unknown product", TryOnRequest{Products: []string{"ghost"}}, catalog.ErrNotFound},
		{"missing image", TryOnRequest{Products: []string{"broken"}}, session.ErrAssetLoad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.app.StartTryOn(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("StartTryOn() error = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := h.app.Session(); !errors.Is(err, ErrNoSession) {
		t.Errorf("failed starts should leave no session, got %v", err)
	}
}

func TestApp_StrategySelection(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name     string
		req      TryOnRequest
		strategy render.Strategy
	}{
		{"config default", TryOnRequest{Products: []string{"chain"}}, render.StrategySegmented},
		{"product override", TryOnRequest{Products: []string{"kada", "chain"}}, render.StrategyWarp},
		{"request wins", TryOnRequest{Products: []string{"kada"}, Strategy: "gradient"}, render.StrategyGradient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := h.app.StartTryOn(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("StartTryOn() error = %v", err)
			}
			if sess.Strategy() != tt.strategy {
				t.Errorf("Strategy() = %v, want %v", sess.Strategy(), tt.strategy)
			}
		})
	}
}

func TestApp_SourceFaultTearsDown(t *testing.T) {
	h := newHarness(t)

	sess, err := h.app.StartTryOn(context.Background(), TryOnRequest{Products: []string{"kada"}})
	if err != nil {
		t.Fatalf("StartTryOn() error = %v", err)
	}
	h.source(0).onError(errors.New("camera unplugged"))

	if sess.State() != session.StateTornDown {
		t.Errorf("state = %v, want torn_down", sess.State())
	}
	if _, err := h.app.Session(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Session() error = %v, want ErrNoSession", err)
	}
}

func TestApp_ConcurrentStartsLeaveOneSession(t *testing.T) {
	h := newHarness(t)

	const n = 4
	var wg sync.WaitGroup
	started := make([]*session.Session, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := h.app.StartTryOn(context.Background(), TryOnRequest{Products: []string{"kada"}})
			if err != nil {
				t.Errorf("StartTryOn() error = %v", err)
				return
			}
			started[i] = sess
		}()
	}
	wg.Wait()

	current, err := h.app.Session()
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	running := 0
	for _, sess := range started {
		if sess == nil {
			continue
		}
		if sess == current {
			running++
			continue
		}
		if sess.State() != session.StateTornDown {
			t.Errorf("replaced session %s state = %v, want torn_down", sess.ID(), sess.State())
		}
	}
	if running != 1 {
		t.Errorf("current session returned %d times, want 1", running)
	}
	for i := range h.created() {
		src := h.source(i)
		src.mu.Lock()
		closed := src.closed
		src.mu.Unlock()
		if want := i != h.created()-1; closed != want {
			t.Errorf("source %d closed = %v, want %v", i, closed, want)
		}
	}
}

func TestApp_StopWaitsForPendingStart(t *testing.T) {
	h := newHarness(t)
	h.ready = make(chan struct{})

	type result struct {
		sess *session.Session
		err  error
	}
	startDone := make(chan result, 1)
	go func() {
		sess, err := h.app.StartTryOn(context.Background(), TryOnRequest{Products: []string{"kada"}})
		startDone <- result{sess, err}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.created() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("source never created")
		}
		time.Sleep(time.Millisecond)
	}

	stopDone := make(chan error, 1)
	go func() { stopDone <- h.app.StopTryOn() }()

	select {
	case err := <-stopDone:
		t.Fatalf("StopTryOn() returned %v while the start was pending", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(h.ready)

	res := <-startDone
	if res.err != nil {
		t.Fatalf("StartTryOn() error = %v", res.err)
	}
	if err := <-stopDone; err != nil {
		t.Errorf("StopTryOn() error = %v", err)
	}
	if res.sess.State() != session.StateTornDown {
		t.Errorf("state = %v, want torn_down", res.sess.State())
	}
	if _, err := h.app.Session(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Session() error = %v, want ErrNoSession", err)
	}
}
