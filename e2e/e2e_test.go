package e2e

import (
	"encoding/json"
	"image"
	"image/color"
	_ "image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/kundan/internal/app"
	"github.com/ayusman/kundan/internal/assets"
	"github.com/ayusman/kundan/internal/capture"
	"github.com/ayusman/kundan/internal/catalog"
	"github.com/ayusman/kundan/internal/config"
	"github.com/ayusman/kundan/internal/detector"
	"github.com/ayusman/kundan/internal/server"
	"github.com/ayusman/kundan/internal/session"
	"github.com/ayusman/kundan/testdata"
)

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	st, err := catalog.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	defer st.Close()

	gold := color.NRGBA{R: 0xd4, G: 0xaf, B: 0x37, A: 0xff}
	if _, err := testdata.WritePNG(tmpDir, "kada.png", testdata.Bangle(128, 0.6, gold)); err != nil {
		t.Fatal(err)
	}
	if _, err := testdata.WritePNG(tmpDir, "band.png", testdata.Bangle(64, 0.8, gold)); err != nil {
		t.Fatal(err)
	}

	frame := testdata.FrameMat(320, 240, 120)
	defer frame.Close()

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{
		detector.BackOfHandLandmarks(),
		detector.Shifted(detector.BackOfHandLandmarks(), 0.3, 0),
	})

	images := assets.NewLoader(st.Products(), tmpDir, nil)
	application := app.New(app.Config{
		Settings: config.Default(),
		Products: st.Products(),
		Images:   images,
		NewSource: func(onError func(error)) session.Source {
			return app.NewLiveSource(app.SourceConfig{
				Camera:   capture.NewMockCamera([]*gocv.Mat{&frame}, true),
				Detector: det,
				Gate:     capture.NewMotionGate(1.0, 3),
				FPS:      60,
				OnError:  onError,
			})
		},
	})
	defer application.Close()

	srv := server.New(server.Config{Catalog: st, Images: images, App: application})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()
	ids := map[string]string{}

	t.Run("CreateProducts", func(t *testing.T) {
		for name, body := range map[string]string{
			"kada": `{"name": "Kada", "kind": "bangle", "image_path": "kada.png"}`,
			"band": `{"name": "Band", "kind": "ring", "image_path": "band.png"}`,
		} {
			resp, err := client.Post(ts.URL+"/api/products", "application/json", strings.NewReader(body))
			if err != nil {
				t.Fatalf("create %s error = %v", name, err)
			}
			var created struct {
				ID string `json:"id"`
			}
			json.NewDecoder(resp.Body).Decode(&created)
			resp.Body.Close()

			if resp.StatusCode != http.StatusCreated {
				t.Fatalf("create %s status = %d, want %d", name, resp.StatusCode, http.StatusCreated)
			}
			ids[name] = created.ID
		}
	})

	t.Run("StartTryOn", func(t *testing.T) {
		body := `{"products": ["` + ids["kada"] + `", "` + ids["kada"] + `", "` + ids["band"] + `"], "stack_spacing": 0.13}`
		resp, err := client.Post(ts.URL+"/api/tryon", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("start error = %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
	})

	t.Run("FramesArePainted", func(t *testing.T) {
		sess, err := application.Session()
		if err != nil {
			t.Fatalf("Session() error = %v", err)
		}

		deadline := time.Now().Add(3 * time.Second)
		for {
			if frames, _ := sess.Stats(); frames >= 5 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("timed out waiting for painted frames")
			}
			time.Sleep(10 * time.Millisecond)
		}

		var wrist, ring int
		for _, a := range sess.Anchors().Anchors {
			switch a.Placement {
			case "wrist":
				wrist++
			case "ring":
				ring++
			}
		}
		if wrist != 2 || ring != 2 {
			t.Errorf("anchors: wrist = %d, ring = %d, want 2 each", wrist, ring)
		}
		if det.Calls() == 0 {
			t.Error("detector never ran")
		}
	})

	t.Run("Snapshot", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/tryon/snapshot")
		if err != nil {
			t.Fatalf("snapshot error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		img, _, err := image.Decode(resp.Body)
		if err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 240 {
			t.Errorf("snapshot bounds = %v", img.Bounds())
		}
	})

	t.Run("StopTryOn", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/tryon", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("stop error = %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
		}
		if _, err := application.Session(); err == nil {
			t.Error("session should be gone after stop")
		}
	})
}
