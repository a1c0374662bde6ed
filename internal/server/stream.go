package server

import (
	"fmt"
	"image/png"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/kundan/internal/app"
)

// SnapshotHandler serves the last painted frame as PNG.
type SnapshotHandler struct {
	app *app.App
}

// NewSnapshotHandler creates a SnapshotHandler.
func NewSnapshotHandler(a *app.App) *SnapshotHandler {
	return &SnapshotHandler{app: a}
}

// ServeHTTP writes the current output surface.
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := h.app.Session()
	if err != nil {
		http.Error(w, "No active try-on", http.StatusNotFound)
		return
	}
	img, ok := sess.Snapshot()
	if !ok {
		http.Error(w, "No frame yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	png.Encode(w, img)
}

// StreamHandler serves the painted frames of the live session as MJPEG.
type StreamHandler struct {
	app      *app.App
	interval time.Duration
}

// NewStreamHandler creates a StreamHandler sending one frame per interval.
func NewStreamHandler(a *app.App, interval time.Duration) *StreamHandler {
	return &StreamHandler{app: a, interval: interval}
}

// ServeHTTP streams until the client leaves or the session ends.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := h.app.Session(); err != nil {
		http.Error(w, "No active try-on", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		sess, err := h.app.Session()
		if err != nil {
			return
		}
		img, ok := sess.Snapshot()
		if !ok {
			continue
		}

		mat, err := gocv.ImageToMatRGB(img)
		if err != nil {
			continue
		}
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
		mat.Close()
		if err != nil {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
		w.Write(buf.GetBytes())
		fmt.Fprintf(w, "\r\n")
		buf.Close()

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
