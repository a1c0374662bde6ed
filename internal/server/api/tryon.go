package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/kundan/internal/app"
	"github.com/ayusman/kundan/internal/catalog"
	"github.com/ayusman/kundan/internal/log"
	"github.com/ayusman/kundan/internal/session"
)

// TryOnHandler starts, inspects and stops the live try-on session.
type TryOnHandler struct {
	app *app.App
	log *logrus.Entry
}

// NewTryOnHandler creates a TryOnHandler.
func NewTryOnHandler(a *app.App, logger *logrus.Entry) *TryOnHandler {
	if logger == nil {
		logger = log.Discard()
	}
	return &TryOnHandler{app: a, log: logger}
}

type sessionResponse struct {
	ID       string        `json:"id"`
	State    session.State `json:"state"`
	Strategy string        `json:"strategy"`
	Frames   uint64        `json:"frames"`
	Skipped  uint64        `json:"skipped"`
	Error    string        `json:"error,omitempty"`
}

func toSessionResponse(s *session.Session) sessionResponse {
	frames, skipped := s.Stats()
	resp := sessionResponse{
		ID:       s.ID(),
		State:    s.State(),
		Strategy: s.Strategy().String(),
		Frames:   frames,
		Skipped:  skipped,
	}
	if err := s.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// ServeHTTP handles /api/tryon.
func (h *TryOnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.status(w)
	case http.MethodPost:
		h.start(w, r)
	case http.MethodDelete:
		h.stop(w)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TryOnHandler) status(w http.ResponseWriter) {
	s, err := h.app.Session()
	if err != nil {
		writeError(w, http.StatusNotFound, "No active try-on")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// start handles POST /api/tryon. It blocks until the camera and product
// images are ready.
func (h *TryOnHandler) start(w http.ResponseWriter, r *http.Request) {
	var req app.TryOnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	s, err := h.app.StartTryOn(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, toSessionResponse(s))
	case errors.Is(err, app.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrAssetLoad):
		writeError(w, http.StatusUnprocessableEntity, session.ErrAssetLoad.Error())
	case errors.Is(err, session.ErrSource):
		writeError(w, http.StatusServiceUnavailable, session.ErrSource.Error())
	default:
		h.log.WithError(err).Error("starting try-on")
		writeError(w, http.StatusInternalServerError, "Failed to start try-on")
	}
}

func (h *TryOnHandler) stop(w http.ResponseWriter) {
	if err := h.app.StopTryOn(); err != nil {
		if errors.Is(err, app.ErrNoSession) {
			writeError(w, http.StatusNotFound, "No active try-on")
			return
		}
		h.log.WithError(err).Warn("stopping try-on")
	}
	w.WriteHeader(http.StatusNoContent)
}
