package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/kundan/internal/app"
	"github.com/ayusman/kundan/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local kiosk clients
	},
}

const writeWait = time.Second

// AnchorsHandler pushes the smoothed anchors of every new frame to
// WebSocket clients.
type AnchorsHandler struct {
	app      *app.App
	interval time.Duration
	log      *logrus.Entry
}

// NewAnchorsHandler creates an AnchorsHandler polling once per interval.
func NewAnchorsHandler(a *app.App, interval time.Duration, logger *logrus.Entry) *AnchorsHandler {
	return &AnchorsHandler{app: a, interval: interval, log: logger}
}

// ServeHTTP upgrades the connection and streams anchor sets until the
// client disconnects.
func (h *AnchorsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade")
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var (
		lastSession string
		lastFrame   uint64
	)
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		sess, err := h.app.Session()
		if err != nil {
			continue
		}
		set := sess.Anchors()
		if set.Frame == 0 || (sess.ID() == lastSession && set.Frame == lastFrame) {
			continue
		}
		lastSession, lastFrame = sess.ID(), set.Frame

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(anchorsMessage{Session: sess.ID(), AnchorSet: set}); err != nil {
			h.log.WithError(err).Debug("anchor client dropped")
			return
		}
	}
}

type anchorsMessage struct {
	Session string `json:"session"`
	session.AnchorSet
}
