package chi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	domview "github.com/kailas-cloud/searchfront/internal/domain/view"
	"github.com/kailas-cloud/searchfront/internal/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from the peer.
	maxMessageSize = 512
)

// StreamView handles GET /v1/views/{id}/stream. Every published snapshot is
// sent as a ViewResponse carrying page 1 of each category.
func (s *Server) StreamView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, _, pageSize, err := parseResultParams(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	pageSize = s.views.PageSize(pageSize)

	// Subscribe before upgrading so an unknown view still gets a JSON 404.
	snaps, unsubscribe, err := s.views.Subscribe(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	defer unsubscribe()

	log := logger.FromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		log.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}

	done := make(chan struct{})
	go readPump(conn, done, log)

	writePump(conn, snaps, done, pageSize)
	_ = conn.Close()
	<-done
	log.Debug("Stream closed")
}

// readPump drains the peer until it goes away. Client messages carry no
// meaning; reading is what keeps pongs and close frames flowing.
func readPump(conn *websocket.Conn, done chan<- struct{}, log *zap.Logger) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("Websocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump sends snapshots and pings until the subscription ends, the
// peer goes away or a write fails.
func writePump(conn *websocket.Conn, snaps <-chan domview.Snapshot, done <-chan struct{}, pageSize int) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-snaps:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "view closed"))
				return
			}
			if err := conn.WriteJSON(viewToResponse(&snap, snap.FirstPages(pageSize))); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
