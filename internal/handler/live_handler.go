package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/myphonelist/backend/internal/metrics"
	"github.com/myphonelist/backend/internal/model"
	"github.com/myphonelist/backend/internal/service"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

// LiveHandler streams contact snapshots over a websocket.
type LiveHandler struct {
	contactService service.ContactService
	metrics        *metrics.Metrics
	upgrader       websocket.Upgrader
}

// NewLiveHandler creates a LiveHandler. Browser connections are accepted from
// frontendURL or the same origin; m may be nil.
func NewLiveHandler(contactService service.ContactService, frontendURL string, m *metrics.Metrics) *LiveHandler {
	h := &LiveHandler{contactService: contactService, metrics: m}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || origin == frontendURL {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
	return h
}

// Live handles GET /api/contacts/live?q=.
// 接続直後に現在のスナップショットを送り、以降は変更ごとにフィルタ済みの全件を送る
func (h *LiveHandler) Live(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	sub, err := h.contactService.Subscribe(r.Context())
	if err != nil {
		slog.Error("live: subscribe failed", "error", err)
		writeError(w, http.StatusInternalServerError, "subscribe_failed")
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		slog.Warn("live: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.metrics.LiveConnected()
	defer h.metrics.LiveDisconnected()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go readPump(conn, cancel)

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-sub.C:
			if !ok {
				// store closed
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "store closed"),
					time.Now().Add(liveWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteJSON(listResponse{Contacts: model.FilterContacts(snapshot, query)}); err != nil {
				logLiveError("live: write failed", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logLiveError("live: ping failed", err)
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed, and
// cancels once the peer goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("live: client read ended", "error", err)
			}
			return
		}
	}
}

func logLiveError(msg string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	slog.Warn(msg, "error", err)
}
