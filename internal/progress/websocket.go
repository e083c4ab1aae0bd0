package progress

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// WebSocketHandler streams a game's progress events to one subscriber.
type WebSocketHandler struct {
	broker        *Broker
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler for progress feeds.
func NewWebSocketHandler(broker *Broker, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		broker:        broker,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// envelope is the frame sent to subscribers.
type envelope struct {
	Event string `json:"event"`
	Data  Event  `json:"data"`
}

// ServeHTTP upgrades the connection and forwards events until the run
// reaches a terminal stage or the client goes away.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		http.Error(w, "game_id is required", http.StatusBadRequest)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "game_id", gameID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "game_id", gameID)
		}
	}()

	sub := h.broker.Subscribe(Topic(gameID))
	defer sub.Close()

	slog.Info("Progress subscriber connected", "game_id", gameID, "ip", r.RemoteAddr)

	ctx := r.Context()

	// Drain reads so client close frames are processed.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			if err := h.writeJSON(ctx, ws, envelope{Event: EventName, Data: event}); err != nil {
				slog.Debug("Progress write failed", "error", err, "game_id", gameID)
				return
			}
			if event.Stage.Terminal() {
				slog.Info("Progress feed finished", "game_id", gameID, "stage", event.Stage)
				return
			}
		case <-readDone:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || h.allowedOrigin == "" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
