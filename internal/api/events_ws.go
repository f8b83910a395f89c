package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/maturity-engine/internal/models"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FeedMessage is one frame of the live event feed
type FeedMessage struct {
	Type  string        `json:"type"`
	Data  string        `json:"data,omitempty"`
	Event *models.Event `json:"event,omitempty"`
}

// handleEventsWS streams domain events visible to the client over a websocket
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "events_disabled", "event feed is not enabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	orgID := organizationScope(r)
	sub := s.hub.Subscribe(orgID)
	defer sub.Close()

	slog.Info("event feed connected", "client", createdBy(r), "organization_id", orgID)

	if err := sendFeedMessage(conn, FeedMessage{Type: "connected", Data: "subscribed to events"}); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Hub -> websocket, with keepalive pings
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		// Unblock the reader waiting on the client
		defer conn.Close()
		ticker := time.NewTicker(feedPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-sub.C:
				if !ok {
					return
				}
				if err := sendFeedMessage(conn, FeedMessage{Type: "event", Event: &evt}); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					slog.Debug("failed to ping event feed", "error", err)
					return
				}
			}
		}
	}()

	// The feed is one-way; reads only detect the client going away
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		conn.SetReadDeadline(time.Now().Add(feedPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(feedPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				// Unblock the writer waiting on the hub
				conn.Close()
				return
			}
		}
	}()

	wg.Wait()
	slog.Info("event feed disconnected", "client", createdBy(r))
}

func sendFeedMessage(conn *websocket.Conn, msg FeedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal feed message", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send feed message", "error", err)
		return err
	}
	return nil
}
