// internal/handlers/leaderboard_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/skirmish-game/skirmish/internal/leaderboard"
	"github.com/skirmish-game/skirmish/internal/middleware"
	"github.com/skirmish-game/skirmish/internal/models"
)

// pushInterval is the cadence of standing pushes to connected watchers.
func pushInterval() time.Duration {
	if v := os.Getenv("LEADERBOARD_PUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return 5 * time.Second
}

// LeaderboardWSHandler upgrades the connection to a live standings feed
// for one board: /leaderboard/ws/{leaderboard_id}. The current ranking is
// pushed on connect and then re-computed on a fixed cadence, so watchers
// see score changes without polling. The read side only consumes pings.
func LeaderboardWSHandler(logger *logrus.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/leaderboard/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "Missing leaderboard_id in path (/leaderboard/ws/{leaderboard_id})", http.StatusBadRequest)
			return
		}
		boardID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "Invalid leaderboard_id format", http.StatusBadRequest)
			return
		}

		// First snapshot doubles as the existence check, before the upgrade.
		lb, members, err := s.Boards.Fetch(r.Context(), boardID)
		if err != nil {
			if errors.Is(err, leaderboard.ErrNotFound) {
				http.Error(w, "Leaderboard not found", http.StatusNotFound)
				return
			}
			logger.Warnf("failed to load leaderboard %s for watch: %v", boardID, err)
			http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"leaderboard"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for leaderboard %s: %v", boardID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "leaderboard" {
			logger.Warnf("Client for leaderboard %s connected with invalid subprotocol: %s", boardID, c.Subprotocol())
			c.Close(websocket.StatusPolicyViolation, "Client must use the 'leaderboard' subprotocol.")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, boardID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sendWsMessage(ctx, c, standingMessage(lb, members))

		go func() {
			ticker := time.NewTicker(pushInterval())
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					lb, members, err := s.Boards.Fetch(ctx, boardID)
					if err != nil {
						logger.Warnf("failed to refresh leaderboard %s: %v", boardID, err)
						continue
					}
					sendWsMessage(ctx, c, standingMessage(lb, members))
				}
			}
		}()

		readLeaderboardMessages(ctx, c, boardID, logger)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, boardID, nil)
	}
}

func standingMessage(lb *models.Leaderboard, members []models.LeaderboardEntry) map[string]interface{} {
	return map[string]interface{}{
		"type":        "standing",
		"leaderboard": lb,
		"members":     members,
	}
}

// readLeaderboardMessages drains the client side of the feed until the
// connection drops. Watchers only ever send pings; anything else is
// answered with an error and ignored.
func readLeaderboardMessages(ctx context.Context, c *websocket.Conn, boardID uuid.UUID, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for leaderboard %s.", boardID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("WebSocket context canceled for leaderboard %s.", boardID)
			} else {
				logger.Warnf("Error reading from WebSocket for leaderboard %s: %v (Status: %d)", boardID, err, status)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWsError(ctx, c, "Invalid JSON format.")
			continue
		}

		switch msg.Type {
		case "ping":
			sendWsMessage(ctx, c, map[string]string{"type": "pong"})
		default:
			sendWsError(ctx, c, "Leaderboard feed is read-only.")
		}
	}
}

// sendWsMessage marshals a message and sends it to the WebSocket client.
// Includes logging for errors and uses a write timeout.
func sendWsMessage(ctx context.Context, c *websocket.Conn, message interface{}) {
	if c == nil {
		log.Println("Error: Attempted to send WebSocket message on nil connection.")
		return
	}
	msgBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling WebSocket message: %v", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = c.Write(writeCtx, websocket.MessageText, msgBytes)
	if err != nil {
		status := websocket.CloseStatus(err)
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !strings.Contains(err.Error(), "context deadline exceeded") {
			log.Printf("Error writing WebSocket message: %v (Status: %d)", err, status)
		} else if strings.Contains(err.Error(), "context deadline exceeded") {
			log.Printf("Timeout writing WebSocket message: %v", err)
		}
	}
}

// sendWsError sends a structured error message to the client.
func sendWsError(ctx context.Context, c *websocket.Conn, errorMsg string) {
	sendWsMessage(ctx, c, map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	})
}
