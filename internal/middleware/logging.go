// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogMiddleware is an HTTP middleware that logs incoming requests using
// Logrus: method, path, query, duration, and remote address. The
// ResponseWriter passes through unwrapped; the websocket handler needs
// the raw writer for its upgrade.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			fields := logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			}
			if q := r.URL.RawQuery; q != "" {
				fields["query"] = q
			}

			next.ServeHTTP(w, r)

			fields["duration"] = time.Since(start)
			logger.WithFields(fields).Info("HTTP Request")
		})
	}
}

// LogWebSocketConnect logs a client joining a board's live feed.
// Called once the upgrade is accepted.
func LogWebSocketConnect(logger *logrus.Logger, remoteAddr string, boardID uuid.UUID) {
	logger.WithFields(logrus.Fields{
		"remote": remoteAddr,
		"board":  boardID,
	}).Info("WebSocket connected")
}

// LogWebSocketDisconnect logs a feed client going away, with the close
// error when there is one.
func LogWebSocketDisconnect(logger *logrus.Logger, remoteAddr string, boardID uuid.UUID, err error) {
	fields := logrus.Fields{
		"remote": remoteAddr,
		"board":  boardID,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("WebSocket disconnected")
}
