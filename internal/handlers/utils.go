package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skirmish-game/skirmish/internal/auth"
	"github.com/skirmish-game/skirmish/internal/database"
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// authenticateRequest resolves the auth_token cookie to an account id.
// It writes the error response itself and reports ok=false on failure.
// Successful authentication stamps the account's last_active.
func authenticateRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	cookieHeader := r.Header.Get("Cookie")
	if !strings.Contains(cookieHeader, "auth_token=") {
		http.Error(w, "missing auth_token", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	jwtToken := extractCookieToken(cookieHeader, "auth_token")

	accountIDStr, err := auth.AuthenticateJWT(jwtToken)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return uuid.Nil, false
	}
	accountID, err := uuid.Parse(accountIDStr)
	if err != nil {
		http.Error(w, "invalid account id in token", http.StatusBadRequest)
		return uuid.Nil, false
	}

	touchLastActive(accountID)
	return accountID, true
}

// touchLastActive stamps last_active off the request path. The column only
// feeds the time_of_day filter, so a failed touch is logged and dropped.
func touchLastActive(accountID uuid.UUID) {
	go func() {
		if database.DB == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := database.TouchLastActive(ctx, accountID); err != nil {
			log.Printf("failed to touch last_active for account %s: %v", accountID, err)
		}
	}()
}
