// internal/handlers/leaderboard.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/skirmish-game/skirmish/internal/leaderboard"
	"github.com/skirmish-game/skirmish/internal/models"
)

// CreateLeaderboardHandler persists a board definition and reports the
// admission outcome.
//
// Request payload: { "name": "...", "filters": {"geography": "EU"}, "min_users": 5 }
// Response payload: { "status": "created"|"invalid", "reason": "...", "leaderboard": {...}, "members": [...] }
//
// An invalid board is still stored; status tells the caller whether it
// currently stands.
func CreateLeaderboardHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := authenticateRequest(w, r)
		if !ok {
			return
		}

		var req struct {
			Name     string            `json:"name"`
			Filters  map[string]string `json:"filters"`
			MinUsers int               `json:"min_users"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		if req.MinUsers < 0 {
			http.Error(w, "min_users cannot be negative", http.StatusBadRequest)
			return
		}

		res, err := s.Boards.Create(r.Context(), accountID, req.Name, req.Filters, req.MinUsers)
		if err != nil {
			s.Logger.WithError(err).Error("leaderboard create failed")
			http.Error(w, "failed to create leaderboard", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

// GetLeaderboardHandler serves a stored definition with live standings,
// looked up by the id query parameter.
func GetLeaderboardHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		boardID, err := uuid.Parse(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "invalid leaderboard id", http.StatusBadRequest)
			return
		}

		lb, members, err := s.Boards.Fetch(r.Context(), boardID)
		if err != nil {
			if errors.Is(err, leaderboard.ErrNotFound) {
				http.Error(w, "leaderboard not found", http.StatusNotFound)
				return
			}
			s.Logger.WithError(err).Error("leaderboard fetch failed")
			http.Error(w, "failed to fetch leaderboard", http.StatusInternalServerError)
			return
		}

		resp := struct {
			Leaderboard *models.Leaderboard       `json:"leaderboard"`
			Members     []models.LeaderboardEntry `json:"members"`
		}{lb, members}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
