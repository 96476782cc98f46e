// internal/handlers/credits.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skirmish-game/skirmish/internal/database"
	"github.com/skirmish-game/skirmish/internal/ledger"
)

// UseCreditHandler spends one credit on an action.
//
// Request payload: { "action": "increment-self"|"attack", "target_id": "...", "target_username": "..." }
// The target fields are optional and only meaningful for attacks;
// target_id wins when both are sent.
//
// Response payload: { "spent": bool }. spent=false means the account had
// no credits left, which is not an error.
func UseCreditHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := authenticateRequest(w, r)
		if !ok {
			return
		}

		var req struct {
			Action         string `json:"action"`
			TargetID       string `json:"target_id"`
			TargetUsername string `json:"target_username"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		action, err := ledger.ParseAction(req.Action)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var targetID *uuid.UUID
		if req.TargetID != "" {
			id, err := uuid.Parse(req.TargetID)
			if err != nil {
				http.Error(w, "invalid target_id", http.StatusBadRequest)
				return
			}
			targetID = &id
		} else if req.TargetUsername != "" {
			target, err := database.GetAccountByUsername(r.Context(), req.TargetUsername)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					http.Error(w, "target account not found", http.StatusNotFound)
					return
				}
				http.Error(w, "failed to resolve target", http.StatusInternalServerError)
				return
			}
			targetID = &target.ID
		}

		spent, err := s.Ledger.SpendCredit(r.Context(), accountID, action, targetID)
		if err != nil {
			switch {
			case errors.Is(err, ledger.ErrTargetNotFound):
				http.Error(w, "target account not found", http.StatusNotFound)
			default:
				s.Logger.WithError(err).Error("spend credit failed")
				http.Error(w, "failed to spend credit", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"spent": spent})
	}
}
