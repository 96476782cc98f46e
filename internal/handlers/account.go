package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skirmish-game/skirmish/internal/auth"
	"github.com/skirmish-game/skirmish/internal/database"
	"github.com/skirmish-game/skirmish/internal/models"
)

// CreateAccountHandler registers a new account with its profile attributes.
func CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		Geography string `json:"geography"`
		Sex       string `json:"sex"`
		AgeGroup  string `json:"age_group"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	account := models.Account{
		Username:  req.Username,
		Password:  req.Password,
		Geography: req.Geography,
		Sex:       req.Sex,
		AgeGroup:  req.AgeGroup,
	}

	ctx := r.Context()
	err := database.CreateAccount(ctx, &account)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" {
				http.Error(w, "username already exists", http.StatusConflict)
				return
			}
		}
		http.Error(w, "error creating account", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// LoginHandler verifies credentials and returns a JSON response with an
// authentication token. The token is also sent via the Cookie header.
//
// Request payload:
//
//	{
//	  "username": "someone",
//	  "password": "password"
//	}
//
// Response payload:
//
//	{
//	  "token": "{jwt}"
//	}
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	token, accountID, err := database.AuthenticateAccount(context.Background(), req.Username, req.Password)
	if err != nil {
		log.Printf("failed to authenticate account: %v", err)
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	touchLastActive(accountID)

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   auth.TOKEN_EXPIRE_TIME_SEC,
	})

	resp := loginResponse{Token: token}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to write response", http.StatusInternalServerError)
		return
	}
}

// MeHandler returns the authenticated account's profile, including its
// current credits and score.
func MeHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := authenticateRequest(w, r)
	if !ok {
		return
	}

	account, err := database.GetAccountByID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "account not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load account", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}
