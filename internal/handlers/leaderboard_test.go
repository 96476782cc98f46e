// internal/handlers/leaderboard_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/skirmish-game/skirmish/internal/auth"
	"github.com/skirmish-game/skirmish/internal/database"
	"github.com/skirmish-game/skirmish/internal/leaderboard"
	"github.com/skirmish-game/skirmish/internal/models"
)

// TestCreateLeaderboardRequiresAuth checks the 401 path.
func TestCreateLeaderboardRequiresAuth(t *testing.T) {
	h := CreateLeaderboardHandler(newTestServer())

	req := httptest.NewRequest("POST", "/leaderboard/create", bytes.NewBufferString(`{"name":"x","min_users":1}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookie, got %d", w.Code)
	}
}

// TestCreateLeaderboardValidatesPayload checks the 400 paths that never
// reach the store.
func TestCreateLeaderboardValidatesPayload(t *testing.T) {
	auth.Init()
	token, _ := auth.CreateJWT(uuid.New().String())
	h := CreateLeaderboardHandler(newTestServer())

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/leaderboard/create", bytes.NewBufferString(body))
		req.Header.Set("Cookie", "auth_token="+token)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	if w := post(`{not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", w.Code)
	}
	if w := post(`{"name":"","min_users":1}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty name, got %d", w.Code)
	}
	if w := post(`{"name":"x","min_users":-1}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative min_users, got %d", w.Code)
	}
}

// TestGetLeaderboardRejectsBadID checks id validation.
func TestGetLeaderboardRejectsBadID(t *testing.T) {
	h := GetLeaderboardHandler(newTestServer())

	req := httptest.NewRequest("GET", "/leaderboard/get?id=not-a-uuid", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", w.Code)
	}
}

// TestLeaderboardWSRejectsBadPath checks the path parsing before any
// upgrade happens.
func TestLeaderboardWSRejectsBadPath(t *testing.T) {
	h := LeaderboardWSHandler(logrus.New(), newTestServer())

	req := httptest.NewRequest("GET", "/leaderboard/ws/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/leaderboard/ws/not-a-uuid", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", w.Code)
	}
}

// TestLeaderboardEndpoints creates a board over seeded accounts and reads
// it back through the GET handler against a live database.
func TestLeaderboardEndpoints(t *testing.T) {
	requireDB(t)
	auth.Init()
	ctx := context.Background()

	geo := "geo-" + uuid.NewString()
	seed := func(score int) models.Account {
		a := models.Account{Username: "board-" + uuid.NewString(), Password: "pw", Geography: geo, Sex: "x", AgeGroup: "18-25"}
		if err := database.CreateAccount(ctx, &a); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
		cleanupAccount(t, a.ID)
		if _, err := database.DB.Exec(ctx, `UPDATE accounts SET score=$1 WHERE id=$2`, score, a.ID); err != nil {
			t.Fatalf("failed to set score: %v", err)
		}
		return a
	}

	creator := seed(10)
	seed(5)
	seed(3)

	token, _ := auth.CreateJWT(creator.ID.String())
	create := CreateLeaderboardHandler(newTestServer())

	body := `{"name":"regional","filters":{"geography":"` + geo + `"},"min_users":3}`
	req := httptest.NewRequest("POST", "/leaderboard/create", bytes.NewBufferString(body))
	req.Header.Set("Cookie", "auth_token="+token)
	w := httptest.NewRecorder()
	create.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 create, got %d, body=%s", w.Code, w.Body.String())
	}
	var res leaderboard.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	t.Cleanup(func() {
		_, _ = database.DB.Exec(context.Background(), `DELETE FROM leaderboards WHERE id=$1`, res.Leaderboard.ID)
	})
	if res.Status != leaderboard.StatusCreated {
		t.Fatalf("expected created status, got %q (reason %q)", res.Status, res.Reason)
	}
	if len(res.Members) != 3 || res.Members[0].AccountID != creator.ID {
		t.Fatalf("expected creator leading 3 members, got %+v", res.Members)
	}

	get := GetLeaderboardHandler(newTestServer())
	req = httptest.NewRequest("GET", "/leaderboard/get?id="+res.Leaderboard.ID.String(), nil)
	w = httptest.NewRecorder()
	get.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 get, got %d, body=%s", w.Code, w.Body.String())
	}
	var fetched struct {
		Leaderboard models.Leaderboard        `json:"leaderboard"`
		Members     []models.LeaderboardEntry `json:"members"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("failed to decode get response: %v", err)
	}
	if fetched.Leaderboard.ID != res.Leaderboard.ID || len(fetched.Members) != 3 {
		t.Fatalf("get mismatch: %+v", fetched)
	}

	// unknown board id
	req = httptest.NewRequest("GET", "/leaderboard/get?id="+uuid.NewString(), nil)
	w = httptest.NewRecorder()
	get.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown board, got %d", w.Code)
	}
}
