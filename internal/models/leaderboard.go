package models

import (
	"time"

	"github.com/google/uuid"
)

// Leaderboard describes a saved board definition. Membership is never
// stored: every fetch re-runs the board's filters against live account
// rows, so a board's standings always reflect current scores.
type Leaderboard struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	CreatorID uuid.UUID         `json:"creator_id"`
	Filters   map[string]string `json:"filters"`
	MinUsers  int               `json:"min_users"`
	CreatedAt time.Time         `json:"created_at"`
}

// LeaderboardEntry is one row of a computed standing. Rank is 1-based
// and dense within the returned page.
type LeaderboardEntry struct {
	Rank      int       `json:"rank"`
	AccountID uuid.UUID `json:"account_id"`
	Username  string    `json:"username"`
	Score     int       `json:"score"`
}
