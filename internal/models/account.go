package models

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Password string    `json:"-"`

	Geography string `json:"geography"`
	Sex       string `json:"sex"`
	AgeGroup  string `json:"age_group"`

	Credits int `json:"credits"`
	Score   int `json:"score"`

	// LastActive is touched by the HTTP layer on authenticated requests;
	// the time_of_day leaderboard filter buckets on its hour.
	LastActive time.Time `json:"last_active"`
	CreatedAt  time.Time `json:"created_at"`
}
