// internal/database/leaderboard.go

package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/skirmish-game/skirmish/internal/models"
)

// InsertLeaderboard persists a board definition. Filters serialize to
// jsonb and the row is immutable after insert.
func InsertLeaderboard(ctx context.Context, lb *models.Leaderboard) error {
	if lb.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate leaderboard id: %w", err)
		}
		lb.ID = id
	}

	filterData, err := json.Marshal(lb.Filters)
	if err != nil {
		return fmt.Errorf("failed to marshal filters: %w", err)
	}

	q := `INSERT INTO leaderboards (id, creator_id, name, filters, min_users)
	      VALUES ($1, $2, $3, $4, $5)`

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, lb.ID, lb.CreatorID, lb.Name, filterData, lb.MinUsers)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert leaderboard: %w", err)
	}
	return nil
}

// GetLeaderboard loads a stored definition and deserializes its filters.
func GetLeaderboard(ctx context.Context, id uuid.UUID) (*models.Leaderboard, error) {
	var lb models.Leaderboard
	var filterData []byte
	q := `
	SELECT id, creator_id, name, filters, min_users, created_at
	FROM leaderboards
	WHERE id=$1
	`
	err := DB.QueryRow(ctx, q, id).Scan(
		&lb.ID, &lb.CreatorID, &lb.Name, &filterData, &lb.MinUsers, &lb.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(filterData, &lb.Filters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal filters: %w", err)
	}
	return &lb, nil
}
