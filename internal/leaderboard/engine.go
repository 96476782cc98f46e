// Package leaderboard turns stored filter definitions into live rankings.
// A board row holds only its definition; every read recomputes membership
// from current account state, so standings are never stale.
package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skirmish-game/skirmish/internal/database"
	"github.com/skirmish-game/skirmish/internal/filters"
	"github.com/skirmish-game/skirmish/internal/models"
)

// ErrNotFound means the requested leaderboard id has no stored definition.
var ErrNotFound = errors.New("leaderboard not found")

// Board creation statuses.
const (
	StatusCreated = "created"
	StatusInvalid = "invalid"
)

const defaultPageSlack = 10

// Engine evaluates leaderboard definitions against the accounts table.
type Engine struct {
	Pool *pgxpool.Pool

	// PageSlack is how many rows past min_users the candidate query
	// fetches, so the admission check has headroom without a second
	// query. It caps the returned page, it does not bound validity.
	PageSlack int
}

func NewEngine(pool *pgxpool.Pool) *Engine {
	return &Engine{Pool: pool, PageSlack: defaultPageSlack}
}

// Result is the outcome of Create. Members is populated only for a
// created board; an invalid board keeps its persisted definition and
// carries the reason instead.
type Result struct {
	Status      string                    `json:"status"`
	Reason      string                    `json:"reason,omitempty"`
	Leaderboard *models.Leaderboard       `json:"leaderboard"`
	Members     []models.LeaderboardEntry `json:"members,omitempty"`
}

// Create persists the definition, then checks the admission rule against
// the current ranking. The row is written before validation on purpose:
// a board that fails admission today stays stored and can become valid
// as scores move.
func (e *Engine) Create(ctx context.Context, creatorID uuid.UUID, name string, fs map[string]string, minUsers int) (*Result, error) {
	lb := &models.Leaderboard{
		Name:      name,
		CreatorID: creatorID,
		Filters:   fs,
		MinUsers:  minUsers,
	}
	if err := database.InsertLeaderboard(ctx, lb); err != nil {
		return nil, err
	}

	members, err := e.RankCandidates(ctx, fs, minUsers)
	if err != nil {
		return nil, err
	}

	if reason, ok := admit(members, creatorID, minUsers); !ok {
		return &Result{Status: StatusInvalid, Reason: reason, Leaderboard: lb}, nil
	}
	return &Result{Status: StatusCreated, Leaderboard: lb, Members: members}, nil
}

// Fetch loads a stored definition and recomputes its standings. Unknown
// ids map to ErrNotFound.
func (e *Engine) Fetch(ctx context.Context, id uuid.UUID) (*models.Leaderboard, []models.LeaderboardEntry, error) {
	lb, err := database.GetLeaderboard(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	members, err := e.RankCandidates(ctx, lb.Filters, lb.MinUsers)
	if err != nil {
		return nil, nil, err
	}
	return lb, members, nil
}

// RankCandidates runs the compiled filters against the accounts table and
// returns the ranked page, capped at minUsers+PageSlack rows. Ordering is
// score DESC with id ASC as the tie-break so repeated runs agree.
func (e *Engine) RankCandidates(ctx context.Context, fs map[string]string, minUsers int) ([]models.LeaderboardEntry, error) {
	q, args := buildCandidateQuery(fs, minUsers+e.PageSlack)

	rows, err := e.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var members []models.LeaderboardEntry
	for rows.Next() {
		var m models.LeaderboardEntry
		if err := rows.Scan(&m.Rank, &m.AccountID, &m.Username, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidate rows: %w", err)
	}
	return members, nil
}

// buildCandidateQuery assembles the ranked candidate SQL for a filter
// set. $1 is reserved for the LIMIT, so compiled predicates number from
// $2.
func buildCandidateQuery(fs map[string]string, limit int) (string, []any) {
	preds := filters.CompileAll(fs)
	clause, filterArgs := filters.Where(preds, 2)

	q := `SELECT ROW_NUMBER() OVER (ORDER BY score DESC, id ASC) AS rank, id, username, score
	      FROM accounts`
	if clause != "" {
		q += ` WHERE ` + clause
	}
	q += ` ORDER BY score DESC, id ASC LIMIT $1`

	return q, append([]any{limit}, filterArgs...)
}

// admit applies the admission rule to a ranked candidate page: enough
// matching accounts, and the creator holding the top rank.
func admit(members []models.LeaderboardEntry, creatorID uuid.UUID, minUsers int) (string, bool) {
	if len(members) < minUsers {
		return fmt.Sprintf("only %d of the required %d accounts match the filters", len(members), minUsers), false
	}
	if len(members) == 0 || members[0].AccountID != creatorID {
		return "creator does not hold the top score among matching accounts", false
	}
	return "", true
}
