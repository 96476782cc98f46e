// internal/leaderboard/engine_test.go
package leaderboard

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skirmish-game/skirmish/internal/database"
	"github.com/skirmish-game/skirmish/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPool connects with the standard PG_* env vars, skipping the test
// when PG_HOST is unset. Definition rows go through the database package,
// so its pool is pointed at the same connection.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("PG_HOST") == "" {
		t.Skip("PG_HOST not set; skipping store-backed test")
	}
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("PG_HOST"),
		os.Getenv("PG_PORT"),
		os.Getenv("PG_DATABASE"),
	)
	pool, err := pgxpool.New(context.Background(), connStr)
	require.NoError(t, err)
	database.DB = pool
	t.Cleanup(pool.Close)
	return pool
}

// seedAccount inserts a throwaway account in the given geography. Tests
// isolate themselves from shared rows by using a unique geography value.
func seedAccount(t *testing.T, pool *pgxpool.Pool, geo string, score int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO accounts (id, username, password, geography, sex, age_group, score)
		 VALUES ($1, $2, '', $3, 'x', 'test', $4)`,
		id, "test-"+id.String(), geo, score,
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM accounts WHERE id=$1`, id)
	})
	return id
}

func cleanupBoard(t *testing.T, pool *pgxpool.Pool, id uuid.UUID) {
	t.Helper()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM leaderboards WHERE id=$1`, id)
	})
}

// TestAdmit covers the admission rule on pre-ranked pages.
func TestAdmit(t *testing.T) {
	creator := uuid.New()
	rival := uuid.New()
	page := func(ids ...uuid.UUID) []models.LeaderboardEntry {
		ms := make([]models.LeaderboardEntry, len(ids))
		for i, id := range ids {
			ms[i] = models.LeaderboardEntry{Rank: i + 1, AccountID: id, Score: 100 - i}
		}
		return ms
	}

	reason, ok := admit(page(creator, rival), creator, 2)
	assert.True(t, ok)
	assert.Empty(t, reason)

	reason, ok = admit(page(creator, rival), creator, 3)
	assert.False(t, ok, "too few candidates")
	assert.Contains(t, reason, "required 3")

	reason, ok = admit(page(rival, creator), creator, 2)
	assert.False(t, ok, "creator must hold the top rank")
	assert.Contains(t, reason, "top score")

	_, ok = admit(nil, creator, 0)
	assert.False(t, ok, "an empty page can never admit")
}

// TestBuildCandidateQuery pins the ordering clause and placeholder layout.
func TestBuildCandidateQuery(t *testing.T) {
	q, args := buildCandidateQuery(map[string]string{"geography": "EU"}, 12)
	assert.Contains(t, q, "ROW_NUMBER() OVER (ORDER BY score DESC, id ASC)")
	assert.Contains(t, q, "ORDER BY score DESC, id ASC LIMIT $1")
	assert.Contains(t, q, "geography = $2")
	require.Len(t, args, 2)
	assert.Equal(t, 12, args[0])
	assert.Equal(t, "EU", args[1])

	q, args = buildCandidateQuery(nil, 10)
	assert.NotContains(t, q, "WHERE")
	require.Len(t, args, 1)
	assert.Equal(t, 10, args[0])
}

// TestCreateAdmitsLeadingCreator seeds a geography where the creator has
// the top score and expects a created board with a full ranked page.
func TestCreateAdmitsLeadingCreator(t *testing.T) {
	pool := testPool(t)
	e := NewEngine(pool)
	ctx := context.Background()

	geo := "geo-" + uuid.NewString()
	creator := seedAccount(t, pool, geo, 10)
	second := seedAccount(t, pool, geo, 5)
	third := seedAccount(t, pool, geo, 3)

	res, err := e.Create(ctx, creator, "regional", map[string]string{"geography": geo}, 3)
	require.NoError(t, err)
	cleanupBoard(t, pool, res.Leaderboard.ID)

	require.Equal(t, StatusCreated, res.Status)
	require.Len(t, res.Members, 3)
	assert.Equal(t, creator, res.Members[0].AccountID)
	assert.Equal(t, 1, res.Members[0].Rank)
	assert.Equal(t, second, res.Members[1].AccountID)
	assert.Equal(t, third, res.Members[2].AccountID)
	assert.Equal(t, 3, res.Members[2].Rank)
}

// TestCreateInvalidKeepsDefinition checks persist-then-validate: a board
// that fails admission is rejected but its definition row stays, and a
// later fetch still serves it live.
func TestCreateInvalidKeepsDefinition(t *testing.T) {
	pool := testPool(t)
	e := NewEngine(pool)
	ctx := context.Background()

	geo := "geo-" + uuid.NewString()
	creator := seedAccount(t, pool, geo, 1)
	rival := seedAccount(t, pool, geo, 10)

	res, err := e.Create(ctx, creator, "doomed", map[string]string{"geography": geo}, 2)
	require.NoError(t, err)
	cleanupBoard(t, pool, res.Leaderboard.ID)

	require.Equal(t, StatusInvalid, res.Status)
	assert.Contains(t, res.Reason, "top score")
	assert.Empty(t, res.Members)

	stored, err := database.GetLeaderboard(ctx, res.Leaderboard.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"geography": geo}, stored.Filters)

	_, members, err := e.Fetch(ctx, res.Leaderboard.ID)
	require.NoError(t, err)
	require.NotEmpty(t, members)
	assert.Equal(t, rival, members[0].AccountID)
}

// TestFetchTracksScoreChanges checks that standings are recomputed per
// fetch: an overtake after creation reorders members with no change to
// the stored definition.
func TestFetchTracksScoreChanges(t *testing.T) {
	pool := testPool(t)
	e := NewEngine(pool)
	ctx := context.Background()

	geo := "geo-" + uuid.NewString()
	creator := seedAccount(t, pool, geo, 10)
	rival := seedAccount(t, pool, geo, 5)

	res, err := e.Create(ctx, creator, "contested", map[string]string{"geography": geo}, 2)
	require.NoError(t, err)
	cleanupBoard(t, pool, res.Leaderboard.ID)
	require.Equal(t, StatusCreated, res.Status)

	_, err = pool.Exec(ctx, `UPDATE accounts SET score = 20 WHERE id=$1`, rival)
	require.NoError(t, err)

	lb, members, err := e.Fetch(ctx, res.Leaderboard.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, rival, members[0].AccountID)
	assert.Equal(t, creator, members[1].AccountID)
	assert.Equal(t, map[string]string{"geography": geo}, lb.Filters)
	assert.Equal(t, 2, lb.MinUsers)
}

// TestFetchUnknownBoard maps a missing definition to ErrNotFound.
func TestFetchUnknownBoard(t *testing.T) {
	pool := testPool(t)
	e := NewEngine(pool)

	_, _, err := e.Fetch(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

// TestRankCandidatesTieBreak seeds equal scores and expects id ASC order.
func TestRankCandidatesTieBreak(t *testing.T) {
	pool := testPool(t)
	e := NewEngine(pool)
	ctx := context.Background()

	geo := "geo-" + uuid.NewString()
	ids := []uuid.UUID{
		seedAccount(t, pool, geo, 7),
		seedAccount(t, pool, geo, 7),
		seedAccount(t, pool, geo, 7),
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	members, err := e.RankCandidates(ctx, map[string]string{"geography": geo}, 3)
	require.NoError(t, err)
	require.Len(t, members, 3)
	for i, id := range ids {
		assert.Equal(t, id, members[i].AccountID, "tie at rank %d must break on id", i+1)
		assert.Equal(t, i+1, members[i].Rank)
	}
}

// TestRankCandidatesCap checks the over-fetch cap at minUsers+PageSlack.
func TestRankCandidatesCap(t *testing.T) {
	pool := testPool(t)
	e := NewEngine(pool)
	e.PageSlack = 1
	ctx := context.Background()

	geo := "geo-" + uuid.NewString()
	for score := 1; score <= 5; score++ {
		seedAccount(t, pool, geo, score)
	}

	members, err := e.RankCandidates(ctx, map[string]string{"geography": geo}, 2)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, 5, members[0].Score)
	assert.Equal(t, 3, members[2].Score)
}
