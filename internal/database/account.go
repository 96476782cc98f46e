// internal/database/account.go

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/skirmish-game/skirmish/internal/auth"
	"github.com/skirmish-game/skirmish/internal/models"
)

const accountColumns = `id, username, password, geography, sex, age_group, credits, score, last_active, created_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID, &a.Username, &a.Password,
		&a.Geography, &a.Sex, &a.AgeGroup,
		&a.Credits, &a.Score,
		&a.LastActive, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount hashes the password and inserts the account row. Usernames
// are stored lowercased; credits and score start at the column defaults.
func CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate account id: %w", err)
		}
		account.ID = id
	}
	account.Username = strings.ToLower(strings.TrimSpace(account.Username))

	hash, err := auth.CreateHash(account.Password, auth.Params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	account.Password = hash

	q := `INSERT INTO accounts (id, username, password, geography, sex, age_group)
	      VALUES ($1, $2, $3, $4, $5, $6)`

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			account.ID, account.Username, account.Password,
			account.Geography, account.Sex, account.AgeGroup,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func GetAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	return scanAccount(DB.QueryRow(ctx, q, id))
}

func GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE username=$1`
	return scanAccount(DB.QueryRow(ctx, q, strings.ToLower(strings.TrimSpace(username))))
}

// AuthenticateAccount verifies the password and returns a signed JWT
// along with the account id.
func AuthenticateAccount(ctx context.Context, username, password string) (string, uuid.UUID, error) {
	account, err := GetAccountByUsername(ctx, username)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("account not found or db error: %w", err)
	}

	match, err := auth.ComparePasswordAndHash(password, account.Password)
	if err != nil || !match {
		return "", uuid.Nil, fmt.Errorf("invalid credentials")
	}

	token, err := auth.CreateJWT(account.ID.String())
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("failed to create jwt: %w", err)
	}

	return token, account.ID, nil
}

// TouchLastActive stamps last_active for an authenticated request. The
// time_of_day leaderboard filter buckets on this column, so the HTTP
// layer calls it on every request it authenticates.
func TouchLastActive(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE accounts SET last_active=NOW() WHERE id=$1`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, id)
		return err
	})
}
