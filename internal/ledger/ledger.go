// Package ledger owns every mutation of account credits and scores. All
// writes go through conditional updates inside a single transaction; no
// caller ever reads a balance and writes it back.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skirmish-game/skirmish/internal/cache"
)

// Action is one spend action from the closed allow-list.
type Action string

const (
	ActionIncrementSelf Action = "increment-self"
	ActionAttack        Action = "attack"
)

var (
	// ErrInvalidAction rejects actions outside the allow-list before any
	// state is touched.
	ErrInvalidAction = errors.New("invalid action")

	// ErrTargetNotFound means an attack named a target account that does
	// not exist. The spend rolls back whole.
	ErrTargetNotFound = errors.New("target account not found")
)

// ParseAction maps a wire string onto the allow-list. Anything else
// fails with ErrInvalidAction.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}

func (a Action) valid() bool {
	switch a {
	case ActionIncrementSelf, ActionAttack:
		return true
	}
	return false
}

// Ledger applies credit spends and replenishments against the accounts table.
type Ledger struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Ledger {
	return &Ledger{Pool: pool}
}

// SpendCredit consumes one credit from the account and applies the action's
// score adjustment, both inside one transaction.
//
// The decrement is a single conditional UPDATE guarded by credits > 0; the
// affected-row count decides whether the spend happened. Reading credits
// first and deciding client-side would race under concurrent spenders.
// A zero-row decrement returns spent=false with no error: an account out
// of credits simply cannot act.
func (l *Ledger) SpendCredit(ctx context.Context, accountID uuid.UUID, action Action, targetID *uuid.UUID) (bool, error) {
	if !action.valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	spent := false
	err := pgx.BeginTxFunc(ctx, l.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx,
			`UPDATE accounts SET credits = credits - 1 WHERE id = $1 AND credits > 0`,
			accountID,
		)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return nil
		}
		spent = true

		switch action {
		case ActionIncrementSelf:
			_, err := tx.Exec(ctx,
				`UPDATE accounts SET score = score + 1 WHERE id = $1`,
				accountID,
			)
			return err
		case ActionAttack:
			if targetID == nil {
				// the credit still burns; an untargeted attack moves no score
				return nil
			}
			ct, err := tx.Exec(ctx,
				`UPDATE accounts SET score = score - 1 WHERE id = $1`,
				*targetID,
			)
			if err != nil {
				return err
			}
			if ct.RowsAffected() == 0 {
				return ErrTargetNotFound
			}
			return nil
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTargetNotFound) {
			return false, err
		}
		return false, fmt.Errorf("failed to spend credit: %w", err)
	}

	l.logSpend(accountID, action, targetID, spent)
	return spent, nil
}

// ReplenishAll grants every account one credit in a single bulk UPDATE and
// returns the number of rows touched. Spends interleaving with the tick see
// the grant either just before or just after them; neither order is wrong.
func (l *Ledger) ReplenishAll(ctx context.Context) (int64, error) {
	var rows int64
	err := pgx.BeginTxFunc(ctx, l.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `UPDATE accounts SET credits = credits + 1`)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to replenish credits: %w", err)
	}
	return rows, nil
}

// logSpend pushes the audit record to Redis off the request path. A dead
// or absent Redis never fails the spend itself.
func (l *Ledger) logSpend(accountID uuid.UUID, action Action, targetID *uuid.UUID, spent bool) {
	record := cache.SpendEvent{
		AccountID: accountID,
		Action:    string(action),
		TargetID:  targetID,
		Spent:     spent,
		Timestamp: time.Now().UnixMilli(),
	}
	go func(rec cache.SpendEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cache.Rdb == nil {
			return
		}
		if err := cache.PublishSpendEvent(ctx, rec); err != nil {
			log.Printf("Error publishing spend event for account %s: %v", rec.AccountID, err)
		}
	}(record)
}
