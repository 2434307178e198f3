// Package ledger implements the wallet's money-moving core: peer
// transfers, balance top-ups and group expense settlement, each
// executed as a single all-or-nothing database transaction.
//
// Validation runs in a fixed order on every operation — structural
// input checks, existence of referenced entities, credential checks,
// business invariants — and short-circuits at the first failing stage.
// No state is mutated before all stages pass.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/echowallet/backend/internal/models"
)

// maxAttempts bounds retries of an atomic unit after an optimistic
// locking conflict. Each retry re-runs the whole validate-write
// sequence from scratch.
const maxAttempts = 3

// Engine executes the ledger operations against an explicit store
// handle. Account and group member rows must only ever be mutated
// through its methods.
type Engine struct {
	db       *sql.DB
	verifier CredentialVerifier
	users    UserDirectory
	notifier Notifier
	validate *validator.Validate
}

func NewEngine(db *sql.DB, verifier CredentialVerifier, users UserDirectory, notifier Notifier) *Engine {
	return &Engine{
		db:       db,
		verifier: verifier,
		users:    users,
		notifier: notifier,
		validate: validator.New(),
	}
}

// retryOnConflict re-runs fn until it succeeds, fails with a
// non-conflict error, or the attempt budget is exhausted.
func (e *Engine) retryOnConflict(op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, ErrConflict) {
			return err
		}
		log.Printf("[LEDGER] %s conflict, attempt %d/%d", op, attempt, maxAttempts)
	}
	return err
}

// lockAccount loads an account row by user id and holds a row lock for
// the remainder of the transaction.
func lockAccount(tx *sql.Tx, ctx context.Context, userID string) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRowContext(ctx, `
		SELECT id, user_id, balance, total_credit, total_debit, version, updated_at
		FROM accounts
		WHERE user_id = $1
		FOR UPDATE`, userID).
		Scan(&account.ID, &account.UserID, &account.Balance, &account.TotalCredit,
			&account.TotalDebit, &account.Version, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &account, nil
}

// lockGroupMember loads a group member row and holds a row lock.
func lockGroupMember(tx *sql.Tx, ctx context.Context, groupID, userID string) (*models.GroupMember, error) {
	var m models.GroupMember
	err := tx.QueryRowContext(ctx, `
		SELECT group_id, user_id, balance, total_expenditure, version
		FROM group_members
		WHERE group_id = $1 AND user_id = $2
		FOR UPDATE`, groupID, userID).
		Scan(&m.GroupID, &m.UserID, &m.Balance, &m.TotalExpenditure, &m.Version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member %s of group %s: %w", userID, groupID, ErrNotFound)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &m, nil
}

// guardedExec runs a versioned UPDATE and converts a zero-row result
// into ErrConflict.
func guardedExec(tx *sql.Tx, ctx context.Context, query string, args ...any) error {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return storeErr(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStore, err)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

func now() time.Time {
	return time.Now().UTC()
}
