package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/echowallet/backend/internal/models"
)

// TransferInput describes a peer-to-peer transfer. Amounts are integer
// minor currency units.
type TransferInput struct {
	FromUserID  string                     `validate:"required"`
	ToUserID    string                     `validate:"required,nefield=FromUserID"`
	Amount      int64                      `validate:"required,gt=0"`
	Category    models.TransactionCategory `validate:"required,oneof=FOOD SHOPPING TRAVEL OTHER"`
	Description string                     `validate:"max=200"`
	PIN         string                     `validate:"required,len=6,numeric"`
}

// TransferResult carries the identifiers of the created log rows.
type TransferResult struct {
	PairID   string `json:"pair_id"`
	DebitID  string `json:"debit_id"`
	CreditID string `json:"credit_id"`
}

// Transfer moves amount from the sender's account to the recipient's
// as one atomic unit: both balance updates, both running-total updates
// and the paired DEBIT/CREDIT log rows commit together or not at all.
// The sender's balance can reach exactly zero but never goes negative:
// the funds check and the decrement are serialized by a row lock plus
// a balance guard on the UPDATE itself.
func (e *Engine) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	if err := e.validate.Struct(&in); err != nil {
		return nil, invalid(err)
	}

	var result *TransferResult
	err := e.retryOnConflict("transfer", func() error {
		var err error
		result, err = e.transferOnce(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	if e.notifier != nil {
		// Outside the atomic unit: notification failure never rolls
		// back the committed transfer.
		go e.notifier.TransferCompleted(TransferEvent{
			PairID:      result.PairID,
			FromUserID:  in.FromUserID,
			ToUserID:    in.ToUserID,
			Amount:      in.Amount,
			Category:    in.Category,
			Description: in.Description,
		})
	}

	return result, nil
}

func (e *Engine) transferOnce(ctx context.Context, in TransferInput) (*TransferResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr(err)
	}
	defer tx.Rollback()

	// Lock both accounts in a consistent order to prevent deadlocks
	// between transfers running in opposite directions.
	firstUser, secondUser := in.FromUserID, in.ToUserID
	if firstUser > secondUser {
		firstUser, secondUser = secondUser, firstUser
	}

	first, err := lockAccount(tx, ctx, firstUser)
	if err != nil {
		return nil, err
	}
	second, err := lockAccount(tx, ctx, secondUser)
	if err != nil {
		return nil, err
	}

	sender, recipient := first, second
	if first.UserID != in.FromUserID {
		sender, recipient = second, first
	}

	ok, err := e.verifier.Verify(ctx, in.FromUserID, in.PIN)
	if err != nil {
		return nil, storeErr(err)
	}
	if !ok {
		return nil, fmt.Errorf("pin for user %s: %w", in.FromUserID, ErrUnauthorized)
	}

	if in.Amount < 0 || sender.Balance < in.Amount {
		return nil, fmt.Errorf("balance %d below amount %d: %w",
			sender.Balance, in.Amount, ErrInsufficientFunds)
	}

	ts := now()

	// The balance >= amount guard makes the decrement conditional even
	// if the isolation level ever drops below what the row lock gives.
	if err := guardedExec(tx, ctx, `
		UPDATE accounts
		SET balance = balance - $1, total_debit = total_debit + $1,
		    version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4 AND balance >= $1`,
		in.Amount, ts, sender.ID, sender.Version); err != nil {
		return nil, err
	}

	if err := guardedExec(tx, ctx, `
		UPDATE accounts
		SET balance = balance + $1, total_credit = total_credit + $1,
		    version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		in.Amount, ts, recipient.ID, recipient.Version); err != nil {
		return nil, err
	}

	result := &TransferResult{
		PairID:   uuid.NewString(),
		DebitID:  uuid.NewString(),
		CreditID: uuid.NewString(),
	}

	if err := appendEntry(tx, ctx, result.DebitID, result.PairID, sender.ID, recipient.ID,
		models.EntryDebit, in.Amount, in.Category, in.Description, ts); err != nil {
		return nil, err
	}
	if err := appendEntry(tx, ctx, result.CreditID, result.PairID, recipient.ID, sender.ID,
		models.EntryCredit, in.Amount, in.Category, in.Description, ts); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr(err)
	}
	return result, nil
}

func appendEntry(tx *sql.Tx, ctx context.Context, id, pairID, accountID, counterpartyID,
	entryType string, amount int64, category models.TransactionCategory, description string,
	ts time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, pair_id, account_id, counterparty_id, type, amount, category, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, pairID, accountID, counterpartyID, entryType, amount, category, description, ts)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// AddBalance tops up a user's account and returns the new balance.
// Top-ups intentionally write no transaction-log row; only transfers
// are audited, so the log stays a pure record of money moved between
// users.
func (e *Engine) AddBalance(ctx context.Context, userID string, amount int64) (int64, error) {
	if userID == "" || amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be a positive integer", ErrInvalidInput)
	}

	var balance int64
	err := e.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance + $1, version = version + 1, updated_at = $2
		WHERE user_id = $3
		RETURNING balance`,
		amount, now(), userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("account for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return 0, storeErr(err)
	}
	return balance, nil
}
