package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/echowallet/backend/internal/models"
)

// GroupExpenseInput describes an expense paid by one member on behalf
// of a group, split by the shares map. Shares must be positive and sum
// exactly to Amount; integer equality, no rounding tolerance.
type GroupExpenseInput struct {
	GroupID      string           `validate:"required"`
	PaidByUserID string           `validate:"required"`
	Description  string           `validate:"required,max=200"`
	Amount       int64            `validate:"required,gt=0"`
	Shares       map[string]int64 `validate:"required,min=1,dive,gt=0"`
}

// GroupExpenseResult carries the created group transaction identifier.
type GroupExpenseResult struct {
	TransactionID string `json:"transaction_id"`
}

// RecordGroupExpense books an expense against a group: one group
// transaction row, one share row per participant, a balance decrement
// for every non-payer participant and a net-fronted credit plus
// expenditure increment for the payer, all in one atomic unit.
//
// When the payer has no entry in Shares their own share is taken as
// zero, so the full amount counts as fronted for others.
func (e *Engine) RecordGroupExpense(ctx context.Context, in GroupExpenseInput) (*GroupExpenseResult, error) {
	if err := e.validate.Struct(&in); err != nil {
		return nil, invalid(err)
	}

	// Existence of every share participant, checked in a stable order
	// so the first failure is deterministic.
	participants := sortedKeys(in.Shares)
	for _, userID := range participants {
		known, err := e.users.Exists(ctx, userID)
		if err != nil {
			return nil, storeErr(err)
		}
		if !known {
			return nil, fmt.Errorf("share references user %s: %w", userID, ErrUnknownMember)
		}
	}

	var result *GroupExpenseResult
	err := e.retryOnConflict("group expense", func() error {
		var err error
		result, err = e.recordGroupExpenseOnce(ctx, in, participants)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) recordGroupExpenseOnce(ctx context.Context, in GroupExpenseInput, participants []string) (*GroupExpenseResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr(err)
	}
	defer tx.Rollback()

	// Lock every touched member row in sorted user-id order. The payer
	// row is needed even when the payer carries no share.
	lockOrder := participants
	if _, ok := in.Shares[in.PaidByUserID]; !ok {
		lockOrder = append(append([]string{}, participants...), in.PaidByUserID)
		sort.Strings(lockOrder)
	}

	members := make(map[string]*models.GroupMember, len(lockOrder))
	for _, userID := range lockOrder {
		m, err := lockGroupMember(tx, ctx, in.GroupID, userID)
		if err != nil {
			return nil, err
		}
		members[userID] = m
	}

	var shareSum int64
	for _, share := range in.Shares {
		shareSum += share
	}
	if shareSum != in.Amount {
		return nil, fmt.Errorf("shares sum %d, amount %d: %w", shareSum, in.Amount, ErrShareMismatch)
	}

	txID := uuid.NewString()
	ts := now()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO group_transactions (id, group_id, paid_by_user_id, description, amount, transaction_date)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		txID, in.GroupID, in.PaidByUserID, in.Description, in.Amount, ts); err != nil {
		return nil, storeErr(err)
	}

	for _, userID := range participants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shares (transaction_id, user_id, share_amount)
			VALUES ($1, $2, $3)`,
			txID, userID, in.Shares[userID]); err != nil {
			return nil, storeErr(err)
		}

		if userID == in.PaidByUserID {
			continue
		}

		member := members[userID]
		if err := guardedExec(tx, ctx, `
			UPDATE group_members
			SET balance = balance - $1, version = version + 1
			WHERE group_id = $2 AND user_id = $3 AND version = $4`,
			in.Shares[userID], in.GroupID, userID, member.Version); err != nil {
			return nil, err
		}
	}

	// Net amount fronted for others; the payer's own share (zero when
	// absent) stays out of their group balance.
	payer := members[in.PaidByUserID]
	fronted := in.Amount - in.Shares[in.PaidByUserID]
	if err := guardedExec(tx, ctx, `
		UPDATE group_members
		SET balance = balance + $1, total_expenditure = total_expenditure + $2,
		    version = version + 1
		WHERE group_id = $3 AND user_id = $4 AND version = $5`,
		fronted, in.Amount, in.GroupID, in.PaidByUserID, payer.Version); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr(err)
	}
	return &GroupExpenseResult{TransactionID: txID}, nil
}

// ReverseGroupExpense undoes a recorded group expense by recomputing
// the inverse deltas from its stored shares, then deletes the expense
// and its shares.
//
// This is a compensating operation, not an event-sourced undo: if the
// member balances were independently modified between record and
// reversal, the reversal restores the deltas, not the old snapshots.
func (e *Engine) ReverseGroupExpense(ctx context.Context, groupTransactionID string) error {
	if groupTransactionID == "" {
		return fmt.Errorf("%w: group transaction id required", ErrInvalidInput)
	}

	return e.retryOnConflict("group reversal", func() error {
		return e.reverseGroupExpenseOnce(ctx, groupTransactionID)
	})
}

func (e *Engine) reverseGroupExpenseOnce(ctx context.Context, groupTransactionID string) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback()

	var gt models.GroupTransaction
	err = tx.QueryRowContext(ctx, `
		SELECT id, group_id, paid_by_user_id, description, amount, transaction_date
		FROM group_transactions
		WHERE id = $1
		FOR UPDATE`, groupTransactionID).
		Scan(&gt.ID, &gt.GroupID, &gt.PaidByUserID, &gt.Description, &gt.Amount, &gt.TransactionDate)
	if err == sql.ErrNoRows {
		return fmt.Errorf("group transaction %s: %w", groupTransactionID, ErrNotFound)
	}
	if err != nil {
		return storeErr(err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT user_id, share_amount
		FROM shares
		WHERE transaction_id = $1
		ORDER BY user_id`, groupTransactionID)
	if err != nil {
		return storeErr(err)
	}
	shares := map[string]int64{}
	for rows.Next() {
		var userID string
		var amount int64
		if err := rows.Scan(&userID, &amount); err != nil {
			rows.Close()
			return storeErr(err)
		}
		shares[userID] = amount
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return storeErr(err)
	}

	lockOrder := sortedKeys(shares)
	if _, ok := shares[gt.PaidByUserID]; !ok {
		lockOrder = append(lockOrder, gt.PaidByUserID)
		sort.Strings(lockOrder)
	}

	members := make(map[string]*models.GroupMember, len(lockOrder))
	for _, userID := range lockOrder {
		m, err := lockGroupMember(tx, ctx, gt.GroupID, userID)
		if err != nil {
			return err
		}
		members[userID] = m
	}

	for _, userID := range lockOrder {
		member := members[userID]
		if userID == gt.PaidByUserID {
			// Exact inverse of the record step: undo the net-fronted
			// credit and the expenditure total in one update.
			if err := guardedExec(tx, ctx, `
				UPDATE group_members
				SET balance = balance - $1, total_expenditure = total_expenditure - $2,
				    version = version + 1
				WHERE group_id = $3 AND user_id = $4 AND version = $5`,
				gt.Amount-shares[userID], gt.Amount, gt.GroupID, userID, member.Version); err != nil {
				return err
			}
			continue
		}

		if err := guardedExec(tx, ctx, `
			UPDATE group_members
			SET balance = balance + $1, version = version + 1
			WHERE group_id = $2 AND user_id = $3 AND version = $4`,
			shares[userID], gt.GroupID, userID, member.Version); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM shares WHERE transaction_id = $1`, groupTransactionID); err != nil {
		return storeErr(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_transactions WHERE id = $1`, groupTransactionID); err != nil {
		return storeErr(err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr(err)
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
