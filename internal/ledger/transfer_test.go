package ledger

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/echowallet/backend/internal/models"
)

type stubVerifier struct {
	ok  bool
	err error
}

func (s stubVerifier) Verify(ctx context.Context, userID, pin string) (bool, error) {
	return s.ok, s.err
}

type stubDirectory struct {
	unknown map[string]bool
}

func (s stubDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	return !s.unknown[userID], nil
}

func newTestEngine(t *testing.T, verifier CredentialVerifier) (*Engine, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	if verifier == nil {
		verifier = stubVerifier{ok: true}
	}
	engine := NewEngine(db, verifier, stubDirectory{}, nil)
	return engine, mock, func() { db.Close() }
}

func accountRows(id, userID string, balance int64, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "balance", "total_credit", "total_debit", "version", "updated_at"}).
		AddRow(id, userID, balance, 0, 0, version, time.Now())
}

func expectLockAccount(mock sqlmock.Sqlmock, userID string, rows *sqlmock.Rows) {
	mock.ExpectQuery("SELECT id, user_id, balance, total_credit, total_debit, version, updated_at\\s+FROM accounts\\s+WHERE user_id = \\$1\\s+FOR UPDATE").
		WithArgs(userID).
		WillReturnRows(rows)
}

func validTransfer() TransferInput {
	return TransferInput{
		FromUserID:  "user-a",
		ToUserID:    "user-b",
		Amount:      200,
		Category:    models.CategoryFood,
		Description: "lunch",
		PIN:         "123456",
	}
}

func TestEngine_Transfer(t *testing.T) {
	t.Run("successful transfer writes paired entries", func(t *testing.T) {
		engine, mock, closeDB := newTestEngine(t, nil)
		defer closeDB()

		in := validTransfer()

		mock.ExpectBegin()
		expectLockAccount(mock, "user-a", accountRows("acc-a", "user-a", 500, 1))
		expectLockAccount(mock, "user-b", accountRows("acc-b", "user-b", 100, 1))

		mock.ExpectExec("UPDATE accounts\\s+SET balance = balance - \\$1, total_debit = total_debit \\+ \\$1").
			WithArgs(in.Amount, sqlmock.AnyArg(), "acc-a", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE accounts\\s+SET balance = balance \\+ \\$1, total_credit = total_credit \\+ \\$1").
			WithArgs(in.Amount, sqlmock.AnyArg(), "acc-b", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "acc-a", "acc-b", models.EntryDebit,
				in.Amount, in.Category, in.Description, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "acc-b", "acc-a", models.EntryCredit,
				in.Amount, in.Category, in.Description, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		result, err := engine.Transfer(context.Background(), in)
		assert.NoError(t, err)
		assert.NotEmpty(t, result.PairID)
		assert.NotEqual(t, result.DebitID, result.CreditID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds leaves both accounts untouched", func(t *testing.T) {
		engine, mock, closeDB := newTestEngine(t, nil)
		defer closeDB()

		in := validTransfer()
		in.Amount = 400

		mock.ExpectBegin()
		expectLockAccount(mock, "user-a", accountRows("acc-a", "user-a", 300, 1))
		expectLockAccount(mock, "user-b", accountRows("acc-b", "user-b", 300, 1))
		mock.ExpectRollback()

		result, err := engine.Transfer(context.Background(), in)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("balance can be drained to exactly zero", func(t *testing.T) {
		engine, mock, closeDB := newTestEngine(t, nil)
		defer closeDB()

		in := validTransfer()
		in.Amount = 300

		mock.ExpectBegin()
		expectLockAccount(mock, "user-a", accountRows("acc-a", "user-a", 300, 1))
		expectLockAccount(mock, "user-b", accountRows("acc-b", "user-b", 0, 1))
		mock.ExpectExec("UPDATE accounts\\s+SET balance = balance - \\$1").
			WithArgs(in.Amount, sqlmock.AnyArg(), "acc-a", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE accounts\\s+SET balance = balance \\+ \\$1").
			WithArgs(in.Amount, sqlmock.AnyArg(), "acc-b", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		_, err := engine.Transfer(context.Background(), in)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("recipient account missing", func(t *testing.T) {
		engine, mock, closeDB := newTestEngine(t, nil)
		defer closeDB()

		in := validTransfer()

		mock.ExpectBegin()
		expectLockAccount(mock, "user-a", accountRows("acc-a", "user-a", 500, 1))
		mock.ExpectQuery("SELECT id, user_id, balance, total_credit, total_debit, version, updated_at\\s+FROM accounts\\s+WHERE user_id = \\$1\\s+FOR UPDATE").
			WithArgs("user-b").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		result, err := engine.Transfer(context.Background(), in)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existence is checked before the pin", func(t *testing.T) {
		// A wrong PIN and a missing recipient together must surface the
		// missing recipient, not the credential failure.
		engine, mock, closeDB := newTestEngine(t, stubVerifier{ok: false})
		defer closeDB()

		in := validTransfer()

		mock.ExpectBegin()
		expectLockAccount(mock, "user-a", accountRows("acc-a", "user-a", 500, 1))
		mock.ExpectQuery("FOR UPDATE").
			WithArgs("user-b").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := engine.Transfer(context.Background(), in)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong pin", func(t *testing.T) {
		engine, mock, closeDB := newTestEngine(t, stubVerifier{ok: false})
		defer closeDB()

		in := validTransfer()

		mock.ExpectBegin()
		expectLockAccount(mock, "user-a", accountRows("acc-a", "user-a", 500, 1))
		expectLockAccount(mock, "user-b", accountRows("acc-b", "user-b", 100, 1))
		mock.ExpectRollback()

		result, err := engine.Transfer(context.Background(), in)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("version conflict exhausts the retry budget", func(t *testing.T) {
		engine, mock, closeDB := newTestEngine(t, nil)
		defer closeDB()

		in := validTransfer()

		for i := 0; i < maxAttempts; i++ {
			mock.ExpectBegin()
			expectLockAccount(mock, "user-a", accountRows("acc-a", "user-a", 500, 1))
			expectLockAccount(mock, "user-b", accountRows("acc-b", "user-b", 100, 1))
			mock.ExpectExec("UPDATE accounts\\s+SET balance = balance - \\$1").
				WithArgs(in.Amount, sqlmock.AnyArg(), "acc-a", 1).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectRollback()
		}

		result, err := engine.Transfer(context.Background(), in)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict then success", func(t *testing.T) {
		engine, mock, closeDB := newTestEngine(t, nil)
		defer closeDB()

		in := validTransfer()

		mock.ExpectBegin()
		expectLockAccount(mock, "user-a", accountRows("acc-a", "user-a", 500, 1))
		expectLockAccount(mock, "user-b", accountRows("acc-b", "user-b", 100, 1))
		mock.ExpectExec("UPDATE accounts\\s+SET balance = balance - \\$1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		mock.ExpectBegin()
		expectLockAccount(mock, "user-a", accountRows("acc-a", "user-a", 500, 2))
		expectLockAccount(mock, "user-b", accountRows("acc-b", "user-b", 100, 1))
		mock.ExpectExec("UPDATE accounts\\s+SET balance = balance - \\$1").
			WithArgs(in.Amount, sqlmock.AnyArg(), "acc-a", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE accounts\\s+SET balance = balance \\+ \\$1").
			WithArgs(in.Amount, sqlmock.AnyArg(), "acc-b", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		result, err := engine.Transfer(context.Background(), in)
		assert.NoError(t, err)
		assert.NotNil(t, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid input short-circuits before any store access", func(t *testing.T) {
		engine, mock, closeDB := newTestEngine(t, nil)
		defer closeDB()

		cases := map[string]func(*TransferInput){
			"self transfer":    func(in *TransferInput) { in.ToUserID = in.FromUserID },
			"zero amount":      func(in *TransferInput) { in.Amount = 0 },
			"negative amount":  func(in *TransferInput) { in.Amount = -50 },
			"unknown category": func(in *TransferInput) { in.Category = "GAMBLING" },
			"short pin":        func(in *TransferInput) { in.PIN = "123" },
			"alphabetic pin":   func(in *TransferInput) { in.PIN = "abcdef" },
			"missing sender":   func(in *TransferInput) { in.FromUserID = "" },
		}

		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				in := validTransfer()
				mutate(&in)

				result, err := engine.Transfer(context.Background(), in)
				assert.Nil(t, result)
				assert.ErrorIs(t, err, ErrInvalidInput)
			})
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEngine_AddBalance(t *testing.T) {
	t.Run("top-up returns the new balance", func(t *testing.T) {
		engine, mock, closeDB := newTestEngine(t, nil)
		defer closeDB()

		mock.ExpectQuery("UPDATE accounts\\s+SET balance = balance \\+ \\$1, version = version \\+ 1").
			WithArgs(int64(500), sqlmock.AnyArg(), "user-a").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(1500))

		balance, err := engine.AddBalance(context.Background(), "user-a", 500)
		assert.NoError(t, err)
		assert.Equal(t, int64(1500), balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account", func(t *testing.T) {
		engine, mock, closeDB := newTestEngine(t, nil)
		defer closeDB()

		mock.ExpectQuery("UPDATE accounts\\s+SET balance = balance \\+ \\$1").
			WithArgs(int64(500), sqlmock.AnyArg(), "ghost").
			WillReturnError(sql.ErrNoRows)

		_, err := engine.AddBalance(context.Background(), "ghost", 500)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive amount", func(t *testing.T) {
		engine, _, closeDB := newTestEngine(t, nil)
		defer closeDB()

		_, err := engine.AddBalance(context.Background(), "user-a", 0)
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = engine.AddBalance(context.Background(), "user-a", -10)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
