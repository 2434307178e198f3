package notify

import (
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/echowallet/backend/internal/ledger"
	"github.com/echowallet/backend/internal/models"
)

func TestWalletNotifier_TransferCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	notifier := NewWalletNotifier(db, redisClient)

	evt := ledger.TransferEvent{
		PairID:     "pair-1",
		FromUserID: "user-a",
		ToUserID:   "user-b",
		Amount:     2500,
		Category:   models.CategoryFood,
	}

	mock.ExpectQuery("SELECT first_name, last_name FROM users WHERE id = \\$1").
		WithArgs("user-a").
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name"}).AddRow("Ada", "Obi"))
	mock.ExpectQuery("SELECT first_name, last_name FROM users WHERE id = \\$1").
		WithArgs("user-b").
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name"}).AddRow("Ben", ""))

	// Sender sees the recipient's name on a DEBIT, and vice versa.
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("user-a", "Ben", int64(2500), models.EntryDebit, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("user-b", "Ada Obi", int64(2500), models.EntryCredit, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	payload, err := json.Marshal(evt)
	assert.NoError(t, err)
	redisMock.ExpectRPush(Queue, payload).SetVal(1)

	notifier.TransferCompleted(evt)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestWalletNotifier_NilRedis(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	notifier := NewWalletNotifier(db, nil)

	evt := ledger.TransferEvent{
		PairID:     "pair-2",
		FromUserID: "user-a",
		ToUserID:   "user-b",
		Amount:     100,
		Category:   models.CategoryOther,
	}

	mock.ExpectQuery("SELECT first_name, last_name FROM users").
		WithArgs("user-a").
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name"}).AddRow("Ada", "Obi"))
	mock.ExpectQuery("SELECT first_name, last_name FROM users").
		WithArgs("user-b").
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name"}).AddRow("Ben", ""))
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// Must not panic without a queue client.
	notifier.TransferCompleted(evt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
