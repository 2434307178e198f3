package ledger

import (
	"context"
	"database/sql"

	"github.com/echowallet/backend/internal/models"
	"github.com/echowallet/backend/internal/secrets"
)

// CredentialVerifier checks a user's transaction PIN.
type CredentialVerifier interface {
	Verify(ctx context.Context, userID, pin string) (bool, error)
}

// UserDirectory answers whether a user id is known to the system.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// TransferEvent describes a committed transfer for notification fan-out.
type TransferEvent struct {
	PairID      string
	FromUserID  string
	ToUserID    string
	Amount      int64
	Category    models.TransactionCategory
	Description string
}

// Notifier is informed after a transfer commits. It runs outside the
// atomic unit: failures are logged by the implementation and never roll
// back the financial mutation.
type Notifier interface {
	TransferCompleted(evt TransferEvent)
}

// PINVerifier verifies PINs against the argon2id hash stored on the
// users table.
type PINVerifier struct {
	db *sql.DB
}

func NewPINVerifier(db *sql.DB) *PINVerifier {
	return &PINVerifier{db: db}
}

func (v *PINVerifier) Verify(ctx context.Context, userID, pin string) (bool, error) {
	var hashed string
	err := v.db.QueryRowContext(ctx, `SELECT pin FROM users WHERE id = $1`, userID).Scan(&hashed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return secrets.Verify(pin, hashed), nil
}

// SQLUserDirectory resolves user existence against the users table.
type SQLUserDirectory struct {
	db *sql.DB
}

func NewSQLUserDirectory(db *sql.DB) *SQLUserDirectory {
	return &SQLUserDirectory{db: db}
}

func (d *SQLUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
