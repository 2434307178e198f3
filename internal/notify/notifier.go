// Package notify fans out user-facing notifications after a transfer
// commits. Everything here is best-effort: failures are logged and
// never affect the financial mutation that triggered them.
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/echowallet/backend/internal/ledger"
	"github.com/echowallet/backend/internal/models"
)

// Queue is the redis list a downstream worker (push, email) drains.
const Queue = "notification_queue"

type WalletNotifier struct {
	db    *sql.DB
	redis *redis.Client
}

func NewWalletNotifier(db *sql.DB, redisClient *redis.Client) *WalletNotifier {
	return &WalletNotifier{db: db, redis: redisClient}
}

// TransferCompleted records a DEBIT notification for the sender and a
// CREDIT notification for the recipient, each naming the counterparty,
// then enqueues the event for out-of-band delivery.
func (n *WalletNotifier) TransferCompleted(evt ledger.TransferEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fromName := n.displayName(ctx, evt.FromUserID)
	toName := n.displayName(ctx, evt.ToUserID)

	n.store(ctx, evt.FromUserID, toName, evt.Amount, models.EntryDebit)
	n.store(ctx, evt.ToUserID, fromName, evt.Amount, models.EntryCredit)

	if n.redis == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("[NOTIFY] failed to encode event %s: %v", evt.PairID, err)
		return
	}
	if err := n.redis.RPush(ctx, Queue, data).Err(); err != nil {
		log.Printf("[NOTIFY] failed to enqueue event %s: %v", evt.PairID, err)
	}
}

func (n *WalletNotifier) store(ctx context.Context, userID, name string, amount int64, entryType string) {
	_, err := n.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, name, amount, type, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, name, amount, entryType, time.Now().UTC())
	if err != nil {
		log.Printf("[NOTIFY] failed to store notification for user %s: %v", userID, err)
	}
}

func (n *WalletNotifier) displayName(ctx context.Context, userID string) string {
	var first, last string
	err := n.db.QueryRowContext(ctx,
		`SELECT first_name, last_name FROM users WHERE id = $1`, userID).Scan(&first, &last)
	if err != nil {
		log.Printf("[NOTIFY] failed to resolve name for user %s: %v", userID, err)
		return "Unknown"
	}
	if last == "" {
		return first
	}
	return first + " " + last
}
