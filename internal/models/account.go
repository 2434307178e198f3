package models

import "time"

// TransactionCategory classifies a transfer for spending reports.
type TransactionCategory string

const (
	CategoryFood     TransactionCategory = "FOOD"
	CategoryShopping TransactionCategory = "SHOPPING"
	CategoryTravel   TransactionCategory = "TRAVEL"
	CategoryOther    TransactionCategory = "OTHER"
)

const (
	EntryDebit  = "DEBIT"
	EntryCredit = "CREDIT"
)

// Account holds a user's wallet balance in minor currency units.
// Exactly one account exists per user, created at registration.
// Balance and the running totals are only ever moved by relative
// increments inside a ledger operation, never assigned wholesale.
type Account struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Balance     int64     `json:"balance" db:"balance"` // in cents, never negative
	TotalCredit int64     `json:"total_credit" db:"total_credit"`
	TotalDebit  int64     `json:"total_debit" db:"total_debit"`
	Version     int       `json:"version" db:"version"` // for optimistic locking
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Transaction is one side of a transfer. Every transfer writes exactly
// two rows sharing a pair id: a DEBIT on the sender's account and a
// CREDIT on the recipient's. Rows are immutable once created.
type Transaction struct {
	ID             string              `json:"id" db:"id"`
	PairID         string              `json:"pair_id" db:"pair_id"`
	AccountID      string              `json:"account_id" db:"account_id"`
	CounterpartyID string              `json:"counterparty_id" db:"counterparty_id"`
	Type           string              `json:"type" db:"type"` // DEBIT or CREDIT
	Amount         int64               `json:"amount" db:"amount"`
	Category       TransactionCategory `json:"category" db:"category"`
	Description    string              `json:"description" db:"description"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
}
