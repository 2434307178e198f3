package models

import "time"

type Group struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// GroupMember tracks one user's standing inside a group. Balance is
// signed: positive means the group owes the member, negative means the
// member owes the group. TotalExpenditure is the running sum of amounts
// the member has fronted for the group.
type GroupMember struct {
	GroupID          string `json:"group_id" db:"group_id"`
	UserID           string `json:"user_id" db:"user_id"`
	Balance          int64  `json:"balance" db:"balance"`
	TotalExpenditure int64  `json:"total_expenditure" db:"total_expenditure"`
	Version          int    `json:"version" db:"version"`
}

type GroupTransaction struct {
	ID              string    `json:"id" db:"id"`
	GroupID         string    `json:"group_id" db:"group_id"`
	PaidByUserID    string    `json:"paid_by_user_id" db:"paid_by_user_id"`
	Description     string    `json:"description" db:"description"`
	Amount          int64     `json:"amount" db:"amount"`
	TransactionDate time.Time `json:"transaction_date" db:"transaction_date"`
}

// Share is one member's portion of a group expense. The shares of a
// group transaction always sum exactly to its amount.
type Share struct {
	TransactionID string `json:"transaction_id" db:"transaction_id"`
	UserID        string `json:"user_id" db:"user_id"`
	ShareAmount   int64  `json:"share_amount" db:"share_amount"`
}
