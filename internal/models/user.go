package models

import "time"

type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"firstname" db:"first_name"`
	LastName  string    `json:"lastname" db:"last_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Friend struct {
	UserID   string `json:"user_id" db:"user_id"`
	FriendID string `json:"friend_id" db:"friend_id"`
}

type Notification struct {
	ID        int       `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Amount    int64     `json:"amount" db:"amount"`
	Type      string    `json:"type" db:"type"` // DEBIT or CREDIT
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
