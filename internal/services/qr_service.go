package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

// qrTTL bounds how long a payment request stays scannable.
const qrTTL = 5 * time.Minute

var ErrQRExpired = errors.New("invalid or expired QR code")

// QRService issues single-use payment request codes. A code is a
// base64 payload naming the requester and amount, stored in Redis
// under a TTL; processing a code consumes it.
type QRService struct {
	db    *sql.DB
	redis *redis.Client
}

// PaymentRequest is the decoded payload behind a payment QR code.
type PaymentRequest struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Amount    int64  `json:"amount"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
}

func NewQRService(db *sql.DB, redis *redis.Client) *QRService {
	return &QRService{
		db:    db,
		redis: redis,
	}
}

// GeneratePaymentRequest creates a payment request code for userID and
// returns the code alongside a base64 PNG rendering of it.
func (s *QRService) GeneratePaymentRequest(ctx context.Context, userID string, amount int64) (string, string, error) {
	if s.redis == nil {
		return "", "", errors.New("payment requests unavailable without redis")
	}

	var first, last string
	err := s.db.QueryRowContext(ctx, `
		SELECT first_name, last_name FROM users WHERE id = $1`, userID).
		Scan(&first, &last)
	if err != nil {
		return "", "", fmt.Errorf("requester lookup: %w", err)
	}
	name := first
	if last != "" {
		name = first + " " + last
	}

	payload := PaymentRequest{
		UserID:    userID,
		Name:      name,
		Amount:    amount,
		Timestamp: time.Now().Unix(),
		Nonce:     generateNonce(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	code := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("qr:%s", code)
	if err := s.redis.Set(ctx, key, jsonData, qrTTL).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	return code, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ProcessPaymentRequest resolves a scanned code to its payment request
// and consumes it so it cannot be scanned twice.
func (s *QRService) ProcessPaymentRequest(ctx context.Context, code string) (*PaymentRequest, error) {
	if s.redis == nil {
		return nil, errors.New("payment requests unavailable without redis")
	}

	key := fmt.Sprintf("qr:%s", code)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrQRExpired
	}
	if err != nil {
		return nil, err
	}

	var req PaymentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return &req, nil
}

func generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
