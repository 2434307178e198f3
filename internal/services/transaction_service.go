package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/echowallet/backend/internal/ledger"
	"github.com/echowallet/backend/internal/models"
)

type TransactionService struct {
	db        *sql.DB
	engine    *ledger.Engine
	validator *ValidationHelper
}

// TransferRequest represents a peer transfer request
// @Description Peer-to-peer transfer request
type TransferRequest struct {
	ToUserID    string `json:"to_id" validate:"required" example:"7b5a…"`
	Amount      int64  `json:"amount" validate:"required,gt=0" example:"2500"`
	Category    string `json:"category" validate:"required,oneof=FOOD SHOPPING TRAVEL OTHER" example:"FOOD"`
	Description string `json:"description" validate:"max=200"`
	PIN         string `json:"pin" validate:"required,len=6,numeric"`
}

// TransactionView is one history row with the counterparty's name
type TransactionView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Date     string `json:"date"`
	Amount   int64  `json:"amount"`
	Type     string `json:"type"`
	Category string `json:"category"`
}

func NewTransactionService(db *sql.DB, engine *ledger.Engine) *TransactionService {
	return &TransactionService{
		db:        db,
		engine:    engine,
		validator: NewValidationHelper(),
	}
}

// Transfer moves money to another user
// @Summary Transfer money
// @Description Execute a PIN-protected transfer to another user
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransferRequest true "Transfer request"
// @Success 201 {object} ledger.TransferResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /transaction/transfer [post]
func (ts *TransactionService) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := ts.engine.Transfer(r.Context(), ledger.TransferInput{
		FromUserID:  userID,
		ToUserID:    req.ToUserID,
		Amount:      req.Amount,
		Category:    models.TransactionCategory(req.Category),
		Description: req.Description,
		PIN:         req.PIN,
	})
	if err != nil {
		log.Printf("[TRANSFER] Transfer from %s failed: %v", userID, err)
		SendLedgerError(w, err)
		return
	}

	log.Printf("[TRANSFER] Transfer %s: %s -> %s, amount %d", result.PairID, userID, req.ToUserID, req.Amount)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"transaction": result,
	})
}

// ListTransactions returns the caller's transaction history
// @Summary List transactions
// @Description Get the caller's transactions with counterparty names
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{transactions=[]TransactionView}
// @Failure 500 {object} ErrorResponse
// @Router /transaction [get]
func (ts *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	transactions, err := ts.fetchTransactions(userID, limit)
	if err != nil {
		log.Printf("[TRANSFER] Failed to fetch transactions for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetRecentTransactions returns the caller's most recent transactions
// @Summary Get recent transactions
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of transactions to return (default: 10, max: 100)"
// @Success 200 {array} TransactionView
// @Failure 500 {object} ErrorResponse
// @Router /transaction/recent [get]
func (ts *TransactionService) GetRecentTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Limit int `validate:"omitempty,min=1,max=100"`
	}
	req.Limit = 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			req.Limit = l
		}
	}
	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	transactions, err := ts.fetchTransactions(userID, req.Limit)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch recent transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

func (ts *TransactionService) fetchTransactions(userID string, limit int) ([]TransactionView, error) {
	rows, err := ts.db.Query(`
		SELECT t.id, u.first_name, u.last_name, t.amount, t.type, t.category, t.created_at
		FROM transactions t
		INNER JOIN accounts a ON t.account_id = a.id
		INNER JOIN accounts ca ON t.counterparty_id = ca.id
		INNER JOIN users u ON ca.user_id = u.id
		WHERE a.user_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []TransactionView{}
	for rows.Next() {
		var v TransactionView
		var first, last string
		var createdAt time.Time
		if err := rows.Scan(&v.ID, &first, &last, &v.Amount, &v.Type, &v.Category, &createdAt); err != nil {
			return nil, err
		}
		v.Name = first
		if last != "" {
			v.Name = first + " " + last
		}
		v.Date = createdAt.Format("Mon, Jan 2, 3:04 PM")
		transactions = append(transactions, v)
	}

	return transactions, rows.Err()
}
