package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/echowallet/backend/internal/ledger"
)

type AccountService struct {
	db        *sql.DB
	engine    *ledger.Engine
	validator *ValidationHelper
}

func NewAccountService(db *sql.DB, engine *ledger.Engine) *AccountService {
	return &AccountService{
		db:        db,
		engine:    engine,
		validator: NewValidationHelper(),
	}
}

// AddBalance tops up the caller's wallet
// @Summary Add balance
// @Description Top up the caller's account. Top-ups do not appear in the transaction log.
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=int64} true "Top-up request"
// @Success 200 {object} object{balance=int64}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /account/add-balance [post]
func (s *AccountService) AddBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount int64 `json:"amount" validate:"required,gt=0"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	balance, err := s.engine.AddBalance(r.Context(), userID, req.Amount)
	if err != nil {
		log.Printf("[ACCOUNT] Top-up failed for user %s: %v", userID, err)
		SendLedgerError(w, err)
		return
	}

	log.Printf("[ACCOUNT] Top-up for user %s: +%d, balance %d", userID, req.Amount, balance)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Balance added",
		"balance": balance,
	})
}

// GetBalance returns the caller's balance and running totals
// @Summary Get balance
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{balance=int64,total_credit=int64,total_debit=int64}
// @Failure 404 {object} ErrorResponse
// @Router /account/balance [get]
func (s *AccountService) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var balance, totalCredit, totalDebit int64
	err := s.db.QueryRow(`
		SELECT balance, total_credit, total_debit FROM accounts WHERE user_id = $1`, userID).
		Scan(&balance, &totalCredit, &totalDebit)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[ACCOUNT] Balance lookup failed for %s: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"balance":      balance,
		"total_credit": totalCredit,
		"total_debit":  totalDebit,
	})
}

// SearchUsers finds transfer recipients by first name
// @Summary Search users
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param filter query string false "First name prefix"
// @Success 200 {object} object{users=[]UserProfile}
// @Router /user/search [get]
func (s *AccountService) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	filter := r.URL.Query().Get("filter")

	rows, err := s.db.Query(`
		SELECT id, email, first_name, last_name
		FROM users
		WHERE first_name ILIKE $1 AND id <> $2
		ORDER BY first_name
		LIMIT 10`, filter+"%", userID)
	if err != nil {
		log.Printf("[ACCOUNT] User search failed: %v", err)
		SendErrorResponse(w, "Failed to search users", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	users := []UserProfile{}
	for rows.Next() {
		var u UserProfile
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName); err != nil {
			SendErrorResponse(w, "Failed to search users", http.StatusInternalServerError, nil)
			return
		}
		users = append(users, u)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"users": users})
}
