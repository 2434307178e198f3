package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/echowallet/backend/internal/ledger"
)

type GroupService struct {
	db        *sql.DB
	engine    *ledger.Engine
	verifier  ledger.CredentialVerifier
	validator *ValidationHelper
}

// GroupExpenseRequest represents a split expense request
// @Description Group expense request: shares keyed by user id must sum to amount
type GroupExpenseRequest struct {
	GroupID     string           `json:"groupId" validate:"required"`
	Description string           `json:"description" validate:"required,max=200"`
	Amount      int64            `json:"amount" validate:"required,gt=0"`
	Shares      map[string]int64 `json:"shares" validate:"required,min=1,dive,gt=0"`
	PIN         string           `json:"pin" validate:"required,len=6,numeric"`
}

// GroupView is one group in the caller's list
type GroupView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Balance     int64  `json:"balance"`
}

func NewGroupService(db *sql.DB, engine *ledger.Engine, verifier ledger.CredentialVerifier) *GroupService {
	return &GroupService{
		db:        db,
		engine:    engine,
		verifier:  verifier,
		validator: NewValidationHelper(),
	}
}

// CreateGroup creates a group with the caller as first member
// @Summary Create group
// @Tags groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{title=string,description=string} true "Group details"
// @Success 201 {object} object{id=string}
// @Failure 400 {object} ErrorResponse
// @Router /group [post]
func (s *GroupService) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Title       string `json:"title" validate:"required,min=1,max=100"`
		Description string `json:"description" validate:"max=200"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	groupID := uuid.NewString()

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to create group", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO groups (id, title, description, created_at)
		VALUES ($1, $2, $3, $4)`,
		groupID, req.Title, req.Description, time.Now().UTC()); err != nil {
		log.Printf("[GROUP] Group creation failed: %v", err)
		SendErrorResponse(w, "Failed to create group", http.StatusInternalServerError, nil)
		return
	}
	if _, err := tx.Exec(`
		INSERT INTO group_members (group_id, user_id, balance, total_expenditure, version)
		VALUES ($1, $2, 0, 0, 1)`, groupID, userID); err != nil {
		log.Printf("[GROUP] Founder membership failed: %v", err)
		SendErrorResponse(w, "Failed to create group", http.StatusInternalServerError, nil)
		return
	}
	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to create group", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[GROUP] Group %s created by %s", groupID, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": groupID, "message": "Group added successfully"})
}

// ListGroups lists the caller's groups with their balance in each
// @Summary List groups
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{groups=[]GroupView}
// @Router /group [get]
func (s *GroupService) ListGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT g.id, g.title, g.description, g.created_at, gm.balance
		FROM group_members gm
		INNER JOIN groups g ON gm.group_id = g.id
		WHERE gm.user_id = $1
		ORDER BY g.created_at DESC`, userID)
	if err != nil {
		log.Printf("[GROUP] Failed to list groups for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch groups", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	groups := []GroupView{}
	for rows.Next() {
		var g GroupView
		var createdAt time.Time
		if err := rows.Scan(&g.ID, &g.Title, &g.Description, &createdAt, &g.Balance); err != nil {
			SendErrorResponse(w, "Failed to fetch groups", http.StatusInternalServerError, nil)
			return
		}
		g.Date = createdAt.Format("Mon, Jan 2, 3:04 PM")
		groups = append(groups, g)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"groups": groups})
}

// GetGroup returns one group's members, expenses and the caller's standing
// @Summary Get group detail
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Success 200 {object} object{title=string,members=[]object,account=object,transactions=[]object}
// @Failure 404 {object} ErrorResponse
// @Router /group/{id} [get]
func (s *GroupService) GetGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	groupID := chi.URLParam(r, "id")

	var title string
	if err := s.db.QueryRow(`SELECT title FROM groups WHERE id = $1`, groupID).Scan(&title); err != nil {
		SendErrorResponse(w, "Invalid group id", http.StatusNotFound, nil)
		return
	}

	type memberView struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	memberRows, err := s.db.Query(`
		SELECT u.id, u.first_name, u.last_name
		FROM group_members gm
		INNER JOIN users u ON gm.user_id = u.id
		WHERE gm.group_id = $1
		ORDER BY u.first_name`, groupID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch group", http.StatusInternalServerError, nil)
		return
	}
	defer memberRows.Close()

	members := []memberView{}
	names := map[string]string{}
	for memberRows.Next() {
		var id, first, last string
		if err := memberRows.Scan(&id, &first, &last); err != nil {
			SendErrorResponse(w, "Failed to fetch group", http.StatusInternalServerError, nil)
			return
		}
		name := first
		if last != "" {
			name = first + " " + last
		}
		members = append(members, memberView{ID: id, Name: name})
		names[id] = name
	}

	var balance, totalExpenditure int64
	err = s.db.QueryRow(`
		SELECT balance, total_expenditure FROM group_members
		WHERE group_id = $1 AND user_id = $2`, groupID, userID).
		Scan(&balance, &totalExpenditure)
	if err != nil {
		SendErrorResponse(w, "Not a member of this group", http.StatusForbidden, nil)
		return
	}

	type expenseView struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		PaidBy string `json:"paidBy"`
		Date   string `json:"date"`
		Share  int64  `json:"share"`
		Amount int64  `json:"amount"`
	}
	expenseRows, err := s.db.Query(`
		SELECT gt.id, gt.description, gt.paid_by_user_id, gt.transaction_date, gt.amount, sh.share_amount
		FROM group_transactions gt
		INNER JOIN shares sh ON sh.transaction_id = gt.id AND sh.user_id = $2
		WHERE gt.group_id = $1
		ORDER BY gt.transaction_date DESC`, groupID, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch group", http.StatusInternalServerError, nil)
		return
	}
	defer expenseRows.Close()

	expenses := []expenseView{}
	for expenseRows.Next() {
		var e expenseView
		var paidBy string
		var date time.Time
		if err := expenseRows.Scan(&e.ID, &e.Name, &paidBy, &date, &e.Amount, &e.Share); err != nil {
			SendErrorResponse(w, "Failed to fetch group", http.StatusInternalServerError, nil)
			return
		}
		e.PaidBy = names[paidBy]
		if e.PaidBy == "" {
			e.PaidBy = "Unknown"
		}
		e.Date = date.Format("Mon, Jan 2, 3:04 PM")
		expenses = append(expenses, e)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"title":   title,
		"members": members,
		"account": map[string]int64{
			"balance":          balance,
			"totalExpenditure": totalExpenditure,
		},
		"transactions": expenses,
	})
}

// AddMember adds a user to a group with a zero balance
// @Summary Add group member
// @Tags groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{groupId=string,userId=string} true "Membership request"
// @Success 201 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /group/member [post]
func (s *GroupService) AddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID string `json:"groupId" validate:"required"`
		UserID  string `json:"userId" validate:"required"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var exists bool
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, req.UserID).Scan(&exists); err != nil || !exists {
		SendErrorResponse(w, "Member does not exist", http.StatusNotFound, nil)
		return
	}

	if _, err := s.db.Exec(`
		INSERT INTO group_members (group_id, user_id, balance, total_expenditure, version)
		VALUES ($1, $2, 0, 0, 1)`, req.GroupID, req.UserID); err != nil {
		log.Printf("[GROUP] Failed to add member %s to %s: %v", req.UserID, req.GroupID, err)
		SendErrorResponse(w, "Failed to add member", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"message": "Member added successfully"})
}

// AddExpense records a split expense paid by the caller
// @Summary Add group expense
// @Description Record a PIN-protected group expense split by shares
// @Tags groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body GroupExpenseRequest true "Expense request"
// @Success 201 {object} ledger.GroupExpenseResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /group/expense [post]
func (s *GroupService) AddExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req GroupExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	verified, err := s.verifier.Verify(r.Context(), userID, req.PIN)
	if err != nil {
		log.Printf("[GROUP] PIN verification error for %s: %v", userID, err)
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}
	if !verified {
		SendErrorResponse(w, "Invalid PIN", http.StatusUnauthorized, nil)
		return
	}

	result, err := s.engine.RecordGroupExpense(r.Context(), ledger.GroupExpenseInput{
		GroupID:      req.GroupID,
		PaidByUserID: userID,
		Description:  req.Description,
		Amount:       req.Amount,
		Shares:       req.Shares,
	})
	if err != nil {
		log.Printf("[GROUP] Expense in group %s failed: %v", req.GroupID, err)
		SendLedgerError(w, err)
		return
	}

	log.Printf("[GROUP] Expense %s recorded in group %s by %s", result.TransactionID, req.GroupID, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message":       "Group transaction added successfully",
		"transactionId": result.TransactionID,
	})
}

// DeleteExpense reverses a recorded group expense
// @Summary Delete group expense
// @Description Reverse a group expense: member balances and the payer's expenditure return to their pre-expense values
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group transaction ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /group/expense/{id} [delete]
func (s *GroupService) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	expenseID := chi.URLParam(r, "id")

	if err := s.engine.ReverseGroupExpense(r.Context(), expenseID); err != nil {
		log.Printf("[GROUP] Reversal of expense %s failed: %v", expenseID, err)
		SendLedgerError(w, err)
		return
	}

	log.Printf("[GROUP] Expense %s reversed", expenseID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Group transaction deleted successfully"})
}

// DeleteGroup removes a group
// @Summary Delete group
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /group/{id} [delete]
func (s *GroupService) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")

	var exists bool
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM groups WHERE id = $1)`, groupID).Scan(&exists); err != nil || !exists {
		SendErrorResponse(w, "Group does not exist", http.StatusNotFound, nil)
		return
	}

	if _, err := s.db.Exec(`DELETE FROM groups WHERE id = $1`, groupID); err != nil {
		log.Printf("[GROUP] Failed to delete group %s: %v", groupID, err)
		SendErrorResponse(w, "Failed to delete group", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Group deleted successfully"})
}
