package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/echowallet/backend/internal/models"
)

// DetailService serves the dashboard, friends and notification reads.
type DetailService struct {
	db        *sql.DB
	validator *ValidationHelper
}

// DashboardResponse aggregates the data the home screen renders
type DashboardResponse struct {
	Account struct {
		Balance            int64 `json:"balance"`
		CurrentMonthCredit int64 `json:"currentMonthCredit"`
		CurrentMonthDebit  int64 `json:"currentMonthDebit"`
	} `json:"account"`
	PieData struct {
		FoodExpenditure     int64 `json:"foodExpenditure"`
		ShoppingExpenditure int64 `json:"shoppingExpenditure"`
		TravelExpenditure   int64 `json:"travelExpenditure"`
		OtherExpenditure    int64 `json:"otherExpenditure"`
	} `json:"pieData"`
	BarData []MonthlySpend `json:"barData"`
}

// MonthlySpend is one month's total debits, keyed "YYYY-MM"
type MonthlySpend struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

func NewDetailService(db *sql.DB) *DetailService {
	return &DetailService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// GetFriends lists the caller's friends
// @Summary Get friends
// @Tags details
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{friends=[]UserProfile}
// @Failure 500 {object} ErrorResponse
// @Router /detail/friends [get]
func (s *DetailService) GetFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT u.id, u.email, u.first_name, u.last_name
		FROM friends f
		INNER JOIN users u ON f.friend_id = u.id
		WHERE f.user_id = $1
		ORDER BY u.first_name`, userID)
	if err != nil {
		log.Printf("[DETAIL] Failed to fetch friends for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch friends", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	friends := []UserProfile{}
	for rows.Next() {
		var u UserProfile
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName); err != nil {
			SendErrorResponse(w, "Failed to fetch friends", http.StatusInternalServerError, nil)
			return
		}
		friends = append(friends, u)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"friends": friends})
}

// AddFriend records a friend relationship for the caller
// @Summary Add friend
// @Tags details
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{friendId=string} true "Friend request"
// @Success 201 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /detail/friends [post]
func (s *DetailService) AddFriend(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		FriendID string `json:"friendId" validate:"required"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if req.FriendID == userID {
		SendErrorResponse(w, "Cannot add yourself as a friend", http.StatusBadRequest, nil)
		return
	}

	var exists bool
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, req.FriendID).Scan(&exists); err != nil || !exists {
		SendErrorResponse(w, "User does not exist", http.StatusNotFound, nil)
		return
	}

	if _, err := s.db.Exec(`
		INSERT INTO friends (user_id, friend_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, friend_id) DO NOTHING`,
		userID, req.FriendID, time.Now().UTC()); err != nil {
		log.Printf("[DETAIL] Failed to add friend for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to add friend", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"message": "Friend added successfully"})
}

// GetNotifications returns the caller's latest notifications
// @Summary Get notifications
// @Tags details
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{notification=[]models.Notification}
// @Failure 500 {object} ErrorResponse
// @Router /detail/notifications [get]
func (s *DetailService) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT name, amount, type
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 10`, userID)
	if err != nil {
		log.Printf("[DETAIL] Failed to fetch notifications for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch notifications", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.Name, &n.Amount, &n.Type); err != nil {
			SendErrorResponse(w, "Failed to fetch notifications", http.StatusInternalServerError, nil)
			return
		}
		notifications = append(notifications, n)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"notification": notifications})
}

// Dashboard aggregates balance, month totals, category spend and a
// six-month spend series
// @Summary Dashboard details
// @Tags details
// @Produce json
// @Security BearerAuth
// @Success 200 {object} DashboardResponse
// @Failure 500 {object} ErrorResponse
// @Router /detail/dashboard [get]
func (s *DetailService) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var resp DashboardResponse

	err := s.db.QueryRow(`SELECT balance FROM accounts WHERE user_id = $1`, userID).
		Scan(&resp.Account.Balance)
	if err != nil && err != sql.ErrNoRows {
		log.Printf("[DETAIL] Dashboard balance lookup failed for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch dashboard", http.StatusInternalServerError, nil)
		return
	}

	now := time.Now().UTC()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	typeRows, err := s.db.Query(`
		SELECT t.type, COALESCE(SUM(t.amount), 0)
		FROM transactions t
		INNER JOIN accounts a ON t.account_id = a.id
		WHERE a.user_id = $1 AND t.created_at >= $2
		GROUP BY t.type`, userID, startOfMonth)
	if err != nil {
		log.Printf("[DETAIL] Dashboard month totals failed for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch dashboard", http.StatusInternalServerError, nil)
		return
	}
	for typeRows.Next() {
		var entryType string
		var sum int64
		if err := typeRows.Scan(&entryType, &sum); err != nil {
			typeRows.Close()
			SendErrorResponse(w, "Failed to fetch dashboard", http.StatusInternalServerError, nil)
			return
		}
		switch entryType {
		case models.EntryCredit:
			resp.Account.CurrentMonthCredit = sum
		case models.EntryDebit:
			resp.Account.CurrentMonthDebit = sum
		}
	}
	typeRows.Close()

	categoryRows, err := s.db.Query(`
		SELECT t.category, COALESCE(SUM(t.amount), 0)
		FROM transactions t
		INNER JOIN accounts a ON t.account_id = a.id
		WHERE a.user_id = $1 AND t.created_at >= $2 AND t.type = $3
		GROUP BY t.category`, userID, startOfMonth, models.EntryDebit)
	if err != nil {
		log.Printf("[DETAIL] Dashboard category totals failed for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch dashboard", http.StatusInternalServerError, nil)
		return
	}
	for categoryRows.Next() {
		var category string
		var sum int64
		if err := categoryRows.Scan(&category, &sum); err != nil {
			categoryRows.Close()
			SendErrorResponse(w, "Failed to fetch dashboard", http.StatusInternalServerError, nil)
			return
		}
		switch models.TransactionCategory(category) {
		case models.CategoryFood:
			resp.PieData.FoodExpenditure = sum
		case models.CategoryShopping:
			resp.PieData.ShoppingExpenditure = sum
		case models.CategoryTravel:
			resp.PieData.TravelExpenditure = sum
		case models.CategoryOther:
			resp.PieData.OtherExpenditure = sum
		}
	}
	categoryRows.Close()

	sixMonthsAgo := now.AddDate(0, -6, 0)
	monthRows, err := s.db.Query(`
		SELECT to_char(date_trunc('month', t.created_at), 'YYYY-MM') AS month,
		       COALESCE(SUM(t.amount), 0)
		FROM transactions t
		INNER JOIN accounts a ON t.account_id = a.id
		WHERE a.user_id = $1 AND t.created_at >= $2 AND t.type = $3
		GROUP BY month
		ORDER BY month`, userID, sixMonthsAgo, models.EntryDebit)
	if err != nil {
		log.Printf("[DETAIL] Dashboard monthly series failed for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch dashboard", http.StatusInternalServerError, nil)
		return
	}
	defer monthRows.Close()

	resp.BarData = []MonthlySpend{}
	for monthRows.Next() {
		var m MonthlySpend
		if err := monthRows.Scan(&m.Name, &m.Value); err != nil {
			SendErrorResponse(w, "Failed to fetch dashboard", http.StatusInternalServerError, nil)
			return
		}
		resp.BarData = append(resp.BarData, m)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
