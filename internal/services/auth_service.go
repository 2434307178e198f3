package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/echowallet/backend/internal/secrets"
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *validator.Validate
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	FirstName string `json:"firstname" validate:"required,min=2" example:"John"`
	LastName  string `json:"lastname" validate:"omitempty,min=1" example:"Doe"`
	Email     string `json:"email" validate:"required,email" example:"user@example.com"`
	Password  string `json:"password" validate:"required,min=6" example:"password123"`
	PIN       string `json:"pin" validate:"required,len=6,numeric" example:"123456"`
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=6" example:"password123"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	User  UserProfile `json:"user"`
}

// UserProfile is the public view of a user
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: validator.New(),
	}
}

// Register handles user registration
// @Summary Register a new user
// @Description Register a new user and create their zero-balance wallet account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 200 {object} AuthResponse "Registration successful"
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /user/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	var req RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Registration validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	hashedPassword, err := secrets.Hash(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}
	hashedPIN, err := secrets.Hash(req.PIN)
	if err != nil {
		log.Printf("[AUTH] PIN hashing failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}

	userID := uuid.NewString()
	accountID := uuid.NewString()

	// User and their zero-balance account are created together: every
	// user has exactly one account from the moment they exist.
	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[AUTH] Transaction start failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO users (id, email, password, pin, first_name, last_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		userID, strings.ToLower(req.Email), hashedPassword, hashedPIN,
		req.FirstName, req.LastName, time.Now().UTC())
	if err != nil {
		log.Printf("[AUTH] User creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Email already exists", http.StatusConflict, nil)
		return
	}

	_, err = tx.Exec(`
		INSERT INTO accounts (id, user_id, balance, total_credit, total_debit, version, updated_at)
		VALUES ($1, $2, 0, 0, 0, 1, $3)`,
		accountID, userID, time.Now().UTC())
	if err != nil {
		log.Printf("[AUTH] Account creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	if err = tx.Commit(); err != nil {
		log.Printf("[AUTH] Transaction commit failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] User created successfully - ID: %s, Email: %s", userID, req.Email)

	token, err := generateJWT(userID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{
		Token: token,
		User: UserProfile{
			ID:        userID,
			Email:     strings.ToLower(req.Email),
			FirstName: req.FirstName,
			LastName:  req.LastName,
		},
	})
}

// Login handles user authentication
// @Summary Login user
// @Description Authenticate user with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /user/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Login validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var user UserProfile
	var hashedPassword string
	err := s.db.QueryRow(`
		SELECT id, email, first_name, last_name, password
		FROM users WHERE email = $1`,
		strings.ToLower(req.Email)).
		Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &hashedPassword)
	if err != nil {
		log.Printf("[AUTH] User not found for email: %s", req.Email)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if !secrets.Verify(req.Password, hashedPassword) {
		log.Printf("[AUTH] Invalid password for user: %s", req.Email)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	token, err := generateJWT(user.ID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %s: %v", user.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for user %s", user.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, User: user})
}

// Logout handles user logout
// @Summary Logout user
// @Description Logout user and blacklist the token
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string "Logout successful"
// @Router /user/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:] // Remove "Bearer " prefix

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

// GetProfile returns the authenticated user's profile
// @Summary Get user profile
// @Description Get the authenticated user's profile details
// @Tags auth
// @Produce json
// @Success 200 {object} UserProfile
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /user/profile [get]
func (s *AuthService) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var user UserProfile
	err := s.db.QueryRow(`
		SELECT id, email, first_name, last_name FROM users WHERE id = $1`, userID).
		Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[AUTH] Failed to fetch profile for %s: %v", userID, err)
			SendErrorResponse(w, "Failed to fetch profile", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// ResetPIN changes the transaction PIN after verifying the old one
// @Summary Reset transaction PIN
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{oldPin=string,newPin=string} true "PIN reset request"
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Router /user/reset-pin [post]
func (s *AuthService) ResetPIN(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		OldPIN string `json:"oldPin" validate:"required,len=6,numeric"`
		NewPIN string `json:"newPin" validate:"required,len=6,numeric"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var hashedPIN string
	if err := s.db.QueryRow(`SELECT pin FROM users WHERE id = $1`, userID).Scan(&hashedPIN); err != nil {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}
	if !secrets.Verify(req.OldPIN, hashedPIN) {
		log.Printf("[AUTH] Invalid old PIN for user %s", userID)
		SendErrorResponse(w, "Invalid PIN", http.StatusUnauthorized, nil)
		return
	}

	newHash, err := secrets.Hash(req.NewPIN)
	if err != nil {
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}
	if _, err := s.db.Exec(`UPDATE users SET pin = $1 WHERE id = $2`, newHash, userID); err != nil {
		log.Printf("[AUTH] PIN update failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to reset PIN", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "PIN reset successful"})
}

// ResetPassword changes the password after verifying the old one
// @Summary Reset password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{oldPassword=string,newPassword=string} true "Password reset request"
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Router /user/reset-password [post]
func (s *AuthService) ResetPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		OldPassword string `json:"oldPassword" validate:"required,min=6"`
		NewPassword string `json:"newPassword" validate:"required,min=6"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var hashedPassword string
	if err := s.db.QueryRow(`SELECT password FROM users WHERE id = $1`, userID).Scan(&hashedPassword); err != nil {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}
	if !secrets.Verify(req.OldPassword, hashedPassword) {
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	newHash, err := secrets.Hash(req.NewPassword)
	if err != nil {
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}
	if _, err := s.db.Exec(`UPDATE users SET password = $1 WHERE id = $2`, newHash, userID); err != nil {
		log.Printf("[AUTH] Password update failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to reset password", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Password reset successful"})
}

// decodeBody enforces the shared body discipline: size cap, unknown
// field rejection, single JSON object.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func generateJWT(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}
