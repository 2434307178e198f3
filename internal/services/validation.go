package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/echowallet/backend/internal/ledger"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(validationErr, &validationErrors) {
			errorResp.Details = make(map[string]string)
			for _, err := range validationErrors {
				errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
			}
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendLedgerError maps a ledger error kind to its HTTP status. The
// ledger itself knows nothing about transport codes.
func SendLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErrors)
			return
		}
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, ledger.ErrNotFound):
		SendErrorResponse(w, "Not found", http.StatusNotFound, nil)
	case errors.Is(err, ledger.ErrUnauthorized):
		SendErrorResponse(w, "Invalid PIN", http.StatusUnauthorized, nil)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		SendErrorResponse(w, "Insufficient balance", http.StatusBadRequest, nil)
	case errors.Is(err, ledger.ErrShareMismatch):
		SendErrorResponse(w, "The sum of all shares must equal the total amount", http.StatusBadRequest, nil)
	case errors.Is(err, ledger.ErrUnknownMember):
		SendErrorResponse(w, "Member does not exist", http.StatusNotFound, nil)
	case errors.Is(err, ledger.ErrConflict):
		SendErrorResponse(w, "Concurrent update, please retry", http.StatusConflict, nil)
	default:
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
	}
}
