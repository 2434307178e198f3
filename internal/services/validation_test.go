package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/echowallet/backend/internal/ledger"
)

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid transfer request", func(t *testing.T) {
		req := TransferRequest{
			ToUserID: "user-b",
			Amount:   2500,
			Category: "FOOD",
			PIN:      "123456",
		}
		assert.NoError(t, vh.ValidateStruct(&req))
	})

	t.Run("missing fields reported per field", func(t *testing.T) {
		req := TransferRequest{
			Amount:   -5,
			Category: "GAMBLING",
			PIN:      "12",
		}

		err := vh.ValidateStruct(&req)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 4) // ToUserID, Amount, Category, PIN
	})

	t.Run("non-numeric pin", func(t *testing.T) {
		req := TransferRequest{
			ToUserID: "user-b",
			Amount:   2500,
			Category: "FOOD",
			PIN:      "12ab56",
		}

		err := vh.ValidateStruct(&req)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "PIN", validationErrors[0].Field())
		assert.Equal(t, "numeric", validationErrors[0].Tag())
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation details", func(t *testing.T) {
		vh := NewValidationHelper()
		req := GroupExpenseRequest{
			Amount: -100,
			PIN:    "abc",
		}

		validationErr := vh.ValidateStruct(&req)
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "GroupID")
		assert.Contains(t, response.Details, "Amount")
		assert.Contains(t, response.Details, "PIN")
	})
}

func TestSendLedgerError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid input", ledger.ErrInvalidInput, http.StatusBadRequest},
		{"not found", ledger.ErrNotFound, http.StatusNotFound},
		{"unauthorized", ledger.ErrUnauthorized, http.StatusUnauthorized},
		{"insufficient funds", ledger.ErrInsufficientFunds, http.StatusBadRequest},
		{"share mismatch", ledger.ErrShareMismatch, http.StatusBadRequest},
		{"unknown member", ledger.ErrUnknownMember, http.StatusNotFound},
		{"conflict", ledger.ErrConflict, http.StatusConflict},
		{"store failure", ledger.ErrStore, http.StatusInternalServerError},
		{"unclassified", fmt.Errorf("unclassified"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			SendLedgerError(w, fmt.Errorf("context: %w", tc.err))

			assert.Equal(t, tc.status, w.Code)

			var response ErrorResponse
			err := json.Unmarshal(w.Body.Bytes(), &response)
			assert.NoError(t, err)
			assert.NotEmpty(t, response.Error)
		})
	}
}
