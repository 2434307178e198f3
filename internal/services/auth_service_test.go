package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/echowallet/backend/internal/secrets"
)

func TestAuthService_Register(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewAuthService(db, redisClient)

	t.Run("successful registration creates user and account together", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").
			WithArgs(sqlmock.AnyArg(), "ada@example.com", sqlmock.AnyArg(), sqlmock.AnyArg(),
				"Ada", "Obi", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body := `{"firstname":"Ada","lastname":"Obi","email":"Ada@example.com","password":"password123","pin":"123456"}`
		r := httptest.NewRequest("POST", "/user/register", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var response AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "ada@example.com", response.User.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email maps to conflict", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		body := `{"firstname":"Ada","email":"ada@example.com","password":"password123","pin":"123456"}`
		r := httptest.NewRequest("POST", "/user/register", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid pin format", func(t *testing.T) {
		body := `{"firstname":"Ada","email":"ada@example.com","password":"password123","pin":"12ab"}`
		r := httptest.NewRequest("POST", "/user/register", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewAuthService(db, redisClient)

	hashed, err := secrets.Hash("password123")
	assert.NoError(t, err)

	userCols := []string{"id", "email", "first_name", "last_name", "password"}

	t.Run("successful login", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name, last_name, password").
			WithArgs("ada@example.com").
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow("user-1", "ada@example.com", "Ada", "Obi", hashed))

		body := `{"email":"ada@example.com","password":"password123"}`
		r := httptest.NewRequest("POST", "/user/login", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var response AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "user-1", response.User.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name, last_name, password").
			WithArgs("ada@example.com").
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow("user-1", "ada@example.com", "Ada", "Obi", hashed))

		body := `{"email":"ada@example.com","password":"wrongpass"}`
		r := httptest.NewRequest("POST", "/user/login", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown email", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name, last_name, password").
			WithArgs("ghost@example.com").
			WillReturnError(assert.AnError)

		body := `{"email":"ghost@example.com","password":"password123"}`
		r := httptest.NewRequest("POST", "/user/login", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
