package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestHTTPStatusAndCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
		{ErrExpiredToken, http.StatusUnauthorized, "EXPIRED_TOKEN"},
		{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
		{ErrSlotUnavailable, http.StatusConflict, "SLOT_UNAVAILABLE"},
		{ErrDuplicateIdentity, http.StatusConflict, "DUPLICATE_IDENTITY"},
		{ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{ErrSameSecret, http.StatusBadRequest, "SAME_SECRET"},
		{ErrConflict, http.StatusConflict, "CONFLICT"},
		{fmt.Errorf("slot 9: %w", ErrSlotUnavailable), http.StatusConflict, "SLOT_UNAVAILABLE"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.err.Error(), func(t *testing.T) {
			if got := HTTPStatusFromError(tt.err); got != tt.status {
				t.Errorf("status = %d, want %d", got, tt.status)
			}
			if got := ErrorCode(tt.err); got != tt.code {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
		})
	}
}

func TestTranslatePgError(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	if err := TranslatePgError(unique); !errors.Is(err, ErrDuplicateIdentity) || !strings.Contains(err.Error(), "users_email_key") {
		t.Fatalf("unique violation = %v", err)
	}
	fk := &pgconn.PgError{Code: "23503"}
	if err := TranslatePgError(fk); !errors.Is(err, ErrConflict) {
		t.Fatalf("fk violation = %v", err)
	}
	other := errors.New("connection reset")
	if err := TranslatePgError(other); err != other {
		t.Fatalf("unrelated error changed: %v", err)
	}
}

func TestRespondWithDomainErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithDomainError(rec, errors.New("dial tcp 10.0.0.1:5432: refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.1") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
}
