package util

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError_PassesThroughDomainErrors(t *testing.T) {
	t.Parallel()

	err := NewDuplicateEmail()
	mapped := ToDomainError(err)
	assert.Equal(t, "DUPLICATE_EMAIL", mapped.Code)
	assert.Equal(t, http.StatusBadRequest, mapped.HTTPStatus)
}

func TestToDomainError_WrapsUnknownErrors(t *testing.T) {
	t.Parallel()

	mapped := ToDomainError(errors.New("connection reset"))
	assert.Equal(t, "INTERNAL_ERROR", mapped.Code)
	assert.Equal(t, http.StatusInternalServerError, mapped.HTTPStatus)
	// internals never leak into the client-facing message
	assert.Equal(t, "internal server error", mapped.Message)
}

func TestToDomainError_MapsNoRows(t *testing.T) {
	t.Parallel()

	mapped := ToDomainError(pgx.ErrNoRows)
	assert.Equal(t, "NOT_FOUND", mapped.Code)
	assert.Equal(t, http.StatusNotFound, mapped.HTTPStatus)
}

func TestHasCode(t *testing.T) {
	t.Parallel()

	assert.True(t, HasCode(NewUserNotFound(), "USER_NOT_FOUND"))
	assert.False(t, HasCode(NewUserNotFound(), "INVALID_CREDENTIALS"))
	assert.False(t, HasCode(errors.New("plain"), "USER_NOT_FOUND"))
	assert.False(t, HasCode(nil, "USER_NOT_FOUND"))
}

func TestStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		code   string
		status int
	}{
		{NewValidationError("bad", nil), "VALIDATION_FAILED", http.StatusBadRequest},
		{NewDuplicateEmail(), "DUPLICATE_EMAIL", http.StatusBadRequest},
		{NewUserNotFound(), "USER_NOT_FOUND", http.StatusBadRequest},
		{NewInvalidCredentials(), "INVALID_CREDENTIALS", http.StatusBadRequest},
		{NewInvalidOrExpiredToken(), "INVALID_OR_EXPIRED_TOKEN", http.StatusBadRequest},
		{NewUnauthorized("no token"), "UNAUTHORIZED", http.StatusUnauthorized},
		{NewMissingSigningSecret("access"), "MISSING_SIGNING_SECRET", http.StatusInternalServerError},
		{NewInternalError(nil), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		mapped := ToDomainError(tt.err)
		assert.Equal(t, tt.code, mapped.Code)
		assert.Equal(t, tt.status, mapped.HTTPStatus)
	}
}
