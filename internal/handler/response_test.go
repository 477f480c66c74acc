package handler_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/handler"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthenticated", apperror.Unauthenticated(), http.StatusUnauthorized},
		{"wrong credentials", apperror.WrongCredentials(), http.StatusUnauthorized},
		{"unverified e-mail", apperror.EmailNotVerified(), http.StatusUnauthorized},
		{"unknown verification", apperror.VerificationNotFound(), http.StatusUnauthorized},
		{"missing role", apperror.MissingRole(), http.StatusForbidden},
		{"not owner", apperror.NotOwner("offer"), http.StatusForbidden},
		{"immutable", apperror.ImmutableField("unit_price", "offer"), http.StatusForbidden},
		{"not found", apperror.NotFound("Offer", "x"), http.StatusNotFound},
		{"not logged in", apperror.NotLoggedIn(), http.StatusNotFound},
		{"invalid id", apperror.InvalidID("nope"), http.StatusNotFound},
		{"reference conflict", apperror.ReferenceConflict("categories"), http.StatusConflict},
		{"dangling reference", apperror.DanglingReference("category_id", "categories"), http.StatusConflict},
		{"rate limited", apperror.RateLimited("15m0s"), http.StatusTooManyRequests},
		{"duplicate", apperror.EmailExists("a@b.c"), http.StatusBadRequest},
		{"validation", apperror.NoValidFields(), http.StatusBadRequest},
		{"wrapped", fmt.Errorf("updating offer: %w", apperror.ImmutableField("unit", "offer")), http.StatusForbidden},
		{"unclassified", errors.New("disk on fire"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, handler.StatusFor(tt.err))
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("app error uses its message", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/categories/x", nil)

		handler.WriteError(rr, req, fmt.Errorf("deleting: %w", apperror.ReferenceConflict("categories")))

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		var body handler.MessageResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, http.StatusConflict, body.Status)
		assert.Equal(t, "Can't DELETE from categories collection, because has reference in other collection(s).", body.Message)
	})

	t.Run("unclassified error keeps its text", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/offers", nil)

		handler.WriteError(rr, req, errors.New("database is locked"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.True(t, strings.Contains(rr.Body.String(), "database is locked"))
		assert.NotContains(t, rr.Body.String(), "warning")
	})
}
