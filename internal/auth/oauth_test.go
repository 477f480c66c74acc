package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/agromarket/internal/apperror"
)

func newUserinfoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good-token":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"email":"Kiss.Janos@Gmail.com","name":"Kiss János","picture":"https://pic/1"}`)
		case "Bearer no-email":
			io.WriteString(w, `{"name":"Nobody"}`)
		case "Bearer broken":
			io.WriteString(w, `{not json`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleVerifier_Verify(t *testing.T) {
	srv := newUserinfoServer(t)
	g := NewGoogleVerifier(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))

	id, err := g.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "kiss.janos@gmail.com", id.Email)
	assert.Equal(t, "Kiss János", id.Name)
	assert.Equal(t, "https://pic/1", id.Picture)
}

func TestGoogleVerifier_FailuresAreWrongCredentials(t *testing.T) {
	srv := newUserinfoServer(t)
	g := NewGoogleVerifier(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, token := range []string{"", "revoked", "no-email", "broken"} {
		t.Run(token, func(t *testing.T) {
			_, err := g.Verify(context.Background(), token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrWrongCredentials))
		})
	}
}

func TestGoogleVerifier_Unreachable(t *testing.T) {
	srv := newUserinfoServer(t)
	url := srv.URL
	srv.Close()

	g := NewGoogleVerifier(url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := g.Verify(context.Background(), "good-token")
	assert.ErrorIs(t, err, apperror.ErrWrongCredentials)
}
