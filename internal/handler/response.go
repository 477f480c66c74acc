package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"status": 404, "message": "Offer with id cn5b8p2kg0s4n0k8f4s0 not found"}
//
// Informational responses (registration, confirmation) reuse it with 200 and
// may add a "warning" when a best-effort side action failed.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/integrity"
	"github.com/sakif/agromarket/internal/model"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// totalCountHeader carries collection sizes; CORS exposes it to browsers.
const totalCountHeader = "x-total-count"

// MessageResponse is the body of every error and informational reply.
type MessageResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Warning string `json:"warning,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body is written; once Encode
// writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all that is left is to log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeMessage(w http.ResponseWriter, status int, message, warning string) {
	writeJSON(w, status, MessageResponse{Status: status, Message: message, Warning: warning})
}

// setTotal announces a collection size in the x-total-count header.
func setTotal(w http.ResponseWriter, n int) {
	w.Header().Set(totalCountHeader, strconv.Itoa(n))
}

// StatusFor maps a domain error to its HTTP status.
//
// errors.Is walks the whole chain, so a service error wrapped with
// fmt.Errorf("...: %w", appErr) still maps by its sentinel.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrUnauthenticated), errors.Is(err, apperror.ErrWrongCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden), errors.Is(err, apperror.ErrNotOwner), errors.Is(err, apperror.ErrImmutableField):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound), errors.Is(err, apperror.ErrInvalidID):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrReferenceConflict), errors.Is(err, apperror.ErrDanglingReference):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		// Validation, duplicates and anything unclassified.
		return http.StatusBadRequest
	}
}

// WriteError renders err as {status, message}. Its signature matches
// auth.ErrorWriter so the gate and the rate limiter answer in the same shape.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)

	message := err.Error()
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	} else {
		// Unclassified: storage or programming errors. The client still gets
		// the text, the log gets the request it belonged to.
		slog.Error("unclassified error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeMessage(w, status, message, "")
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "Request body is empty")
		}
		return apperror.ValidationFailed("body", fmt.Sprintf("Invalid JSON body: %s", err))
	}
	return nil
}

// decodePatch reads a PATCH body as a field → raw value document.
func decodePatch(w http.ResponseWriter, r *http.Request) (integrity.Patch, error) {
	var p integrity.Patch
	if err := decodeJSON(w, r, &p); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NoValidFields()
	}
	return p, nil
}

// pathID parses a route parameter as an EntityId.
func pathID(r *http.Request, name string) (xid.ID, error) {
	return model.ParseID(chi.URLParam(r, name))
}
