package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/service"
	"github.com/sakif/agromarket/internal/session"
)

// AuthHandler runs the session lifecycle around AuthService.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister   → create the account, mail the confirmation link
//   - HandleLogin      → check credentials, regenerate the session
//   - HandleGoogle     → verify a Google access token, regenerate the session
//   - HandleAutoLogin  → revive a retained session
//   - HandleCloseApp   → park an auto-login session, or log out
//   - HandleLogout     → destroy the session
//   - HandleConfirm    → consume a confirmation link
//   - HandleResend     → mail a fresh confirmation link
//
// SESSION FIXATION:
// Every successful login regenerates the session, so whatever id the browser
// presented before the login is discarded and never becomes privileged.
type AuthHandler struct {
	auth     *service.AuthService
	sessions *session.Manager
	logger   *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, sessions *session.Manager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, logger: logger}
}

// googleRequest is the body of POST /auth/google.
type googleRequest struct {
	AccessToken string `json:"atoken"`
}

// HandleRegister creates an unverified account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"name": "optional", "email": "...", "password": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	notice, err := h.auth.Register(r.Context(), in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, notice.Message, notice.Warning)
}

// HandleLogin checks e-mail and password and starts a fresh session.
//
// HTTP: POST /auth/login
// RESPONSE: the user record; the password hash never leaves the server.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	user, err := h.auth.Login(r.Context(), in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.startSession(w, r, user)
}

// HandleGoogle signs in (and on first use signs up) with a Google access token.
//
// HTTP: POST /auth/google
// REQUEST BODY: {"atoken": "<access token from the Google client library>"}
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var in googleRequest
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	user, created, err := h.auth.LoginWithGoogle(r.Context(), in.AccessToken)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if created {
		h.logger.Info("account created from Google sign-in", slog.String("userID", user.ID.String()))
	}
	h.startSession(w, r, user)
}

// HandleAutoLogin revives a session that was parked by closeapp.
//
// HTTP: POST /auth/autologin (cookie only)
func (h *AuthHandler) HandleAutoLogin(w http.ResponseWriter, r *http.Request) {
	// A missing session is AutoLogin's "Please log in!" case.
	payload, _ := h.sessions.Load(r)
	user, err := h.auth.AutoLogin(r.Context(), payload)
	if err != nil {
		// A session that cannot be revived must not keep its old login.
		if payload != nil && errors.Is(err, apperror.ErrNotFound) {
			if derr := h.sessions.Destroy(w, r); derr != nil {
				h.logger.Warn("destroying stale session", slog.String("error", derr.Error()))
			}
		}
		WriteError(w, r, err)
		return
	}

	payload.IsLoggedIn = true
	payload.UserEmail = user.Email
	payload.Roles = user.Roles
	if err := h.sessions.Save(w, r, *payload); err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleCloseApp is called when the client app shuts down. An auto-login
// session is kept but logged out; any other session is destroyed.
//
// HTTP: POST /auth/closeapp
func (h *AuthHandler) HandleCloseApp(w http.ResponseWriter, r *http.Request) {
	payload, err := h.sessions.Load(r)
	if err == nil && payload.IsAutoLogin {
		payload.IsLoggedIn = false
		if err := h.sessions.Save(w, r, *payload); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		return
	}
	h.HandleLogout(w, r)
}

// HandleLogout destroys the session and expires the cookie.
//
// HTTP: POST /auth/logout → 204 No Content
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(w, r); err != nil {
		// The cookie is expired either way; a stale row expires on its own.
		h.logger.Warn("failed to destroy session", slog.String("error", err.Error()))
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleConfirm consumes the link from the confirmation e-mail.
//
// HTTP: GET /auth/confirmation/{email}/{token}
func (h *AuthHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	msg, err := h.auth.Confirm(r.Context(), chi.URLParam(r, "email"), chi.URLParam(r, "token"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, msg, "")
}

// HandleResend mails a new confirmation link.
//
// HTTP: GET /auth/resend/{email}
func (h *AuthHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	notice, err := h.auth.Resend(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, notice.Message, notice.Warning)
}

// startSession regenerates the session for user and sends the user back.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User) {
	_, err := h.sessions.Regenerate(w, r, session.Payload{
		UserID:      user.ID.String(),
		UserEmail:   user.Email,
		Roles:       user.Roles,
		IsLoggedIn:  true,
		IsAutoLogin: user.AutoLogin,
	})
	if err != nil {
		h.logger.Error("failed to start session", slog.String("userID", user.ID.String()), slog.String("error", err.Error()))
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
