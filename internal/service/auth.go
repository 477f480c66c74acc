package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/auth"
	"github.com/sakif/agromarket/internal/mail"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/repository"
	"github.com/sakif/agromarket/internal/session"
	"github.com/sakif/agromarket/internal/validation"
)

// RegisterInput is the body of POST /auth/register.
type RegisterInput struct {
	Name     string `json:"name" validate:"omitempty,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Notice is an informational auth response. Warning reports a best-effort
// side action (the verification mail) that failed while the operation itself
// succeeded.
type Notice struct {
	Message string
	Warning string
}

// AuthService handles registration, the login variants and e-mail confirmation.
//
//	AuthHandler (HTTP, session) → AuthService (rules) → UserRepository (DB)
//
// It does NOT touch cookies or sessions: the handler regenerates, saves or
// destroys the session after a successful call.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository → read/write accounts
//   - passwords  *auth.PasswordService     → bcrypt
//   - identity   auth.IdentityVerifier     → Google access-token check
//   - tokens     *auth.VerificationTokens  → confirmation links
//   - mailer     mail.Sender               → confirmation e-mails
type AuthService struct {
	users      repository.UserRepository
	passwords  *auth.PasswordService
	identity   auth.IdentityVerifier
	tokens     *auth.VerificationTokens
	mailer     mail.Sender
	validate   *validation.Validator
	events     EventRecorder
	backendAPI string
	logger     *slog.Logger
}

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Users      repository.UserRepository
	Passwords  *auth.PasswordService
	Identity   auth.IdentityVerifier
	Tokens     *auth.VerificationTokens
	Mailer     mail.Sender
	Validator  *validation.Validator
	Events     EventRecorder // optional
	BackendAPI string        // base URL of confirmation links
}

// NewAuthService creates an AuthService. Call this in server.go when wiring
// the dependency graph.
func NewAuthService(d AuthDeps, logger *slog.Logger) *AuthService {
	events := d.Events
	if events == nil {
		events = noopRecorder{}
	}
	return &AuthService{
		users:      d.Users,
		passwords:  d.Passwords,
		identity:   d.Identity,
		tokens:     d.Tokens,
		mailer:     d.Mailer,
		validate:   d.Validator,
		events:     events,
		backendAPI: strings.TrimRight(d.BackendAPI, "/"),
		logger:     logger,
	}
}

// Register creates an unverified account and mails its confirmation link.
//
// The name defaults to the local part of the e-mail address and the picture
// to a two-letter monogram of the name. A failed mail does not undo the
// registration; it comes back as Notice.Warning.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Notice, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		s.events.AuthEvent("register", false)
		return nil, apperror.EmailExists(in.Email)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up %s: %w", in.Email, err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = model.NameFromEmail(in.Email)
	}
	user := &model.User{
		Name:         name,
		Email:        in.Email,
		PasswordHash: hash,
		AutoLogin:    true,
		Roles:        []string{model.RoleUser},
		Picture:      model.Monogram(name),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user %s: %w", in.Email, err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID.String()), slog.String("email", user.Email))
	s.events.AuthEvent("register", true)

	return s.sendConfirmation(ctx, user), nil
}

// Login checks e-mail and password. Unknown address and wrong password
// produce the same error; an unverified account is refused with its own
// message.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*model.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.events.AuthEvent("login", false)
			return nil, apperror.WrongCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", in.Email, err)
	}
	if !s.passwords.Matches(user.PasswordHash, in.Password) {
		s.events.AuthEvent("login", false)
		return nil, apperror.WrongCredentials()
	}
	if !user.EmailVerified {
		s.events.AuthEvent("login", false)
		return nil, apperror.EmailNotVerified()
	}

	s.events.AuthEvent("login", true)
	return user, nil
}

// LoginWithGoogle verifies a Google access token and returns the matching
// account, creating it on first sign-in. created reports the latter.
//
// New accounts are verified from the start, keep auto-login on and get a
// random password nobody knows.
func (s *AuthService) LoginWithGoogle(ctx context.Context, accessToken string) (user *model.User, created bool, err error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, false, apperror.ValidationFailed("atoken", "atoken is required")
	}
	identity, err := s.identity.Verify(ctx, accessToken)
	if err != nil {
		s.events.AuthEvent("google", false)
		return nil, false, err
	}

	user, err = s.users.GetByEmail(ctx, identity.Email)
	if err == nil {
		s.events.AuthEvent("google", true)
		return user, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("service/auth: looking up %s: %w", identity.Email, err)
	}

	hash, err := s.passwords.Unusable()
	if err != nil {
		return nil, false, fmt.Errorf("service/auth: generating password: %w", err)
	}
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = model.NameFromEmail(identity.Email)
	}
	picture := identity.Picture
	if picture == "" {
		picture = model.Monogram(name)
	}
	user = &model.User{
		Name:          name,
		Email:         identity.Email,
		PasswordHash:  hash,
		EmailVerified: true,
		AutoLogin:     true,
		Roles:         []string{model.RoleUser},
		Picture:       picture,
	}

	err = s.users.Create(ctx, user)
	if errors.Is(err, apperror.ErrDuplicate) {
		// Display names are unique too; the address never collides here.
		user.Name = identity.Email
		err = s.users.Create(ctx, user)
	}
	if err != nil {
		return nil, false, fmt.Errorf("service/auth: creating user %s: %w", identity.Email, err)
	}

	s.logger.Info("user registered via Google", slog.String("userID", user.ID.String()), slog.String("email", user.Email))
	s.events.AuthEvent("google", true)
	return user, true, nil
}

// AutoLogin revives a retained session: it must allow auto-login and its
// user must still exist. Calling it again with the same session returns the
// same user.
func (s *AuthService) AutoLogin(ctx context.Context, p *session.Payload) (*model.User, error) {
	if p == nil || !p.IsAutoLogin {
		s.events.AuthEvent("autologin", false)
		return nil, apperror.NotLoggedIn()
	}
	id, err := xid.FromString(p.UserID)
	if err != nil {
		s.events.AuthEvent("autologin", false)
		return nil, apperror.NotLoggedIn()
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.events.AuthEvent("autologin", false)
			return nil, apperror.NotLoggedIn()
		}
		return nil, fmt.Errorf("service/auth: loading user %s: %w", id, err)
	}
	s.events.AuthEvent("autologin", true)
	return user, nil
}

// Confirm consumes a confirmation link. Every mismatch (bad or expired
// token, unknown user, different address) is reported the same way.
func (s *AuthService) Confirm(ctx context.Context, email, token string) (string, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		s.events.AuthEvent("confirm", false)
		return "", apperror.VerificationNotFound()
	}
	id, err := xid.FromString(claims.UserID)
	if err != nil {
		return "", apperror.VerificationNotFound()
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.VerificationNotFound()
		}
		return "", fmt.Errorf("service/auth: loading user %s: %w", id, err)
	}
	email = normalizeEmail(email)
	if user.Email != email || claims.Email != user.Email {
		s.events.AuthEvent("confirm", false)
		return "", apperror.VerificationNotFound()
	}

	if user.EmailVerified {
		return "User has been already verified. Please Login!", nil
	}
	user.EmailVerified = true
	if err := s.users.Update(ctx, user); err != nil {
		return "", fmt.Errorf("service/auth: verifying user %s: %w", id, err)
	}
	s.logger.Info("user verified", slog.String("userID", user.ID.String()))
	s.events.AuthEvent("confirm", true)
	return "Your account has been successfully verified! Please log in.", nil
}

// Resend mails a fresh confirmation link to an unverified account.
func (s *AuthService) Resend(ctx context.Context, email string) (*Notice, error) {
	email = normalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("email",
				"We were unable to find a user with that email. Make sure your Email is correct!")
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}
	if user.EmailVerified {
		return &Notice{Message: "This account has been already verified. Please log in."}, nil
	}
	return s.sendConfirmation(ctx, user), nil
}

// sendConfirmation signs a token, mails the link and words the outcome.
func (s *AuthService) sendConfirmation(ctx context.Context, user *model.User) *Notice {
	notice := &Notice{
		Message: fmt.Sprintf("A verification e-mail has been sent to %s, It will be expire after one day.", user.Email),
	}

	token, err := s.tokens.Sign(user.ID.String(), user.Email)
	if err != nil {
		s.logger.Error("failed to sign verification token", slog.String("userID", user.ID.String()), slog.String("error", err.Error()))
		notice.Warning = "The verification e-mail could not be prepared, please click on resend!"
		return notice
	}

	msg := mail.ConfirmationMessage(user.Email, user.Name, s.confirmationLink(user.Email, token))
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("verification e-mail not sent", slog.String("email", user.Email), slog.String("error", err.Error()))
		notice.Warning = fmt.Sprintf("Failed to send the verification e-mail: %s", err)
	}
	return notice
}

func (s *AuthService) confirmationLink(email, token string) string {
	return fmt.Sprintf("%s/auth/confirmation/%s/%s", s.backendAPI, url.PathEscape(email), url.PathEscape(token))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
