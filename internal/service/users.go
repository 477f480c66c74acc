package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/auth"
	"github.com/sakif/agromarket/internal/integrity"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/repository"
	"github.com/sakif/agromarket/internal/validation"
)

// CreateUserInput is the admin-side account creation body.
type CreateUserInput struct {
	Name          string   `json:"name" validate:"required,max=100"`
	Email         string   `json:"email" validate:"required,email"`
	Password      string   `json:"password" validate:"required,max=72"`
	EmailVerified bool     `json:"email_verified"`
	AutoLogin     *bool    `json:"auto_login"`
	Roles         []string `json:"roles" validate:"omitempty,dive,oneof=user sp admin"`
	MobileNumber  string   `json:"mobile_number" validate:"omitempty,max=30"`
	Picture       string   `json:"picture"`
}

// userPatch holds the decodable fields of a user update.
type userPatch struct {
	Name          *string   `json:"name" validate:"omitempty,min=1,max=100"`
	Email         *string   `json:"email" validate:"omitempty,email"`
	Password      *string   `json:"password" validate:"omitempty,max=72"`
	EmailVerified *bool     `json:"email_verified"`
	AutoLogin     *bool     `json:"auto_login"`
	Roles         *[]string `json:"roles" validate:"omitempty,dive,oneof=user sp admin"`
	MobileNumber  *string   `json:"mobile_number" validate:"omitempty,max=30"`
	Picture       *string   `json:"picture"`
}

// profileLocked are the fields a user may not change on their own account.
var profileLocked = []string{"email", "roles", "email_verified"}

// UserService manages accounts on behalf of admins and of the users themselves.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	refs      *integrity.Enforcer
	validate  *validation.Validator
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	refs *integrity.Enforcer,
	validate *validation.Validator,
	logger *slog.Logger,
) *UserService {
	return &UserService{users: users, passwords: passwords, refs: refs, validate: validate, logger: logger}
}

func (s *UserService) Get(ctx context.Context, id xid.ID) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/users: listing: %w", err)
	}
	return users, nil
}

// Search returns the users whose name or e-mail matches keyword as a
// case-insensitive regular expression.
func (s *UserService) Search(ctx context.Context, keyword string) ([]model.User, error) {
	re, err := compileFilter("keyword", keyword)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/users: listing: %w", err)
	}
	matched := make([]model.User, 0, len(users))
	for _, u := range users {
		if re.MatchString(u.Name) || re.MatchString(u.Email) {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

// Create adds an account with the given roles. The password is hashed here.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Name:          in.Name,
		Email:         in.Email,
		PasswordHash:  hash,
		EmailVerified: in.EmailVerified,
		AutoLogin:     in.AutoLogin == nil || *in.AutoLogin,
		Roles:         in.Roles,
		MobileNumber:  in.MobileNumber,
		Picture:       in.Picture,
	}
	if user.Picture == "" {
		user.Picture = model.Monogram(user.Name)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/users: creating %s: %w", in.Email, err)
	}
	s.logger.Info("user created", slog.String("userID", user.ID.String()))
	return user, nil
}

// Update applies an admin patch: any field may change, a new password is
// re-hashed.
func (s *UserService) Update(ctx context.Context, id xid.ID, patch integrity.Patch) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(user, patch); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/users: updating %s: %w", id, err)
	}
	return user, nil
}

// UpdateProfile is the self-service patch. Only the account owner may call it,
// and e-mail, roles and verification state are dropped from the patch first.
func (s *UserService) UpdateProfile(ctx context.Context, caller *auth.Principal, id xid.ID, patch integrity.Patch) (*model.User, error) {
	if err := auth.Authorize(caller, auth.Requirement{Owner: &id, Kind: "user"}); err != nil {
		return nil, err
	}
	patch = patch.Without(profileLocked...)
	if len(patch) == 0 {
		return nil, apperror.NoValidFields()
	}
	return s.Update(ctx, id, patch)
}

// Delete removes an account nothing refers to any more.
func (s *UserService) Delete(ctx context.Context, id xid.ID) error {
	if err := s.refs.CheckDelete(ctx, model.Users, id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.String("userID", id.String()))
	return nil
}

// EnsureAdmin makes sure an administrator account exists for email. A missing
// account is created verified; an existing one gains every role.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	roles := []string{model.RoleUser, model.RoleSP, model.RoleAdmin}

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if user.HasRole(model.RoleAdmin) {
			return nil
		}
		user.Roles = roles
		user.EmailVerified = true
		if err := s.users.Update(ctx, user); err != nil {
			return fmt.Errorf("service/users: promoting %s: %w", email, err)
		}
		s.logger.Info("admin role granted", slog.String("email", email))
		return nil
	case !errors.Is(err, apperror.ErrNotFound):
		return fmt.Errorf("service/users: looking up %s: %w", email, err)
	}

	if password == "" {
		return fmt.Errorf("service/users: admin %s does not exist and no password is configured", email)
	}
	_, err = s.Create(ctx, CreateUserInput{
		Name:          model.NameFromEmail(email),
		Email:         email,
		Password:      password,
		EmailVerified: true,
		Roles:         roles,
	})
	return err
}

func (s *UserService) apply(u *model.User, patch integrity.Patch) error {
	var p userPatch
	if err := patch.Decode(&p); err != nil {
		return apperror.ValidationFailed("body", fmt.Sprintf("Invalid user data: %s", err))
	}
	if err := s.validate.Struct(p); err != nil {
		return err
	}

	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = normalizeEmail(*p.Email)
	}
	if p.Password != nil && *p.Password != "" {
		hash, err := s.passwords.Hash(*p.Password)
		if err != nil {
			return apperror.ValidationFailed("password", err.Error())
		}
		u.PasswordHash = hash
	}
	if p.EmailVerified != nil {
		u.EmailVerified = *p.EmailVerified
	}
	if p.AutoLogin != nil {
		u.AutoLogin = *p.AutoLogin
	}
	if p.Roles != nil {
		u.Roles = *p.Roles
	}
	if p.MobileNumber != nil {
		u.MobileNumber = *p.MobileNumber
	}
	if p.Picture != nil {
		u.Picture = *p.Picture
	}
	return nil
}
