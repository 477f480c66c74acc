package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is the users collection.
type UserStore struct {
	db *DB
}

const userColumns = `id, name, email, password_hash, email_verified, auto_login, roles,
	mobile_number, picture, created_at, updated_at`

// Create inserts a user. A missing ID is generated; timestamps are set here.
// Duplicate name or email yields apperror.ErrDuplicate.
func (s *UserStore) Create(ctx context.Context, u *model.User) error {
	if u.ID.IsNil() {
		u.ID = model.NewID()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if len(u.Roles) == 0 {
		u.Roles = []string{model.RoleUser}
	}

	roles, err := json.Marshal(u.Roles)
	if err != nil {
		return fmt.Errorf("sqlite: encoding roles: %w", err)
	}

	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.EmailVerified, u.AutoLogin, string(roles),
		u.MobileNumber, u.Picture, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if dup := uniqueViolation(err, map[string]string{"name": u.Name, "email": u.Email}); dup != err {
			return dup
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", u.Email, err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id xid.ID) (*model.User, error) {
	row := s.db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("User", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetByEmail looks a user up by exact address. Callers normalise case.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: fmt.Sprintf("User with email %s not found", email),
			Field:   "email",
		}
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// Update rewrites every mutable column and bumps updated_at.
func (s *UserStore) Update(ctx context.Context, u *model.User) error {
	u.UpdatedAt = time.Now().UTC()
	roles, err := json.Marshal(u.Roles)
	if err != nil {
		return fmt.Errorf("sqlite: encoding roles: %w", err)
	}

	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, password_hash = ?, email_verified = ?, auto_login = ?,
		 roles = ?, mobile_number = ?, picture = ?, updated_at = ?
		 WHERE id = ?`,
		u.Name, u.Email, u.PasswordHash, u.EmailVerified, u.AutoLogin,
		string(roles), u.MobileNumber, u.Picture, u.UpdatedAt, u.ID,
	)
	if err != nil {
		if dup := uniqueViolation(err, map[string]string{"name": u.Name, "email": u.Email}); dup != err {
			return dup
		}
		return fmt.Errorf("sqlite: updating user %s: %w", u.ID, err)
	}
	return requireAffected(res, "User", u.ID)
}

func (s *UserStore) Delete(ctx context.Context, id xid.ID) error {
	return s.db.deleteByID(ctx, "users", "User", id)
}

func (s *UserStore) Exists(ctx context.Context, id xid.ID) (bool, error) {
	return s.db.exists(ctx, "users", "id", id)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(sc scanner) (*model.User, error) {
	var u model.User
	var roles string
	if err := sc.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.AutoLogin, &roles,
		&u.MobileNumber, &u.Picture, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(roles), &u.Roles); err != nil {
		return nil, fmt.Errorf("decoding roles of %s: %w", u.ID, err)
	}
	return &u, nil
}
