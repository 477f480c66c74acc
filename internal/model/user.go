// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import (
	"strings"
	"time"

	"github.com/rs/xid"
)

// Role tags stored on a user. A user may hold several.
const (
	RoleUser  = "user"
	RoleSP    = "sp" // service provider: may publish offers
	RoleAdmin = "admin"
)

// User represents a registered account.
//
// Accounts are created either by e-mail registration (unverified until the
// confirmation link is opened) or by the first Google sign-in (verified at
// creation). Name and Email are both unique across the users collection.
//
// PasswordHash never leaves the server: the `json:"-"` tag drops it from every
// response, which is how "password stripped" login responses are produced.
type User struct {
	ID            xid.ID    `json:"_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"email_verified"`
	AutoLogin     bool      `json:"auto_login"`
	Roles         []string  `json:"roles"`
	MobileNumber  string    `json:"mobile_number,omitempty"`
	Picture       string    `json:"picture,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasRole reports whether the user holds the given role tag.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// NameFromEmail returns the local part of an e-mail address, or "Anonymous"
// when there is none. Registration uses it as the default display name.
func NameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "Anonymous"
	}
	return local
}

// Monogram builds the two-letter placeholder picture for a new account:
// the initials of dot-separated name parts ("kiss.janos" → "KJ"), otherwise
// the first two letters upper-cased.
func Monogram(name string) string {
	if strings.Contains(name, ".") {
		var b strings.Builder
		for _, part := range strings.Split(name, ".") {
			if part == "" {
				continue
			}
			r := []rune(part)
			b.WriteRune(r[0])
		}
		return strings.ToUpper(b.String())
	}
	r := []rune(name)
	if len(r) > 2 {
		r = r[:2]
	}
	return strings.ToUpper(string(r))
}
