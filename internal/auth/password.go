// Package auth holds the credential verifiers and the authorization gate.
//
// WHY BCRYPT?
// bcrypt is a password hashing function designed to be slow. It embeds a
// random salt and the work factor in its output, so a stored hash is a single
// self-describing string:
//
//	$2a$10$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (10 rounds → 2^10 iterations)
//	 version
package auth

import (
	"encoding/base64"
	"fmt"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor used outside tests.
// Ten rounds is the floor accepted in production configuration.
const defaultCost = 10

// maxPasswordBytes is bcrypt's input limit. Longer input is silently
// truncated by the algorithm, so it is rejected up front.
const maxPasswordBytes = 72

// PasswordService hashes and checks local account passwords.
//
// It's a struct (not free functions) so that the cost can be injected:
// tests use cost 4 and run in milliseconds.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService. A cost below the production
// floor is raised to it.
func NewPasswordService(cost int) *PasswordService {
	if cost < defaultCost {
		cost = defaultCost
	}
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest creates a PasswordService with an arbitrary cost.
// Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", maxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Matches reports whether plaintext matches the stored hash.
//
// A malformed hash never matches. The comparison is constant-time inside
// bcrypt, so response time does not leak how close a guess was.
func (p *PasswordService) Matches(hash, plaintext string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Unusable returns a hash of a random secret nobody knows. Accounts created
// through an external identity provider get one so that password login can
// never succeed for them.
func (p *PasswordService) Unusable() (string, error) {
	secret := base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(32))
	return p.Hash(secret)
}
