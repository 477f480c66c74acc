package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// verificationTTL is how long an e-mail confirmation link stays usable.
const verificationTTL = 24 * time.Hour

const verificationIssuer = "agromarket"

// VerificationTokens signs and checks the tokens embedded in e-mail
// confirmation links.
//
// A token is an HS256 JWT whose subject is the user id and which also carries
// the address it was sent to. Confirmation succeeds only when both still match
// the stored account, so a token minted for an old address is useless after
// the address changes.
type VerificationTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewVerificationTokens creates a signer. The secret should be at least 32
// bytes of random data in production.
func NewVerificationTokens(secret string) (*VerificationTokens, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: verification secret must be at least 16 characters")
	}
	return &VerificationTokens{secret: []byte(secret), ttl: verificationTTL}, nil
}

type verificationClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// VerifiedClaims is what a valid confirmation token vouches for.
type VerifiedClaims struct {
	UserID string
	Email  string
}

// Sign creates a confirmation token for the given account.
func (v *VerificationTokens) Sign(userID, email string) (string, error) {
	return v.signWithTTL(userID, email, v.ttl)
}

func (v *VerificationTokens) signWithTTL(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := verificationClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    verificationIssuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing verification token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature, issuer and expiry of a confirmation token.
//
// Only HS256 is accepted; passing jwt.WithValidMethods blocks the "none"
// algorithm confusion attack.
func (v *VerificationTokens) Parse(tokenStr string) (VerifiedClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&verificationClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(verificationIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return VerifiedClaims{}, fmt.Errorf("auth: verification token expired")
		}
		return VerifiedClaims{}, fmt.Errorf("auth: invalid verification token: %w", err)
	}

	c, ok := token.Claims.(*verificationClaims)
	if !ok || !token.Valid || c.Subject == "" || c.Email == "" {
		return VerifiedClaims{}, fmt.Errorf("auth: verification token is missing claims")
	}
	return VerifiedClaims{UserID: c.Subject, Email: c.Email}, nil
}
