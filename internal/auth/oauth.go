package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/sakif/agromarket/internal/apperror"
)

// DefaultGoogleUserinfoURL is Google's OpenID userinfo endpoint.
const DefaultGoogleUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// ExternalIdentity is the portion of the provider's userinfo response we use.
// The provider returns a larger object; only these fields are decoded.
type ExternalIdentity struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// IdentityVerifier resolves a client-held access token into an identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, accessToken string) (*ExternalIdentity, error)
}

// GoogleVerifier checks access tokens that the browser obtained from Google.
//
// TOKEN FLOW:
// The SPA runs the Google sign-in popup itself and posts the resulting access
// token to /auth/google. The server never sees an authorization code; it only
// asks the userinfo endpoint "who does this token belong to?". A token Google
// rejects yields no identity.
type GoogleVerifier struct {
	userinfoURL string
	logger      *slog.Logger
}

// NewGoogleVerifier creates a verifier against the given userinfo endpoint.
// An empty URL selects Google's production endpoint.
func NewGoogleVerifier(userinfoURL string, logger *slog.Logger) *GoogleVerifier {
	if userinfoURL == "" {
		userinfoURL = DefaultGoogleUserinfoURL
	}
	return &GoogleVerifier{userinfoURL: userinfoURL, logger: logger}
}

// Verify calls the userinfo endpoint with the token and maps the response.
//
// Every failure, whether transport, non-200 status, malformed body or missing
// address, is reported to the caller as wrong credentials; the cause is logged.
func (g *GoogleVerifier) Verify(ctx context.Context, accessToken string) (*ExternalIdentity, error) {
	id, err := g.fetch(ctx, strings.TrimSpace(accessToken))
	if err != nil {
		g.logger.Warn("google token rejected", slog.String("error", err.Error()))
		return nil, apperror.WrongCredentials()
	}
	return id, nil
}

func (g *GoogleVerifier) fetch(ctx context.Context, accessToken string) (*ExternalIdentity, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("auth: empty access token")
	}

	// oauth2.NewClient returns an *http.Client that adds
	// "Authorization: Bearer <token>" to every request.
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	client := oauth2.NewClient(ctx, src)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: userinfo returned status %d", resp.StatusCode)
	}

	var id ExternalIdentity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("auth: decoding userinfo response: %w", err)
	}
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	if id.Email == "" {
		return nil, fmt.Errorf("auth: userinfo response has no email")
	}
	return &id, nil
}
