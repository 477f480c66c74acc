package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/session"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so no other package can
// read or shadow the principal stored in a request context.
type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller as derived from the session.
type Principal struct {
	UserID xid.ID
	Email  string
	Roles  []string
}

// HasAnyRole reports whether the principal holds at least one of roles.
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// IsAdmin is shorthand for HasAnyRole(model.RoleAdmin).
func (p *Principal) IsAdmin() bool {
	return p.HasAnyRole(model.RoleAdmin)
}

// Requirement describes what an operation demands of its caller.
// Empty Roles means any authenticated caller; a nil Owner skips the
// ownership stage.
type Requirement struct {
	Roles []string
	Owner *xid.ID
	Kind  string // resource kind named in the ownership error
}

// Authorize runs the gate stages in order: authenticated, role, owner.
// The first failing stage decides the error.
func Authorize(p *Principal, req Requirement) error {
	if p == nil {
		return apperror.Unauthenticated()
	}
	if len(req.Roles) > 0 && !p.HasAnyRole(req.Roles...) {
		return apperror.MissingRole()
	}
	if req.Owner != nil && *req.Owner != p.UserID {
		return apperror.NotOwner(req.Kind)
	}
	return nil
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the caller placed there by RequireAuth.
// Returns (nil, false) on routes that did not pass through the gate.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// ErrorWriter renders an error as an HTTP response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Gate turns sessions into principals and enforces requirements on routes.
type Gate struct {
	sessions *session.Manager
	writeErr ErrorWriter
	logger   *slog.Logger
}

// NewGate creates a Gate. writeErr renders rejections in the API's error shape.
func NewGate(sessions *session.Manager, writeErr ErrorWriter, logger *slog.Logger) *Gate {
	return &Gate{sessions: sessions, writeErr: writeErr, logger: logger}
}

// RequireAuth admits requests whose session is logged in.
//
// Every admitted request re-saves its session, which renews the expiry
// (sliding expiration). The derived Principal is stored in the context.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := g.sessions.Load(r)
		if err != nil || !payload.IsLoggedIn {
			g.writeErr(w, r, apperror.Unauthenticated())
			return
		}
		id, err := xid.FromString(payload.UserID)
		if err != nil {
			g.logger.Warn("session carries malformed user id", slog.String("user_id", payload.UserID))
			g.writeErr(w, r, apperror.Unauthenticated())
			return
		}

		if err := g.sessions.Save(w, r, *payload); err != nil {
			g.logger.Error("failed to renew session", slog.String("error", err.Error()))
		}

		p := &Principal{UserID: id, Email: payload.UserEmail, Roles: payload.Roles}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireRoles admits principals holding at least one of roles. It must run
// after RequireAuth.
func (g *Gate) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFromContext(r.Context())
			if err := Authorize(p, Requirement{Roles: roles}); err != nil {
				g.writeErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentPrincipal is the handler-side accessor: it fails with
// Unauthenticated when the route is not behind RequireAuth.
func CurrentPrincipal(ctx context.Context) (*Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil, apperror.Unauthenticated()
	}
	return p, nil
}

