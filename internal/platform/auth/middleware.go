package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/httpx"
)

// TokenVerifier turns a raw session token into an Identity.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// TokenSource extracts a raw token from a request.
type TokenSource func(r *http.Request) (string, bool)

// Authenticator wires session verification into chi middleware.
type Authenticator struct {
	verifier TokenVerifier
	source   TokenSource
}

// NewAuthenticator builds an Authenticator. A nil source reads only the bearer header.
func NewAuthenticator(verifier TokenVerifier, source TokenSource) *Authenticator {
	if source == nil {
		source = func(r *http.Request) (string, bool) {
			return extractBearerToken(r.Header.Get("Authorization"))
		}
	}
	return &Authenticator{verifier: verifier, source: source}
}

// NewSessionAuthenticator builds an Authenticator reading bearer tokens or the session cookie.
func NewSessionAuthenticator(sessions *Sessions) *Authenticator {
	return NewAuthenticator(sessions, sessions.TokenFromRequest)
}

// Optional attaches the identity when a valid token is present and otherwise
// lets the request through anonymously.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, err := a.identify(r); err == nil {
			r = r.WithContext(WithIdentity(r.Context(), identity))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession rejects requests without a valid session (401) or, when
// roles are given, without one of them (403).
func (a *Authenticator) RequireSession(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := a.identify(r)
			if err != nil {
				respondAuthError(r.Context(), w, err)
				return
			}
			if len(roles) > 0 && !identity.HasAnyRole(roles...) {
				httpx.WriteError(r.Context(), w, httpx.NewError("insufficient_role", "identity does not have required role", http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

var errNoToken = errors.New("auth: no token")

func (a *Authenticator) identify(r *http.Request) (*Identity, error) {
	if identity, ok := IdentityFromContext(r.Context()); ok {
		return identity, nil
	}
	if a == nil || a.verifier == nil {
		return nil, errNoToken
	}
	token, ok := a.source(r)
	if !ok {
		return nil, errNoToken
	}
	return a.verifier.Verify(token)
}

func respondAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNoToken):
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
	case errors.Is(err, ErrTokenExpired):
		httpx.WriteError(ctx, w, httpx.NewError("token_expired", "session expired", http.StatusUnauthorized))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "session token invalid", http.StatusUnauthorized))
	}
}
