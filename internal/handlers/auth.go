package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/auth"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/httpx"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/observability"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/validation"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

const maxAuthBodySize = 8 * 1024

// SocialLogin runs the OAuth redirect flow for a named provider.
type SocialLogin interface {
	Providers() []string
	Begin(w http.ResponseWriter, r *http.Request, provider string) (string, error)
	Complete(w http.ResponseWriter, r *http.Request, provider string) (auth.SocialUser, error)
}

// FirebaseTokenVerifier verifies Firebase ID tokens.
type FirebaseTokenVerifier interface {
	VerifyFirebaseToken(ctx context.Context, idToken string) (auth.FirebaseProfile, error)
}

// AuthHandlersDeps bundles collaborators for the sign-in endpoints.
type AuthHandlersDeps struct {
	Users    services.UserService
	Sessions *auth.Sessions
	Authn    *auth.Authenticator
	Social   SocialLogin
	Firebase FirebaseTokenVerifier
	// LoginLimiter throttles credential logins, typically per client IP.
	LoginLimiter func(http.Handler) http.Handler
	// AfterLoginURL is where social login callbacks send the browser.
	AfterLoginURL string
}

// AuthHandlers exposes registration, sign-in and session endpoints.
type AuthHandlers struct {
	users         services.UserService
	sessions      *auth.Sessions
	authn         *auth.Authenticator
	social        SocialLogin
	firebase      FirebaseTokenVerifier
	loginLimiter  func(http.Handler) http.Handler
	afterLoginURL string
}

// NewAuthHandlers constructs auth handlers.
func NewAuthHandlers(deps AuthHandlersDeps) *AuthHandlers {
	after := strings.TrimSpace(deps.AfterLoginURL)
	if after == "" {
		after = "/"
	}
	return &AuthHandlers{
		users:         deps.Users,
		sessions:      deps.Sessions,
		authn:         deps.Authn,
		social:        deps.Social,
		firebase:      deps.Firebase,
		loginLimiter:  deps.LoginLimiter,
		afterLoginURL: after,
	}
}

// Routes registers the /auth endpoints.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/register", h.register)
	login := http.Handler(http.HandlerFunc(h.login))
	if h.loginLimiter != nil {
		login = h.loginLimiter(login)
	}
	r.Method(http.MethodPost, "/login", login)
	r.Post("/firebase", h.firebaseLogin)
	r.Post("/logout", h.logout)
	if h.authn != nil {
		r.With(h.authn.Optional).Get("/session", h.session)
	} else {
		r.Get("/session", h.session)
	}
	r.Get("/providers", h.providers)
	r.Get("/{provider}", h.beginSocial)
	r.Get("/{provider}/callback", h.completeSocial)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type firebaseLoginRequest struct {
	IDToken string `json:"idToken"`
}

type sessionResponse struct {
	User      userPayload `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expiresAt"`
}

func (h *AuthHandlers) ready(ctx context.Context, w http.ResponseWriter) bool {
	if h.users == nil || h.sessions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_unavailable", "authentication unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	var req registerRequest
	if err := httpx.DecodeJSON(r, maxAuthBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	user, err := h.users.Register(ctx, services.RegisterCommand{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	h.startSession(w, r, user, http.StatusCreated)
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	var req loginRequest
	if err := httpx.DecodeJSON(r, maxAuthBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	user, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	h.startSession(w, r, user, http.StatusOK)
}

func (h *AuthHandlers) firebaseLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if h.firebase == nil {
		httpx.WriteError(ctx, w, httpx.NewError("provider_not_configured", "firebase sign-in is not configured", http.StatusNotFound))
		return
	}
	var req firebaseLoginRequest
	if err := httpx.DecodeJSON(r, maxAuthBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	if strings.TrimSpace(req.IDToken) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "idToken is required", http.StatusBadRequest))
		return
	}
	profile, err := h.firebase.VerifyFirebaseToken(ctx, strings.TrimSpace(req.IDToken))
	if err != nil {
		code := "invalid_token"
		if errors.Is(err, auth.ErrTokenExpired) {
			code = "token_expired"
		}
		httpx.WriteError(ctx, w, httpx.NewError(code, "firebase token rejected", http.StatusUnauthorized))
		return
	}
	if !profile.EmailVerified {
		httpx.WriteError(ctx, w, httpx.NewError("email_unverified", "firebase account email is not verified", http.StatusForbidden))
		return
	}
	user, err := h.users.SignInExternal(ctx, services.ExternalProfile{
		Provider:  domain.ProviderFirebase,
		Email:     profile.Email,
		Name:      profile.Name,
		AvatarURL: profile.Picture,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	h.startSession(w, r, user, http.StatusOK)
}

func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		h.sessions.ClearCookie(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandlers) session(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSONResponse(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":    identity.UserID,
			"email": identity.Email,
			"name":  identity.Name,
			"role":  identity.Role,
		},
	})
}

func (h *AuthHandlers) providers(w http.ResponseWriter, r *http.Request) {
	names := []string{domain.ProviderCredentials}
	if h.social != nil {
		social := h.social.Providers()
		slices.Sort(social)
		names = append(names, social...)
	}
	if h.firebase != nil {
		names = append(names, domain.ProviderFirebase)
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"providers": names})
}

func (h *AuthHandlers) beginSocial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.social == nil {
		httpx.WriteError(ctx, w, httpx.NewError("provider_not_configured", "social sign-in is not configured", http.StatusNotFound))
		return
	}
	authURL, err := h.social.Begin(w, r, chi.URLParam(r, "provider"))
	if err != nil {
		writeSocialError(ctx, w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *AuthHandlers) completeSocial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if h.social == nil {
		httpx.WriteError(ctx, w, httpx.NewError("provider_not_configured", "social sign-in is not configured", http.StatusNotFound))
		return
	}
	social, err := h.social.Complete(w, r, chi.URLParam(r, "provider"))
	if err != nil {
		writeSocialError(ctx, w, err)
		return
	}
	user, err := h.users.SignInExternal(ctx, services.ExternalProfile{
		Provider:  social.Provider,
		Email:     social.Email,
		Name:      social.Name,
		AvatarURL: social.AvatarURL,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	if _, _, ok := h.issue(w, r, user); !ok {
		return
	}
	http.Redirect(w, r, h.afterLoginURL, http.StatusFound)
}

func (h *AuthHandlers) issue(w http.ResponseWriter, r *http.Request, user services.User) (string, time.Time, bool) {
	token, expires, err := h.sessions.Issue(auth.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
	})
	if err != nil {
		writeInternalError(r.Context(), w, "session_issue_failed", err)
		return "", time.Time{}, false
	}
	h.sessions.SetCookie(w, token, expires)
	return token, expires, true
}

func (h *AuthHandlers) startSession(w http.ResponseWriter, r *http.Request, user services.User, status int) {
	token, expires, ok := h.issue(w, r, user)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSONResponse(w, status, sessionResponse{
		User:      buildUserPayload(user),
		Token:     token,
		ExpiresAt: formatTime(expires),
	})
}

func writeSocialError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnknownProvider):
		httpx.WriteError(ctx, w, httpx.NewError("provider_not_configured", "sign-in provider is not configured", http.StatusNotFound))
	case errors.Is(err, auth.ErrOAuthState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_oauth_state", "sign-in attempt expired or was tampered with", http.StatusBadRequest))
	default:
		observability.FromContext(ctx).Warn("social sign-in failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("provider_error", "sign-in provider rejected the request", http.StatusBadGateway))
	}
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		apiErr := httpx.NewError("invalid_request", "invalid account details", http.StatusBadRequest)
		var verr *validation.Error
		if errors.As(err, &verr) {
			apiErr = httpx.NewError("validation_failed", verr.Error(), http.StatusBadRequest).
				WithDetails(map[string]any{"fields": verr.Fields()})
		}
		httpx.WriteError(ctx, w, apiErr)
	case errors.Is(err, services.ErrUserConflict):
		httpx.WriteError(ctx, w, httpx.NewError("email_taken", "an account with this email already exists", http.StatusConflict))
	case errors.Is(err, services.ErrUserInvalidCredentials):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "email or password is incorrect", http.StatusUnauthorized))
	case errors.Is(err, services.ErrUserUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("user_store_unavailable", "accounts temporarily unavailable", http.StatusServiceUnavailable))
	default:
		writeInternalError(ctx, w, "auth_error", err)
	}
}
