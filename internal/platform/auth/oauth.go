package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/github"
	"github.com/markbates/goth/providers/google"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/config"
)

const (
	oauthSessionName = "er_oauth"
	oauthStateKey    = "state"
	oauthProviderKey = "provider"
	oauthSessionKey  = "session"
)

var (
	// ErrUnknownProvider is returned for providers that are not configured.
	ErrUnknownProvider = errors.New("auth: unknown oauth provider")
	// ErrOAuthState is returned when the callback state does not match the one issued.
	ErrOAuthState = errors.New("auth: oauth state mismatch")
)

// SocialUser is the profile returned by a completed social login.
type SocialUser struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
}

// OAuth drives the social login redirect dance. The in-flight provider
// session and the anti-forgery state live in a short lived signed cookie.
type OAuth struct {
	providers map[string]goth.Provider
	store     sessions.Store
}

// OAuthOption customises OAuth.
type OAuthOption func(*OAuth)

// WithOAuthProvider registers an extra provider, replacing one with the same name.
func WithOAuthProvider(p goth.Provider) OAuthOption {
	return func(o *OAuth) { o.providers[p.Name()] = p }
}

// NewOAuth registers every provider enabled in cfg. Callbacks resolve to
// {publicURL}/api/v1/auth/{provider}/callback.
func NewOAuth(cfg config.OAuthConfig, publicURL string, store sessions.Store, opts ...OAuthOption) *OAuth {
	o := &OAuth{providers: make(map[string]goth.Provider), store: store}
	callback := func(name string) string {
		return strings.TrimRight(publicURL, "/") + "/api/v1/auth/" + name + "/callback"
	}
	if cfg.Google.Enabled() {
		o.providers["google"] = google.New(cfg.Google.ClientID, cfg.Google.ClientSecret, callback("google"), "email", "profile")
	}
	if cfg.GitHub.Enabled() {
		o.providers["github"] = github.New(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, callback("github"), "read:user", "user:email")
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewOAuthCookieStore builds the signed cookie store used for in-flight logins.
func NewOAuthCookieStore(key string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(key))
	store.Options = &sessions.Options{
		Path:     "/api/v1/auth",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Providers lists configured provider names.
func (o *OAuth) Providers() []string {
	names := make([]string, 0, len(o.providers))
	for name := range o.providers {
		names = append(names, name)
	}
	return names
}

// Begin starts a login with provider and returns the URL to redirect the browser to.
func (o *OAuth) Begin(w http.ResponseWriter, r *http.Request, provider string) (string, error) {
	p, ok := o.providers[provider]
	if !ok {
		return "", ErrUnknownProvider
	}
	state, err := randomState()
	if err != nil {
		return "", err
	}
	sess, err := p.BeginAuth(state)
	if err != nil {
		return "", fmt.Errorf("auth: begin %s: %w", provider, err)
	}
	authURL, err := sess.GetAuthURL()
	if err != nil {
		return "", fmt.Errorf("auth: %s auth url: %w", provider, err)
	}

	cookie, _ := o.store.Get(r, oauthSessionName)
	cookie.Values[oauthStateKey] = state
	cookie.Values[oauthProviderKey] = provider
	cookie.Values[oauthSessionKey] = sess.Marshal()
	if err := cookie.Save(r, w); err != nil {
		return "", fmt.Errorf("auth: save oauth session: %w", err)
	}
	return authURL, nil
}

// Complete finishes the login from the provider callback and fetches the user profile.
func (o *OAuth) Complete(w http.ResponseWriter, r *http.Request, provider string) (SocialUser, error) {
	p, ok := o.providers[provider]
	if !ok {
		return SocialUser{}, ErrUnknownProvider
	}

	cookie, err := o.store.Get(r, oauthSessionName)
	if err != nil {
		return SocialUser{}, ErrOAuthState
	}
	state, _ := cookie.Values[oauthStateKey].(string)
	storedProvider, _ := cookie.Values[oauthProviderKey].(string)
	marshalled, _ := cookie.Values[oauthSessionKey].(string)

	cookie.Options.MaxAge = -1
	_ = cookie.Save(r, w)

	got := r.URL.Query().Get("state")
	if state == "" || storedProvider != provider || subtle.ConstantTimeCompare([]byte(state), []byte(got)) != 1 {
		return SocialUser{}, ErrOAuthState
	}

	sess, err := p.UnmarshalSession(marshalled)
	if err != nil {
		return SocialUser{}, fmt.Errorf("auth: restore %s session: %w", provider, err)
	}
	if _, err := sess.Authorize(p, r.URL.Query()); err != nil {
		return SocialUser{}, fmt.Errorf("auth: authorize %s: %w", provider, err)
	}
	user, err := p.FetchUser(sess)
	if err != nil {
		return SocialUser{}, fmt.Errorf("auth: fetch %s user: %w", provider, err)
	}

	name := strings.TrimSpace(user.Name)
	if name == "" {
		name = strings.TrimSpace(user.NickName)
	}
	return SocialUser{
		Provider:       provider,
		ProviderUserID: user.UserID,
		Email:          strings.ToLower(strings.TrimSpace(user.Email)),
		Name:           name,
		AvatarURL:      user.AvatarURL,
	}, nil
}

func randomState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
