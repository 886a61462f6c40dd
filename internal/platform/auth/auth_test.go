package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/config"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newTestSessions(t *testing.T, opts ...SessionOption) *Sessions {
	t.Helper()
	s, err := NewSessions(config.SessionConfig{SigningKey: testKey, TTL: time.Hour, CookieName: "er_session"}, opts...)
	require.NoError(t, err)
	return s
}

func TestSessionsRoundTrip(t *testing.T) {
	s := newTestSessions(t)

	token, expires, err := s.Issue(Identity{UserID: "usr_1", Email: "ana@example.com", Name: "Ana", Role: "ADMIN"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	identity, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", identity.UserID)
	assert.Equal(t, RoleAdmin, identity.Role)
	assert.True(t, identity.IsAdmin())
}

func TestSessionsRejectExpiredAndTampered(t *testing.T) {
	past := newTestSessions(t, WithSessionClock(func() time.Time { return time.Now().Add(-3 * time.Hour) }))
	token, _, err := past.Issue(Identity{UserID: "usr_1"})
	require.NoError(t, err)

	s := newTestSessions(t)
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	fresh, _, err := s.Issue(Identity{UserID: "usr_1"})
	require.NoError(t, err)
	_, err = s.Verify(fresh[:len(fresh)-2] + "xx")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	other, err := NewSessions(config.SessionConfig{SigningKey: strings.Repeat("z", 32), TTL: time.Hour})
	require.NoError(t, err)
	_, err = other.Verify(fresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewSessionsRequiresLongKey(t *testing.T) {
	_, err := NewSessions(config.SessionConfig{SigningKey: "short"})
	assert.Error(t, err)
}

func TestRequireSession(t *testing.T) {
	s := newTestSessions(t)
	authn := NewSessionAuthenticator(s)
	userToken, _, _ := s.Issue(Identity{UserID: "usr_1", Role: RoleUser})
	adminToken, _, _ := s.Issue(Identity{UserID: "usr_2", Role: RoleAdmin})

	var seen *Identity
	handler := authn.RequireSession(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"wrong role", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+userToken) }, http.StatusForbidden},
		{"admin bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+adminToken) }, http.StatusNoContent},
		{"admin cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "er_session", Value: adminToken}) }, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tc.status, rr.Code)
		})
	}
	require.NotNil(t, seen)
	assert.Equal(t, "usr_2", seen.UserID)
}

func TestOptionalLetsAnonymousThrough(t *testing.T) {
	authn := NewSessionAuthenticator(newTestSessions(t))
	called := false
	handler := authn.Optional(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, ok := IdentityFromContext(r.Context())
		assert.False(t, ok)
		called = true
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, called)
}

func TestPasswordHashing(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)

	hash, err := HashPassword("perfume-lover")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "perfume-lover"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong-password"), ErrPasswordMismatch)
	assert.ErrorIs(t, CheckPassword("", "anything"), ErrPasswordMismatch)
}

func TestProfileFromClaims(t *testing.T) {
	p := profileFromClaims("fb-1", map[string]any{"email": " Ana@Example.com ", "email_verified": true, "name": "Ana"})
	assert.Equal(t, FirebaseProfile{UID: "fb-1", Email: "ana@example.com", EmailVerified: true, Name: "Ana"}, p)
}

type fakeGothSession struct {
	State string
	Code  string
}

func (s *fakeGothSession) GetAuthURL() (string, error) {
	return "https://provider.example/authorize?state=" + s.State, nil
}
func (s *fakeGothSession) Marshal() string { return s.State }
func (s *fakeGothSession) Authorize(_ goth.Provider, params goth.Params) (string, error) {
	s.Code = params.Get("code")
	return s.Code, nil
}

type fakeGothProvider struct{ name string }

func (p *fakeGothProvider) Name() string        { return p.name }
func (p *fakeGothProvider) SetName(name string) { p.name = name }
func (p *fakeGothProvider) BeginAuth(state string) (goth.Session, error) {
	return &fakeGothSession{State: state}, nil
}
func (p *fakeGothProvider) UnmarshalSession(data string) (goth.Session, error) {
	return &fakeGothSession{State: data}, nil
}
func (p *fakeGothProvider) FetchUser(s goth.Session) (goth.User, error) {
	return goth.User{UserID: "gh-42", Email: "Luz@Example.com", NickName: "luz", Provider: p.name}, nil
}
func (p *fakeGothProvider) Debug(bool)                                  {}
func (p *fakeGothProvider) RefreshToken(string) (*oauth2.Token, error) { return nil, nil }
func (p *fakeGothProvider) RefreshTokenAvailable() bool                 { return false }

func TestOAuthBeginAndComplete(t *testing.T) {
	store := NewOAuthCookieStore(testKey, false)
	o := NewOAuth(config.OAuthConfig{}, "https://robjans.example", store, WithOAuthProvider(&fakeGothProvider{name: "github"}))
	assert.Equal(t, []string{"github"}, o.Providers())

	rr := httptest.NewRecorder()
	authURL, err := o.Begin(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/github", nil), "github")
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)

	callback := httptest.NewRequest(http.MethodGet, "/api/v1/auth/github/callback?code=abc&state="+url.QueryEscape(state), nil)
	for _, c := range rr.Result().Cookies() {
		callback.AddCookie(c)
	}
	user, err := o.Complete(httptest.NewRecorder(), callback, "github")
	require.NoError(t, err)
	assert.Equal(t, SocialUser{Provider: "github", ProviderUserID: "gh-42", Email: "luz@example.com", Name: "luz"}, user)

	forged := httptest.NewRequest(http.MethodGet, "/api/v1/auth/github/callback?code=abc&state=forged", nil)
	for _, c := range rr.Result().Cookies() {
		forged.AddCookie(c)
	}
	_, err = o.Complete(httptest.NewRecorder(), forged, "github")
	assert.ErrorIs(t, err, ErrOAuthState)

	_, err = o.Begin(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), "myspace")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
