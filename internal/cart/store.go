package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

const (
	cartValueKey   = "cart"
	redisKeyPrefix = "cart:"
)

// ErrCartTooLarge is returned when a cart no longer fits the cookie it is stored in.
var ErrCartTooLarge = errors.New("cart: cart too large for cookie storage")

// Store loads and persists the cart attached to a browser.
type Store interface {
	Load(r *http.Request) (*Cart, error)
	Save(w http.ResponseWriter, r *http.Request, c *Cart) error
}

// CookieStore keeps the whole cart in a signed and encrypted cookie.
type CookieStore struct {
	name  string
	store *sessions.CookieStore
}

// NewCookieStore builds a cookie store. key must be at least 32 bytes; the
// first 32 bytes sign the cookie and are reused as the AES-256 key.
func NewCookieStore(name, key string, ttl time.Duration, secure bool) (*CookieStore, error) {
	if len(key) < 32 {
		return nil, errors.New("cart: cookie key must be at least 32 bytes")
	}
	if strings.TrimSpace(name) == "" {
		name = "er_cart"
	}
	hashKey := []byte(key)
	blockKey := []byte(key[:32])
	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	// MaxAge also moves the securecookie expiry, which otherwise stays at 30 days.
	store.MaxAge(int(ttl.Seconds()))
	return &CookieStore{name: name, store: store}, nil
}

// Load returns the cart in the request cookie. A missing or unreadable cookie yields an empty cart.
func (s *CookieStore) Load(r *http.Request) (*Cart, error) {
	sess, err := s.store.Get(r, s.name)
	if err != nil {
		// Tampered or rotated-key cookies start over with an empty cart.
		return &Cart{}, nil
	}
	raw, ok := sess.Values[cartValueKey].([]byte)
	if !ok || len(raw) == 0 {
		return &Cart{}, nil
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return &Cart{}, nil
	}
	return &c, nil
}

// Save writes c back to the cookie, expiring it when the cart is empty.
func (s *CookieStore) Save(w http.ResponseWriter, r *http.Request, c *Cart) error {
	sess, _ := s.store.Get(r, s.name)
	if c == nil || c.Empty() {
		sess.Options.MaxAge = -1
		delete(sess.Values, cartValueKey)
		return sess.Save(r, w)
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("cart: marshal: %w", err)
	}
	sess.Values[cartValueKey] = raw
	if err := sess.Save(r, w); err != nil {
		if strings.Contains(err.Error(), "too long") {
			return ErrCartTooLarge
		}
		return fmt.Errorf("cart: save cookie: %w", err)
	}
	return nil
}

// RedisStore keeps carts in Redis under an opaque browser id cookie.
type RedisStore struct {
	client     redis.UniversalClient
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewRedisStore builds a Redis-backed store. Carts expire ttl after their last write.
func NewRedisStore(client redis.UniversalClient, cookieName string, ttl time.Duration, secure bool) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("cart: redis client is required")
	}
	if strings.TrimSpace(cookieName) == "" {
		cookieName = "er_cart"
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStore{client: client, cookieName: cookieName, ttl: ttl, secure: secure}, nil
}

func (s *RedisStore) browserID(r *http.Request) string {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return ""
	}
	return id.String()
}

// Load fetches the cart for the browser id cookie.
func (s *RedisStore) Load(r *http.Request) (*Cart, error) {
	id := s.browserID(r)
	if id == "" {
		return &Cart{}, nil
	}
	return s.get(r.Context(), id)
}

func (s *RedisStore) get(ctx context.Context, id string) (*Cart, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &c, nil
}

// Save stores c, minting a browser id cookie on first write.
func (s *RedisStore) Save(w http.ResponseWriter, r *http.Request, c *Cart) error {
	ctx := r.Context()
	id := s.browserID(r)

	if c == nil || c.Empty() {
		if id == "" {
			return nil
		}
		if err := s.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
			return fmt.Errorf("redis del cart: %w", err)
		}
		return nil
	}

	if id == "" {
		id = uuid.NewString()
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+id, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
