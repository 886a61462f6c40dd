package idempotency

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/auth"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/httpx"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/observability"
)

const (
	defaultHeaderName = "Idempotency-Key"
	// ReplayHeader marks a response served from the store.
	ReplayHeader   = "X-Idempotent-Replay"
	maxKeyLength   = 255
	maxReplayBytes = 1 << 20
	// DefaultMaxBodyBytes caps the request body buffered for fingerprinting.
	DefaultMaxBodyBytes = 64 << 10
)

type middlewareConfig struct {
	headerName string
	ttl        time.Duration
	clock      func() time.Time
	maxBody    int64
}

// Option customises the middleware.
type Option func(*middlewareConfig)

// WithHeader overrides the header carrying the key.
func WithHeader(name string) Option {
	return func(cfg *middlewareConfig) {
		if name = strings.TrimSpace(name); name != "" {
			cfg.headerName = name
		}
	}
}

// WithTTL sets how long completed responses are replayed.
func WithTTL(ttl time.Duration) Option {
	return func(cfg *middlewareConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithMaxBodyBytes sets the largest request body the middleware will buffer.
// Larger bodies are rejected with 413 before the handler runs.
func WithMaxBodyBytes(n int64) Option {
	return func(cfg *middlewareConfig) {
		if n > 0 {
			cfg.maxBody = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(cfg *middlewareConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// Middleware replays the stored response when a request repeats an
// Idempotency-Key. Requests without the header pass through untouched.
// Keys are scoped to the signed-in user, or to the client address for guests.
// 5xx responses are not stored so the client can retry.
func Middleware(store Store, opts ...Option) func(http.Handler) http.Handler {
	cfg := middlewareConfig{headerName: defaultHeaderName, ttl: DefaultTTL, clock: time.Now, maxBody: DefaultMaxBodyBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := strings.TrimSpace(r.Header.Get(cfg.headerName))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLength {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", cfg.headerName+" is too long", http.StatusBadRequest))
				return
			}

			body, err := bufferBody(w, r, cfg.maxBody)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.BodyError(err))
				return
			}
			scope := requester(r)
			storeKey := sha256Hex([]byte(scope + "|" + key))
			fingerprint := sha256Hex([]byte(r.Method + "|" + r.URL.Path + "|" + sha256Hex(body)))

			state, record, err := store.Reserve(ctx, storeKey, fingerprint, cfg.clock().UTC(), cfg.ttl)
			switch {
			case errors.Is(err, ErrFingerprintMismatch):
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusUnprocessableEntity))
				return
			case err != nil:
				observability.FromContext(ctx).Error("idempotency reserve failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "unable to process idempotency key", http.StatusServiceUnavailable))
				return
			case state == StateCompleted:
				replay(w, record.Response)
				return
			case state == StatePending:
				w.Header().Set("Retry-After", "1")
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "a request with this idempotency key is in progress", http.StatusConflict))
				return
			}

			rec := &recorder{parent: w, header: make(http.Header)}
			next.ServeHTTP(rec, r)

			status := rec.statusCode()
			if status >= http.StatusInternalServerError || rec.body.Len() > maxReplayBytes {
				if err := store.Release(ctx, storeKey); err != nil {
					observability.FromContext(ctx).Warn("idempotency release failed", zap.Error(err))
				}
			} else {
				resp := Response{Status: status, Headers: replayableHeaders(rec.header), Body: rec.body.Bytes()}
				if err := store.Complete(ctx, storeKey, fingerprint, resp, cfg.clock().UTC(), cfg.ttl); err != nil {
					observability.FromContext(ctx).Warn("idempotency save failed", zap.Error(err))
					_ = store.Release(ctx, storeKey)
				}
			}
			rec.flush()
		})
	}
}

func requester(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity.UserID != "" {
		return "user:" + identity.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func bufferBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	_ = r.Body.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, httpx.ErrBodyTooLarge
		}
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func replay(w http.ResponseWriter, resp Response) {
	for name, values := range resp.Headers {
		w.Header()[name] = append([]string(nil), values...)
	}
	w.Header().Set(ReplayHeader, "true")
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

// recorder buffers the handler output so it can be stored before the client sees it.
type recorder struct {
	parent http.ResponseWriter
	header http.Header
	status int
	body   bytes.Buffer
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func (r *recorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(p)
}

func (r *recorder) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *recorder) flush() {
	dst := r.parent.Header()
	for name, values := range r.header {
		dst[name] = values
	}
	r.parent.WriteHeader(r.statusCode())
	_, _ = r.parent.Write(r.body.Bytes())
}
