package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	envPrefix = "STORE_"

	defaultEnvFile        = ".env"
	defaultPort           = "8080"
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultRequestTimeout = 20 * time.Second
	defaultPublicURL      = "http://localhost:3000"
	defaultCurrency       = "mxn"
	defaultSuccessPath    = "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	defaultCancelPath     = "/cart"
	defaultSessionTTL     = 30 * 24 * time.Hour
	defaultSessionCookie  = "er_session"
	defaultCartStore      = CartStoreCookie
	defaultCartCookie     = "er_cart"
	defaultCartTTL        = 30 * 24 * time.Hour
	defaultLoginPerMinute = 10
	defaultLoginBurst     = 5
	minSigningKeyLength   = 32
)

// Cart store backends.
const (
	CartStoreCookie = "cookie"
	CartStoreRedis  = "redis"
)

// Config is the storefront runtime configuration grouped by concern.
type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Storage     StorageConfig
	Stripe      StripeConfig
	Session     SessionConfig
	OAuth       OAuthConfig
	Cart        CartConfig
	PubSub      PubSubConfig
	RateLimits  RateLimitConfig
	Admin       AdminConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	// PublicURL is the storefront origin used for checkout redirects and OAuth callbacks.
	PublicURL string
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig configures product image uploads. Empty bucket keeps images inline.
type StorageConfig struct {
	ImagesBucket  string
	PublicBaseURL string
}

// StripeConfig holds payment gateway credentials. Missing keys disable checkout, not startup.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessPath   string
	CancelPath    string
}

// SessionConfig controls the signed session token.
type SessionConfig struct {
	SigningKey   string
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
}

// OAuthProvider holds one social login client registration.
type OAuthProvider struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether both halves of the registration are present.
func (p OAuthProvider) Enabled() bool {
	return strings.TrimSpace(p.ClientID) != "" && strings.TrimSpace(p.ClientSecret) != ""
}

// OAuthConfig groups the social login providers.
type OAuthConfig struct {
	Google OAuthProvider
	GitHub OAuthProvider
}

// CartConfig selects where browser carts live.
type CartConfig struct {
	Store         string
	CookieName    string
	CookieKey     string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// PubSubConfig configures payment event fan-out. Empty topic disables publishing.
type PubSubConfig struct {
	ProjectID          string
	PaymentEventsTopic string
}

// RateLimitConfig throttles credential login attempts per client.
type RateLimitConfig struct {
	LoginPerMinute int
	LoginBurst     int
}

// AdminConfig lists emails that receive the admin role when their account is created.
type AdminConfig struct {
	BootstrapEmails []string
}

// IsAdminEmail reports whether email is on the bootstrap list.
func (a AdminConfig) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	return email != "" && slices.Contains(a.BootstrapEmails, email)
}

// SecretResolver resolves secret:// references.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret calls f.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists configuration fields that are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field names.
func (e *ValidationError) Fields() []string {
	return slices.Clone(e.fields)
}

// SecretError describes a secret reference that could not be resolved.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError reports required secrets that resolved to empty values.
// Error() only prints hashed names.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	redacted := make([]string, 0, len(e.names))
	for _, name := range e.names {
		sum := sha256.Sum256([]byte(name))
		redacted = append(redacted, hex.EncodeToString(sum[:8]))
	}
	slices.Sort(redacted)
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(redacted, ", "))
}

// Names returns the unredacted field names.
func (e *MissingSecretsError) Names() []string {
	return slices.Sorted(slices.Values(e.names))
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the dotenv path. An empty path disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks secret fields (e.g. "Stripe.SecretKey") as mandatory.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// Lookup reads a single key with the same precedence as Load
// (dotenv < process env < explicit map). Used to bootstrap the secret resolver.
func Lookup(key string, opts ...Option) (string, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	lookup, err := options.lookupFunc()
	if err != nil {
		return "", err
	}
	value, _ := lookup(key)
	return value, nil
}

func defaultOptions() loaderOptions {
	return loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
}

func (o loaderOptions) lookupFunc() (func(string) (string, bool), error) {
	dotenv, err := loadDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		key = envPrefix + key
		if value, ok := o.envMap[key]; ok {
			return value, true
		}
		if o.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotenv[key]
		return value, ok
	}, nil
}

// Load assembles the configuration from defaults, dotenv, the environment and
// Secret Manager references. Keys are read with the STORE_ prefix.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	lookup, err := options.lookupFunc()
	if err != nil {
		return Config{}, err
	}

	str := func(key, fallback string) string { return stringWithDefault(lookup, key, fallback) }
	dur := func(key string, fallback time.Duration) time.Duration { return durationWithDefault(lookup, key, fallback) }

	cfg := Config{
		Environment: strings.ToLower(str("ENVIRONMENT", "local")),
		LogLevel:    str("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:           str("SERVER_PORT", defaultPort),
			ReadTimeout:    dur("SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   dur("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    dur("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: dur("SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			PublicURL:      strings.TrimRight(str("PUBLIC_URL", defaultPublicURL), "/"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       str("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: str("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    str("FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: str("FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			ImagesBucket:  str("STORAGE_IMAGES_BUCKET", ""),
			PublicBaseURL: strings.TrimRight(str("STORAGE_PUBLIC_BASE_URL", "https://storage.googleapis.com"), "/"),
		},
		Stripe: StripeConfig{
			SecretKey:     str("STRIPE_SECRET_KEY", ""),
			WebhookSecret: str("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(str("STRIPE_CURRENCY", defaultCurrency)),
			SuccessPath:   str("STRIPE_SUCCESS_PATH", defaultSuccessPath),
			CancelPath:    str("STRIPE_CANCEL_PATH", defaultCancelPath),
		},
		Session: SessionConfig{
			SigningKey:   str("SESSION_SIGNING_KEY", ""),
			TTL:          dur("SESSION_TTL", defaultSessionTTL),
			CookieName:   str("SESSION_COOKIE_NAME", defaultSessionCookie),
			CookieSecure: boolWithDefault(lookup, "SESSION_COOKIE_SECURE", false),
		},
		OAuth: OAuthConfig{
			Google: OAuthProvider{ClientID: str("OAUTH_GOOGLE_CLIENT_ID", ""), ClientSecret: str("OAUTH_GOOGLE_CLIENT_SECRET", "")},
			GitHub: OAuthProvider{ClientID: str("OAUTH_GITHUB_CLIENT_ID", ""), ClientSecret: str("OAUTH_GITHUB_CLIENT_SECRET", "")},
		},
		Cart: CartConfig{
			Store:         strings.ToLower(str("CART_STORE", defaultCartStore)),
			CookieName:    str("CART_COOKIE_NAME", defaultCartCookie),
			CookieKey:     str("CART_COOKIE_KEY", ""),
			TTL:           dur("CART_TTL", defaultCartTTL),
			RedisAddr:     str("CART_REDIS_ADDR", ""),
			RedisPassword: str("CART_REDIS_PASSWORD", ""),
			RedisDB:       intWithDefault(lookup, "CART_REDIS_DB", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:          str("PUBSUB_PROJECT_ID", ""),
			PaymentEventsTopic: str("PUBSUB_PAYMENT_EVENTS_TOPIC", ""),
		},
		RateLimits: RateLimitConfig{
			LoginPerMinute: intWithDefault(lookup, "RATELIMIT_LOGIN_PER_MIN", defaultLoginPerMinute),
			LoginBurst:     intWithDefault(lookup, "RATELIMIT_LOGIN_BURST", defaultLoginBurst),
		},
		Admin: AdminConfig{
			BootstrapEmails: lowerCSV(lookup, "ADMIN_BOOTSTRAP_EMAILS"),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	resolver := options.secret
	if resolver == nil {
		resolver = SecretResolverFunc(func(context.Context, string) (string, error) {
			return "", errSecretResolverNotConfigured
		})
	}
	resolved := make(map[string]string)
	for _, target := range []struct {
		name  string
		field *string
	}{
		{"Stripe.SecretKey", &cfg.Stripe.SecretKey},
		{"Stripe.WebhookSecret", &cfg.Stripe.WebhookSecret},
		{"Session.SigningKey", &cfg.Session.SigningKey},
		{"Cart.CookieKey", &cfg.Cart.CookieKey},
		{"Cart.RedisPassword", &cfg.Cart.RedisPassword},
		{"OAuth.Google.ClientSecret", &cfg.OAuth.Google.ClientSecret},
		{"OAuth.GitHub.ClientSecret", &cfg.OAuth.GitHub.ClientSecret},
	} {
		value, err := resolveSecret(ctx, *target.field, resolver)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if cfg.Cart.CookieKey == "" {
		cfg.Cart.CookieKey = cfg.Session.SigningKey
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	var missing []string
	for _, name := range options.requiredSecrets {
		name = strings.TrimSpace(name)
		if name != "" && resolved[name] == "" && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Config{}, &MissingSecretsError{names: missing}
	}
	return cfg, nil
}

func validate(cfg Config) error {
	var fields []string
	if cfg.Server.Port == "" {
		fields = append(fields, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		fields = append(fields, "Firestore.ProjectID")
	}
	if len(cfg.Session.SigningKey) < minSigningKeyLength {
		fields = append(fields, "Session.SigningKey")
	}
	if cfg.Session.TTL <= 0 {
		fields = append(fields, "Session.TTL")
	}
	switch cfg.Cart.Store {
	case CartStoreCookie:
	case CartStoreRedis:
		if cfg.Cart.RedisAddr == "" {
			fields = append(fields, "Cart.RedisAddr")
		}
	default:
		fields = append(fields, "Cart.Store")
	}
	if cfg.RateLimits.LoginPerMinute <= 0 {
		fields = append(fields, "RateLimits.LoginPerMinute")
	}
	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "secret://") && !strings.HasPrefix(trimmed, "sm://") {
		return value, nil
	}
	ref := "secret://" + strings.TrimPrefix(strings.TrimPrefix(trimmed, "secret://"), "sm://")
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

func lowerCSV(lookup func(string) (string, bool), key string) []string {
	raw, _ := lookup(key)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
