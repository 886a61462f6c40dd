// Package secrets resolves secret:// configuration references against Google
// Secret Manager, with a dotenv-style fallback file for local development.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	refScheme           = "secret://"
	defaultFallbackPath = ".secrets.local"
	latestVersion       = "latest"
)

// ErrInvalidReference is returned for references that do not follow
// secret://NAME[/VERSION] or secret://projects/P/secrets/NAME[/versions/V].
var ErrInvalidReference = errors.New("secrets: invalid reference")

type accessClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves and caches secret values for the lifetime of the process.
type Fetcher struct {
	client     accessClient
	ownsClient bool
	projectID  string
	logger     *zap.Logger

	fallbackPath string
	fallbackOnce sync.Once
	fallback     map[string]string

	mu    sync.RWMutex
	cache map[string]string

	lookups metric.Int64Counter
}

type fetcherConfig struct {
	logger       *zap.Logger
	projectID    string
	fallbackPath string
	client       accessClient
	clientOpts   []option.ClientOption
	meter        metric.Meter
}

// Option customises NewFetcher.
type Option func(*fetcherConfig)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *fetcherConfig) { c.logger = logger }
}

// WithProject sets the project used for short references.
func WithProject(projectID string) Option {
	return func(c *fetcherConfig) { c.projectID = strings.TrimSpace(projectID) }
}

// WithFallbackFile overrides the local fallback file. Empty disables it.
func WithFallbackFile(path string) Option {
	return func(c *fetcherConfig) { c.fallbackPath = strings.TrimSpace(path) }
}

// WithClientOptions forwards options to the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *fetcherConfig) { c.clientOpts = append(c.clientOpts, opts...) }
}

// WithMeter overrides the OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(c *fetcherConfig) { c.meter = m }
}

func withClient(client accessClient) Option {
	return func(c *fetcherConfig) { c.client = client }
}

// NewFetcher builds a Fetcher. When the Secret Manager client cannot be created
// the fetcher keeps working from the fallback file only.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{logger: zap.NewNop(), fallbackPath: defaultFallbackPath}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.meter == nil {
		cfg.meter = otel.GetMeterProvider().Meter("github.com/PastMilk78/escencias-robjans-sub000/internal/platform/secrets")
	}
	lookups, err := cfg.meter.Int64Counter("secrets.lookups", metric.WithDescription("Secret lookups by source"))
	if err != nil {
		return nil, fmt.Errorf("secrets: register metric: %w", err)
	}

	f := &Fetcher{
		client:       cfg.client,
		projectID:    cfg.projectID,
		logger:       cfg.logger,
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]string),
		lookups:      lookups,
	}
	if f.client == nil && f.projectID != "" {
		client, err := secretmanager.NewClient(ctx, cfg.clientOpts...)
		if err != nil {
			f.logger.Warn("secrets: secret manager unavailable, using fallback file only", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}
	return f, nil
}

// Close releases the Secret Manager client when the fetcher created it.
func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// ResolveSecret implements config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	project, name, version, err := parseReference(ref, f.projectID)
	if err != nil {
		return "", err
	}
	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, name, version)

	f.mu.RLock()
	value, ok := f.cache[resource]
	f.mu.RUnlock()
	if ok {
		f.count(ctx, "cache")
		return value, nil
	}

	if f.client != nil && project != "" {
		resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
		switch {
		case err == nil:
			value = string(resp.GetPayload().GetData())
			f.store(resource, value)
			f.count(ctx, "remote")
			return value, nil
		case !canFallBack(err):
			return "", fmt.Errorf("secrets: access %s: %w", name, err)
		}
		f.logger.Debug("secrets: remote lookup failed, trying fallback", zap.String("secret", name), zap.Error(err))
	}

	value, ok = f.fallbackValue(name)
	if !ok {
		return "", fmt.Errorf("secrets: %s not found", name)
	}
	f.store(resource, value)
	f.count(ctx, "fallback")
	return value, nil
}

func (f *Fetcher) store(key, value string) {
	f.mu.Lock()
	f.cache[key] = value
	f.mu.Unlock()
}

func (f *Fetcher) count(ctx context.Context, source string) {
	f.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (f *Fetcher) fallbackValue(name string) (string, bool) {
	f.fallbackOnce.Do(func() {
		values, err := readFallbackFile(f.fallbackPath)
		if err != nil {
			f.logger.Warn("secrets: unable to read fallback file", zap.String("path", f.fallbackPath), zap.Error(err))
		}
		f.fallback = values
	})
	value, ok := f.fallback[name]
	return value, ok
}

func canFallBack(err error) bool {
	switch status.Code(err) {
	case codes.NotFound, codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable:
		return true
	default:
		return false
	}
}

func parseReference(ref, defaultProject string) (project, name, version string, err error) {
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(trimmed, refScheme) {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(trimmed, refScheme), "/"), "/")

	switch {
	case len(parts) >= 4 && parts[0] == "projects" && parts[2] == "secrets":
		project, name, version = parts[1], parts[3], latestVersion
		if len(parts) == 6 && parts[4] == "versions" {
			version = parts[5]
		} else if len(parts) != 4 {
			return "", "", "", fmt.Errorf("%w: %q", ErrInvalidReference, ref)
		}
	case len(parts) == 1 || len(parts) == 2:
		project, name, version = defaultProject, parts[0], latestVersion
		if len(parts) == 2 {
			version = parts[1]
		}
	default:
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	if name == "" || version == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	return project, name, version, nil
}
