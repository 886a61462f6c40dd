package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSecretClient struct {
	mu     sync.Mutex
	values map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{values: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (c *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[req.GetName()]++
	if err := c.errs[req.GetName()]; err != nil {
		return nil, err
	}
	value, ok := c.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)}}, nil
}

func (c *fakeSecretClient) Close() error { return nil }

func TestResolveCachesRemoteSecret(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	resource := "projects/robjans/secrets/stripe-secret-key/versions/latest"
	client.values[resource] = "sk_test_123"

	fetcher, err := NewFetcher(ctx, withClient(client), WithProject("robjans"), WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	for i := 0; i < 2; i++ {
		got, err := fetcher.ResolveSecret(ctx, "secret://stripe-secret-key")
		if err != nil || got != "sk_test_123" {
			t.Fatalf("ResolveSecret returned %q, %v", got, err)
		}
	}
	if client.calls[resource] != 1 {
		t.Fatalf("expected one remote call, got %d", client.calls[resource])
	}
}

func TestResolveFallsBackToLocalFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte("# local\nsession-signing-key=local-value\n"), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}

	client := newFakeSecretClient()
	client.errs["projects/robjans/secrets/session-signing-key/versions/3"] = status.Error(codes.PermissionDenied, "denied")

	fetcher, err := NewFetcher(ctx, withClient(client), WithProject("robjans"), WithFallbackFile(path))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}

	got, err := fetcher.ResolveSecret(ctx, "secret://session-signing-key/3")
	if err != nil || got != "local-value" {
		t.Fatalf("expected fallback value, got %q, %v", got, err)
	}
}

func TestResolveSurfacesHardFailures(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.errs["projects/p/secrets/key/versions/latest"] = status.Error(codes.InvalidArgument, "bad")

	fetcher, _ := NewFetcher(ctx, withClient(client), WithProject("p"), WithFallbackFile(""))
	if _, err := fetcher.ResolveSecret(ctx, "secret://key"); err == nil {
		t.Fatal("expected error for non-fallback status")
	}
}

func TestParseReference(t *testing.T) {
	cases := []struct {
		ref                    string
		project, name, version string
	}{
		{"secret://stripe", "def", "stripe", "latest"},
		{"secret://stripe/7", "def", "stripe", "7"},
		{"secret://projects/other/secrets/stripe", "other", "stripe", "latest"},
		{"secret://projects/other/secrets/stripe/versions/2", "other", "stripe", "2"},
	}
	for _, tc := range cases {
		project, name, version, err := parseReference(tc.ref, "def")
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.ref, err)
		}
		if project != tc.project || name != tc.name || version != tc.version {
			t.Fatalf("%s: got %s/%s/%s", tc.ref, project, name, version)
		}
	}

	for _, bad := range []string{"stripe", "secret://", "secret://a/b/c", "secret://projects/p/secrets/s/extra"} {
		if _, _, _, err := parseReference(bad, "def"); !errors.Is(err, ErrInvalidReference) {
			t.Fatalf("%s: expected ErrInvalidReference, got %v", bad, err)
		}
	}
}
