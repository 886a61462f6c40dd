package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/cart"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/payments"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/auth"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/config"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

type stubCatalogService struct {
	listFunc   func(ctx context.Context, filter services.ProductFilter) (services.ProductList, error)
	getFunc    func(ctx context.Context, id string) (services.Product, error)
	createFunc func(ctx context.Context, cmd services.ProductCommand) (services.Product, error)
	updateFunc func(ctx context.Context, id string, cmd services.ProductCommand) (services.Product, error)
	deleteFunc func(ctx context.Context, id string) error
	chartFunc  func(ctx context.Context, id string) ([]byte, error)
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter services.ProductFilter) (services.ProductList, error) {
	if s.listFunc == nil {
		return services.ProductList{}, nil
	}
	return s.listFunc(ctx, filter)
}

func (s *stubCatalogService) GetProduct(ctx context.Context, id string) (services.Product, error) {
	if s.getFunc == nil {
		return services.Product{}, services.ErrCatalogNotFound
	}
	return s.getFunc(ctx, id)
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, cmd services.ProductCommand) (services.Product, error) {
	return s.createFunc(ctx, cmd)
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, id string, cmd services.ProductCommand) (services.Product, error) {
	return s.updateFunc(ctx, id, cmd)
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, id string) error {
	return s.deleteFunc(ctx, id)
}

func (s *stubCatalogService) NotesChart(ctx context.Context, id string) ([]byte, error) {
	return s.chartFunc(ctx, id)
}

type stubCheckoutService struct {
	createFunc func(ctx context.Context, cmd services.CheckoutCommand) (payments.CheckoutSession, error)
	calls      []services.CheckoutCommand
}

func (s *stubCheckoutService) CreateSession(ctx context.Context, cmd services.CheckoutCommand) (payments.CheckoutSession, error) {
	s.calls = append(s.calls, cmd)
	return s.createFunc(ctx, cmd)
}

type stubPaymentEventService struct {
	handleFunc func(ctx context.Context, payload []byte, signature string) (payments.Event, error)
}

func (s *stubPaymentEventService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (payments.Event, error) {
	return s.handleFunc(ctx, payload, signature)
}

type stubReviewService struct {
	listFunc   func(ctx context.Context, opts services.ReviewListOptions) ([]services.Review, error)
	createFunc func(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error)
	creates    int
}

func (s *stubReviewService) List(ctx context.Context, opts services.ReviewListOptions) ([]services.Review, error) {
	return s.listFunc(ctx, opts)
}

func (s *stubReviewService) Create(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
	s.creates++
	return s.createFunc(ctx, cmd)
}

type stubUserService struct {
	registerFunc     func(ctx context.Context, cmd services.RegisterCommand) (services.User, error)
	authenticateFunc func(ctx context.Context, email, password string) (services.User, error)
	externalFunc     func(ctx context.Context, profile services.ExternalProfile) (services.User, error)
}

func (s *stubUserService) Register(ctx context.Context, cmd services.RegisterCommand) (services.User, error) {
	return s.registerFunc(ctx, cmd)
}

func (s *stubUserService) Authenticate(ctx context.Context, email, password string) (services.User, error) {
	return s.authenticateFunc(ctx, email, password)
}

func (s *stubUserService) SignInExternal(ctx context.Context, profile services.ExternalProfile) (services.User, error) {
	return s.externalFunc(ctx, profile)
}

func (s *stubUserService) GetUser(context.Context, string) (services.User, error) {
	return services.User{}, services.ErrUserNotFound
}

type stubSystemService struct {
	report services.HealthReport
	check  services.HealthCheck
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.HealthReport, error) {
	return s.report, s.err
}

func (s *stubSystemService) DatabaseDiagnostic(context.Context) (services.HealthCheck, error) {
	return s.check, s.err
}

// memoryCartStore keeps a single cart regardless of the request.
type memoryCartStore struct {
	cart    cart.Cart
	saves   int
	loadErr error
}

func (s *memoryCartStore) Load(*http.Request) (*cart.Cart, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	c := cart.Cart{Lines: append([]cart.Line(nil), s.cart.Lines...)}
	return &c, nil
}

func (s *memoryCartStore) Save(_ http.ResponseWriter, _ *http.Request, c *cart.Cart) error {
	s.saves++
	s.cart = cart.Cart{Lines: append([]cart.Line(nil), c.Lines...)}
	return nil
}

const testSigningKey = "0123456789abcdef0123456789abcdef-test"

func newTestSessions(t *testing.T) *auth.Sessions {
	t.Helper()
	sessions, err := auth.NewSessions(config.SessionConfig{
		SigningKey: testSigningKey,
		TTL:        time.Hour,
		CookieName: "er_session",
	})
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	return sessions
}

func bearerFor(t *testing.T, sessions *auth.Sessions, role string) string {
	t.Helper()
	token, _, err := sessions.Issue(auth.Identity{UserID: "user-1", Email: "ana@example.com", Name: "Ana", Role: role})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return "Bearer " + token
}
