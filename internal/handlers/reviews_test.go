package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/auth"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

func newReviewRouter(t *testing.T, svc services.ReviewService) (chi.Router, *auth.Sessions) {
	t.Helper()
	sessions := newTestSessions(t)
	router := chi.NewRouter()
	router.Route("/reviews", NewReviewHandlers(auth.NewSessionAuthenticator(sessions), svc).Routes)
	return router, sessions
}

func TestReviewHandlersList(t *testing.T) {
	svc := &stubReviewService{
		listFunc: func(_ context.Context, opts services.ReviewListOptions) ([]services.Review, error) {
			if opts.Limit != 5 || !opts.Shuffle {
				t.Fatalf("unexpected options %+v", opts)
			}
			return []services.Review{{ID: "r1", Name: "Ana", Comment: "Excelente", Rating: 5, CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}}, nil
		},
	}
	router, _ := newReviewRouter(t, svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reviews?limit=5&shuffle=true", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Reviews []reviewPayload `json:"reviews"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Reviews) != 1 || resp.Reviews[0].CreatedAt != "2024-02-01T00:00:00Z" {
		t.Fatalf("unexpected reviews %+v", resp.Reviews)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reviews?shuffle=maybe", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad shuffle flag, got %d", rr.Code)
	}
}

func TestReviewHandlersCreateRequiresSession(t *testing.T) {
	svc := &stubReviewService{}
	router, _ := newReviewRouter(t, svc)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/reviews", strings.NewReader(`{"comment":"hola","rating":5}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if svc.creates != 0 {
		t.Fatal("service must not be called")
	}
}

func TestReviewHandlersRejectRatingOutOfRange(t *testing.T) {
	svc := &stubReviewService{}
	router, sessions := newReviewRouter(t, svc)
	for _, body := range []string{`{"comment":"meh","rating":0}`, `{"comment":"wow","rating":6}`} {
		req := httptest.NewRequest(http.MethodPost, "/reviews", strings.NewReader(body))
		req.Header.Set("Authorization", bearerFor(t, sessions, auth.RoleUser))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rr.Code)
		}
	}
	if svc.creates != 0 {
		t.Fatalf("invalid ratings must not reach the service, got %d calls", svc.creates)
	}
}

func TestReviewHandlersCreate(t *testing.T) {
	svc := &stubReviewService{
		createFunc: func(_ context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
			if cmd.UserID != "user-1" || cmd.Name != "Ana" || cmd.Rating != 4 {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.Review{ID: "r9", Name: cmd.Name, Comment: cmd.Comment, Rating: cmd.Rating}, nil
		},
	}
	router, sessions := newReviewRouter(t, svc)
	req := httptest.NewRequest(http.MethodPost, "/reviews", strings.NewReader(`{"comment":"Muy buen aroma","rating":4}`))
	req.Header.Set("Authorization", bearerFor(t, sessions, auth.RoleUser))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}
