package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/auth"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/httpx"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

const maxReviewBodySize = 16 * 1024

// ReviewHandlers exposes endpoints for listing and creating customer reviews.
type ReviewHandlers struct {
	authn   *auth.Authenticator
	reviews services.ReviewService
}

// NewReviewHandlers constructs a new ReviewHandlers instance.
func NewReviewHandlers(authn *auth.Authenticator, reviews services.ReviewService) *ReviewHandlers {
	return &ReviewHandlers{
		authn:   authn,
		reviews: reviews,
	}
}

// Routes registers the /reviews endpoints. Listing is public; posting needs a session.
func (h *ReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listReviews)
	if h.authn != nil {
		r.With(h.authn.RequireSession()).Post("/", h.createReview)
		return
	}
	r.Post("/", h.createReview)
}

type createReviewRequest struct {
	Name    string `json:"name"`
	Comment string `json:"comment"`
	Rating  int    `json:"rating"`
}

func (h *ReviewHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}
	q := r.URL.Query()
	opts := services.ReviewListOptions{}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		opts.Limit = limit
	}
	if raw := strings.TrimSpace(q.Get("shuffle")); raw != "" {
		shuffle, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shuffle must be a boolean", http.StatusBadRequest))
			return
		}
		opts.Shuffle = shuffle
	}

	reviews, err := h.reviews.List(ctx, opts)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	items := make([]reviewPayload, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, buildReviewPayload(review))
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSONResponse(w, http.StatusOK, map[string]any{"reviews": items})
}

func (h *ReviewHandlers) createReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UserID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req createReviewRequest
	if err := httpx.DecodeJSON(r, maxReviewBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	if req.Rating < domain.MinRating || req.Rating > domain.MaxRating {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_rating", "rating must be between 1 and 5", http.StatusBadRequest))
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = identity.Name
	}
	review, err := h.reviews.Create(ctx, services.CreateReviewCommand{
		UserID:  identity.UserID,
		Name:    name,
		Comment: req.Comment,
		Rating:  req.Rating,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{"review": buildReviewPayload(review)})
}

func writeReviewError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrReviewInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", strings.TrimPrefix(err.Error(), services.ErrReviewInvalidInput.Error()+": "), http.StatusBadRequest))
	case errors.Is(err, services.ErrReviewUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("review_store_unavailable", "reviews temporarily unavailable", http.StatusServiceUnavailable))
	default:
		writeInternalError(ctx, w, "review_error", err)
	}
}
