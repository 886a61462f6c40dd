package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/repositories"
)

const (
	defaultReviewLimit = 20
	maxReviewLimit     = 50
	maxCommentLength   = 1000
	maxReviewerName    = 80
)

var (
	// ErrReviewInvalidInput indicates validation failures for review operations.
	ErrReviewInvalidInput = errors.New("review: invalid input")
	// ErrReviewUnavailable indicates the review store could not be reached.
	ErrReviewUnavailable = errors.New("review: store unavailable")
)

// ReviewListOptions controls the carousel listing.
type ReviewListOptions struct {
	Limit   int
	Shuffle bool
}

// CreateReviewCommand carries a review submission from a signed-in user.
type CreateReviewCommand struct {
	UserID  string
	Name    string
	Comment string
	Rating  int
}

// ReviewServiceDeps bundles collaborators required to construct a ReviewService.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Clock       func() time.Time
	IDGenerator func() string
	// Shuffle permutes reviews in place; defaults to a Fisher-Yates shuffle.
	Shuffle func(n int, swap func(i, j int))
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type reviewService struct {
	reviews repositories.ReviewRepository
	clock   func() time.Time
	newID   func() string
	shuffle func(n int, swap func(i, j int))
	policy  *bluemonday.Policy
	logger  func(ctx context.Context, event string, fields map[string]any)
}

var _ ReviewService = (*reviewService)(nil)

// NewReviewService wires dependencies into a ReviewService.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	shuffle := deps.Shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &reviewService{
		reviews: deps.Reviews,
		clock:   func() time.Time { return clock().UTC() },
		newID:   idGen,
		shuffle: shuffle,
		policy:  bluemonday.StrictPolicy(),
		logger:  logger,
	}, nil
}

// List returns up to the bounded number of newest reviews, shuffled on request.
func (s *reviewService) List(ctx context.Context, opts ReviewListOptions) ([]Review, error) {
	limit := opts.Limit
	switch {
	case limit < 0:
		return nil, fmt.Errorf("%w: limit must be positive", ErrReviewInvalidInput)
	case limit == 0:
		limit = defaultReviewLimit
	case limit > maxReviewLimit:
		limit = maxReviewLimit
	}
	reviews, err := s.reviews.ListRecent(ctx, limit)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if opts.Shuffle {
		s.shuffle(len(reviews), func(i, j int) {
			reviews[i], reviews[j] = reviews[j], reviews[i]
		})
	}
	return reviews, nil
}

// Create validates and stores a review. Nothing is persisted when validation fails.
func (s *reviewService) Create(ctx context.Context, cmd CreateReviewCommand) (Review, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return Review{}, fmt.Errorf("%w: user id is required", ErrReviewInvalidInput)
	}
	if cmd.Rating < domain.MinRating || cmd.Rating > domain.MaxRating {
		return Review{}, fmt.Errorf("%w: rating must be between %d and %d", ErrReviewInvalidInput, domain.MinRating, domain.MaxRating)
	}
	comment := plainText(s.policy, cmd.Comment)
	if comment == "" {
		return Review{}, fmt.Errorf("%w: comment is required", ErrReviewInvalidInput)
	}
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return Review{}, fmt.Errorf("%w: comment must be at most %d characters", ErrReviewInvalidInput, maxCommentLength)
	}
	name := plainText(s.policy, cmd.Name)
	if utf8.RuneCountInString(name) > maxReviewerName {
		return Review{}, fmt.Errorf("%w: name must be at most %d characters", ErrReviewInvalidInput, maxReviewerName)
	}
	if name == "" {
		name = "Cliente"
	}

	review, err := s.reviews.Insert(ctx, Review{
		ID:        s.newID(),
		UserID:    cmd.UserID,
		Name:      name,
		Comment:   comment,
		Rating:    cmd.Rating,
		CreatedAt: s.clock(),
	})
	if err != nil {
		return Review{}, s.mapRepoError(err)
	}
	s.logger(ctx, "review.created", map[string]any{"reviewId": review.ID, "rating": review.Rating})
	return review, nil
}

func (s *reviewService) mapRepoError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		return fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}
	return fmt.Errorf("review service: %w", err)
}
