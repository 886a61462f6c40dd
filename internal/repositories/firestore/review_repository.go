package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
	pfirestore "github.com/PastMilk78/escencias-robjans-sub000/internal/platform/firestore"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/repositories"
)

const reviewCollection = "reviews"

// ReviewRepository stores reviews in Firestore.
type ReviewRepository struct {
	coll *pfirestore.Collection[reviewDocument]
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)

// NewReviewRepository constructs a Firestore-backed review repository.
func NewReviewRepository(provider *pfirestore.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	return &ReviewRepository{
		coll: pfirestore.NewCollection[reviewDocument](provider, reviewCollection, nil, nil),
	}, nil
}

// Insert appends a review under its pre-assigned id.
func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	if _, err := r.coll.Create(ctx, review.ID, reviewDocument{
		UserID:    review.UserID,
		Name:      review.Name,
		Comment:   review.Comment,
		Rating:    review.Rating,
		CreatedAt: review.CreatedAt,
	}); err != nil {
		return domain.Review{}, err
	}
	return review, nil
}

// ListRecent returns up to limit reviews, newest first.
func (r *ReviewRepository) ListRecent(ctx context.Context, limit int) ([]domain.Review, error) {
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}
	reviews := make([]domain.Review, 0, len(docs))
	for _, doc := range docs {
		reviews = append(reviews, domain.Review{
			ID:        doc.ID,
			UserID:    doc.Data.UserID,
			Name:      doc.Data.Name,
			Comment:   doc.Data.Comment,
			Rating:    doc.Data.Rating,
			CreatedAt: doc.Data.CreatedAt,
		})
	}
	return reviews, nil
}

type reviewDocument struct {
	UserID    string    `firestore:"userId"`
	Name      string    `firestore:"name"`
	Comment   string    `firestore:"comment"`
	Rating    int       `firestore:"rating"`
	CreatedAt time.Time `firestore:"createdAt"`
}
