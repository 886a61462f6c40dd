package services

import (
	"context"
	"sync"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/repositories"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return "stub repository error" }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

type stubProductRepo struct {
	mu        sync.Mutex
	products  map[string]Product
	listErr   error
	listCalls int
	listGate  chan struct{}
	inserted  []Product
}

func newStubProductRepo(products ...Product) *stubProductRepo {
	repo := &stubProductRepo{products: map[string]Product{}}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (r *stubProductRepo) List(ctx context.Context, filter repositories.ProductListFilter) ([]Product, error) {
	r.mu.Lock()
	r.listCalls++
	gate := r.listGate
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Product
	for _, p := range r.products {
		if filter.Category == "" || p.Category == filter.Category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *stubProductRepo) FindByID(_ context.Context, id string) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, stubRepoError{notFound: true}
	}
	return p, nil
}

func (r *stubProductRepo) Insert(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	r.inserted = append(r.inserted, p)
	return p, nil
}

func (r *stubProductRepo) Update(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; !ok {
		return Product{}, stubRepoError{notFound: true}
	}
	r.products[p.ID] = p
	return p, nil
}

func (r *stubProductRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return stubRepoError{notFound: true}
	}
	delete(r.products, id)
	return nil
}

type stubReviewRepo struct {
	reviews   []Review
	inserted  []Review
	lastLimit int
	err       error
}

func (r *stubReviewRepo) Insert(_ context.Context, review Review) (Review, error) {
	if r.err != nil {
		return Review{}, r.err
	}
	r.inserted = append(r.inserted, review)
	return review, nil
}

func (r *stubReviewRepo) ListRecent(_ context.Context, limit int) ([]Review, error) {
	r.lastLimit = limit
	if r.err != nil {
		return nil, r.err
	}
	out := append([]Review(nil), r.reviews...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubUserRepo struct {
	mu      sync.Mutex
	byID    map[string]User
	updates int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byID: map[string]User{}}
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return User{}, stubRepoError{notFound: true}
	}
	return u, nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, stubRepoError{notFound: true}
}

func (r *stubUserRepo) Create(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == user.Email {
			return User{}, stubRepoError{conflict: true}
		}
	}
	r.byID[user.ID] = user
	return user, nil
}

func (r *stubUserRepo) Update(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	r.byID[user.ID] = user
	return user, nil
}
