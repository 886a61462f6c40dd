package firestore

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
	pfirestore "github.com/PastMilk78/escencias-robjans-sub000/internal/platform/firestore"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/repositories"
)

const (
	userCollection      = "users"
	userEmailCollection = "user_emails"

	// A contended email reservation is retried briefly, then reported as a conflict by the caller.
	createTxAttempts = 2
	createTxTimeout  = 5 * time.Second
)

// UserRepository persists accounts in Firestore. Email uniqueness is held by
// a companion user_emails/{email} document written in the same transaction.
type UserRepository struct {
	provider *pfirestore.Provider
	users    *pfirestore.Collection[userDocument]
	emails   *pfirestore.Collection[userEmailDocument]
	now      func() time.Time
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		provider: provider,
		users:    pfirestore.NewCollection[userDocument](provider, userCollection, nil, nil),
		emails:   pfirestore.NewCollection[userEmailDocument](provider, userEmailCollection, nil, nil),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// FindByID loads the user by id.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	doc, err := r.users.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByEmail resolves the user through the email index document.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	key := emailKey(email)
	if key == "" {
		return domain.User{}, pfirestore.NotFound("users.findByEmail", "email is empty")
	}
	index, err := r.emails.Get(ctx, key)
	if err != nil {
		return domain.User{}, err
	}
	return r.FindByID(ctx, index.Data.UserID)
}

// Create stores a new user, failing with a conflict when the email is taken.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	now := r.now()
	user.Email = normaliseEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	emailRef, err := r.emails.DocumentRef(ctx, emailKey(user.Email))
	if err != nil {
		return domain.User{}, err
	}
	userRef, err := r.users.DocumentRef(ctx, user.ID)
	if err != nil {
		return domain.User{}, err
	}
	payload, err := r.users.Encode(fromDomainUser(user))
	if err != nil {
		return domain.User{}, err
	}

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(emailRef)
		switch {
		case err == nil && snap.Exists():
			return pfirestore.Conflict("users.create", "email already registered")
		case err != nil && status.Code(err) != codes.NotFound:
			return err
		}
		if err := tx.Create(emailRef, userEmailDocument{UserID: user.ID}); err != nil {
			return err
		}
		return tx.Create(userRef, payload)
	}, pfirestore.WithTxAttempts(createTxAttempts), pfirestore.WithTxTimeout(createTxTimeout))
	if err != nil {
		return domain.User{}, pfirestore.WrapError("users.create", err)
	}
	return user, nil
}

// Update overwrites mutable profile fields. The email is immutable.
func (r *UserRepository) Update(ctx context.Context, user domain.User) (domain.User, error) {
	existing, err := r.FindByID(ctx, user.ID)
	if err != nil {
		return domain.User{}, err
	}
	user.Email = existing.Email
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = r.now()
	if _, err := r.users.Replace(ctx, user.ID, fromDomainUser(user)); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

type userDocument struct {
	Name         string    `firestore:"name"`
	Email        string    `firestore:"email"`
	PasswordHash string    `firestore:"passwordHash,omitempty"`
	Image        string    `firestore:"image,omitempty"`
	Role         string    `firestore:"role"`
	Providers    []string  `firestore:"providers"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

type userEmailDocument struct {
	UserID string `firestore:"userId"`
}

func fromDomainUser(u domain.User) userDocument {
	return userDocument{
		Name:         strings.TrimSpace(u.Name),
		Email:        normaliseEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Image:        strings.TrimSpace(u.Image),
		Role:         u.Role,
		Providers:    append([]string(nil), u.Providers...),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDocument) toDomain(id string) domain.User {
	return domain.User{
		ID:           id,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Image:        d.Image,
		Role:         d.Role,
		Providers:    d.Providers,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// emailKey makes an address safe to use as a document id.
func emailKey(email string) string {
	return url.PathEscape(normaliseEmail(email))
}
