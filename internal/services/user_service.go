package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/auth"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/validation"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/repositories"
)

var (
	// ErrUserInvalidInput indicates validation failures for account operations.
	ErrUserInvalidInput = errors.New("user: invalid input")
	// ErrUserConflict indicates the email is already registered.
	ErrUserConflict = errors.New("user: email already registered")
	// ErrUserInvalidCredentials indicates an unknown email or wrong password.
	ErrUserInvalidCredentials = errors.New("user: invalid credentials")
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user: not found")
	// ErrUserUnavailable indicates the user store could not be reached.
	ErrUserUnavailable = errors.New("user: store unavailable")
)

// RegisterCommand carries a credentials sign-up.
type RegisterCommand struct {
	Name     string `json:"name" validate:"required,max=80"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ExternalProfile is a sign-in vouched for by an OAuth provider or Firebase.
type ExternalProfile struct {
	Provider  string
	Email     string
	Name      string
	AvatarURL string
}

// UserServiceDeps bundles collaborators required to construct a UserService.
type UserServiceDeps struct {
	Users       repositories.UserRepository
	Clock       func() time.Time
	IDGenerator func() string
	// IsAdminEmail marks accounts that are granted the admin role.
	IsAdminEmail func(email string) bool
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type userService struct {
	users   repositories.UserRepository
	clock   func() time.Time
	newID   func() string
	isAdmin func(string) bool
	logger  func(ctx context.Context, event string, fields map[string]any)
}

var _ UserService = (*userService)(nil)

// NewUserService wires dependencies into a UserService.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	isAdmin := deps.IsAdminEmail
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &userService{
		users:   deps.Users,
		clock:   func() time.Time { return clock().UTC() },
		newID:   idGen,
		isAdmin: isAdmin,
		logger:  logger,
	}, nil
}

// Register creates a credentials account.
func (s *userService) Register(ctx context.Context, cmd RegisterCommand) (User, error) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.Email = normaliseEmail(cmd.Email)
	if err := validation.Struct(cmd); err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrUserInvalidInput, err)
	}
	hash, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrUserInvalidInput, err)
	}

	user, err := s.users.Create(ctx, User{
		ID:           s.newID(),
		Name:         cmd.Name,
		Email:        cmd.Email,
		PasswordHash: hash,
		Role:         s.roleFor(cmd.Email, ""),
		Providers:    []string{domain.ProviderCredentials},
	})
	if err != nil {
		return User{}, s.mapRepoError(err)
	}
	s.logger(ctx, "user.registered", map[string]any{"userId": user.ID, "provider": domain.ProviderCredentials})
	return user, nil
}

// Authenticate checks an email and password pair.
func (s *userService) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = normaliseEmail(email)
	if email == "" || password == "" {
		return User{}, ErrUserInvalidCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		mapped := s.mapRepoError(err)
		if errors.Is(mapped, ErrUserNotFound) {
			return User{}, ErrUserInvalidCredentials
		}
		return User{}, mapped
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return User{}, ErrUserInvalidCredentials
		}
		return User{}, err
	}
	if role := s.roleFor(user.Email, user.Role); role != user.Role {
		user.Role = role
		if updated, err := s.users.Update(ctx, user); err == nil {
			user = updated
		}
	}
	return user, nil
}

// SignInExternal finds the account for profile.Email, creating it on first sign-in.
func (s *userService) SignInExternal(ctx context.Context, profile ExternalProfile) (User, error) {
	email := normaliseEmail(profile.Email)
	if email == "" {
		return User{}, fmt.Errorf("%w: provider did not supply an email", ErrUserInvalidInput)
	}
	provider := strings.ToLower(strings.TrimSpace(profile.Provider))
	if provider == "" {
		return User{}, fmt.Errorf("%w: provider is required", ErrUserInvalidInput)
	}

	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.users.FindByEmail(ctx, email)
		if err == nil {
			return s.linkProvider(ctx, existing, provider, profile)
		}
		if mapped := s.mapRepoError(err); !errors.Is(mapped, ErrUserNotFound) {
			return User{}, mapped
		}

		name := strings.TrimSpace(profile.Name)
		if name == "" {
			name, _, _ = strings.Cut(email, "@")
		}
		created, err := s.users.Create(ctx, User{
			ID:        s.newID(),
			Name:      name,
			Email:     email,
			Image:     strings.TrimSpace(profile.AvatarURL),
			Role:      s.roleFor(email, ""),
			Providers: []string{provider},
		})
		if err == nil {
			s.logger(ctx, "user.registered", map[string]any{"userId": created.ID, "provider": provider})
			return created, nil
		}
		// Lost a race with a concurrent first sign-in: read the winner.
		if mapped := s.mapRepoError(err); !errors.Is(mapped, ErrUserConflict) {
			return User{}, mapped
		}
	}
	return User{}, ErrUserConflict
}

func (s *userService) linkProvider(ctx context.Context, user User, provider string, profile ExternalProfile) (User, error) {
	changed := false
	if !user.HasProvider(provider) {
		user.Providers = append(user.Providers, provider)
		changed = true
	}
	if user.Image == "" && strings.TrimSpace(profile.AvatarURL) != "" {
		user.Image = strings.TrimSpace(profile.AvatarURL)
		changed = true
	}
	if role := s.roleFor(user.Email, user.Role); role != user.Role {
		user.Role = role
		changed = true
	}
	if !changed {
		return user, nil
	}
	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return User{}, s.mapRepoError(err)
	}
	return updated, nil
}

// GetUser loads a user by id.
func (s *userService) GetUser(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return User{}, s.mapRepoError(err)
	}
	return user, nil
}

// roleFor keeps an existing admin role and grants it to bootstrap emails.
func (s *userService) roleFor(email, current string) string {
	if auth.NormaliseRole(current) == auth.RoleAdmin || s.isAdmin(email) {
		return auth.RoleAdmin
	}
	return auth.RoleUser
}

func (s *userService) mapRepoError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrUserNotFound
		case repoErr.IsConflict():
			return ErrUserConflict
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrUserUnavailable, err)
		}
	}
	return fmt.Errorf("user service: %w", err)
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
