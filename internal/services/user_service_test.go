package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/auth"
)

func newTestUsers(t *testing.T, repo *stubUserRepo, admins ...string) UserService {
	t.Helper()
	seq := 0
	svc, err := NewUserService(UserServiceDeps{
		Users: repo,
		IDGenerator: func() string {
			seq++
			return fmt.Sprintf("user-%d", seq)
		},
		IsAdminEmail: func(email string) bool {
			for _, a := range admins {
				if strings.EqualFold(a, email) {
					return true
				}
			}
			return false
		},
	})
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}
	return svc
}

func TestUserRegisterAndAuthenticate(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestUsers(t, repo)

	user, err := svc.Register(context.Background(), RegisterCommand{Name: " Ana ", Email: " Ana@Example.com ", Password: "perfume123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "ana@example.com" || user.Role != auth.RoleUser {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.PasswordHash == "" || user.PasswordHash == "perfume123" {
		t.Fatal("password must be stored hashed")
	}
	if !user.HasProvider(domain.ProviderCredentials) {
		t.Fatalf("expected credentials provider, got %v", user.Providers)
	}

	if _, err := svc.Register(context.Background(), RegisterCommand{Name: "Ana", Email: "ana@example.com", Password: "otra-clave"}); !errors.Is(err, ErrUserConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}

	got, err := svc.Authenticate(context.Background(), "ANA@example.com", "perfume123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("authenticated wrong user %s", got.ID)
	}
	if _, err := svc.Authenticate(context.Background(), "ana@example.com", "wrong-pass"); !errors.Is(err, ErrUserInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "nobody@example.com", "perfume123"); !errors.Is(err, ErrUserInvalidCredentials) {
		t.Fatalf("unknown email must look like a bad password, got %v", err)
	}
}

func TestUserRegisterValidates(t *testing.T) {
	svc := newTestUsers(t, newStubUserRepo())
	cases := map[string]RegisterCommand{
		"bad email":      {Name: "Ana", Email: "ana", Password: "perfume123"},
		"short password": {Name: "Ana", Email: "ana@example.com", Password: "corta"},
		"missing name":   {Email: "ana@example.com", Password: "perfume123"},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), cmd); !errors.Is(err, ErrUserInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestUserSignInExternalCreatesThenLinks(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestUsers(t, repo, "owner@robjans.example")

	first, err := svc.SignInExternal(context.Background(), ExternalProfile{Provider: "Google", Email: "luis@example.com", AvatarURL: "https://img.example/l.png"})
	if err != nil {
		t.Fatalf("SignInExternal: %v", err)
	}
	if first.Name != "luis" || !first.HasProvider(domain.ProviderGoogle) {
		t.Fatalf("unexpected user %+v", first)
	}

	second, err := svc.SignInExternal(context.Background(), ExternalProfile{Provider: "github", Email: "LUIS@example.com"})
	if err != nil {
		t.Fatalf("SignInExternal: %v", err)
	}
	if second.ID != first.ID || !second.HasProvider(domain.ProviderGitHub) || len(second.Providers) != 2 {
		t.Fatalf("expected provider to be linked to the same account, got %+v", second)
	}

	updates := repo.updates
	if _, err := svc.SignInExternal(context.Background(), ExternalProfile{Provider: "google", Email: "luis@example.com"}); err != nil {
		t.Fatalf("SignInExternal: %v", err)
	}
	if repo.updates != updates {
		t.Fatal("repeat sign-in must not rewrite the account")
	}

	if _, err := svc.SignInExternal(context.Background(), ExternalProfile{Provider: "google"}); !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected invalid input without email, got %v", err)
	}
}

func TestUserBootstrapAdminRole(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestUsers(t, repo, "owner@robjans.example")

	admin, err := svc.SignInExternal(context.Background(), ExternalProfile{Provider: "google", Email: "owner@robjans.example"})
	if err != nil {
		t.Fatalf("SignInExternal: %v", err)
	}
	if admin.Role != auth.RoleAdmin {
		t.Fatalf("expected admin role, got %q", admin.Role)
	}

	user, err := svc.Register(context.Background(), RegisterCommand{Name: "Eva", Email: "eva@example.com", Password: "perfume123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != auth.RoleUser {
		t.Fatalf("expected user role, got %q", user.Role)
	}
}

func TestUserGetUser(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestUsers(t, repo)
	if _, err := svc.GetUser(context.Background(), ""); !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := svc.GetUser(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
