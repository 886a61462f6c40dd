package domain

import (
	"slices"
	"time"
)

// Sign-in methods recorded on a user.
const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
	ProviderGitHub      = "github"
	ProviderFirebase    = "firebase"
)

// User is a storefront account. Email is unique and stored lower-cased.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Image        string
	Role         string
	Providers    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasProvider reports whether the user has signed in with provider before.
func (u User) HasProvider(provider string) bool {
	return slices.Contains(u.Providers, provider)
}

// Review is a customer testimonial shown in the carousel.
type Review struct {
	ID        string
	UserID    string
	Name      string
	Comment   string
	Rating    int
	CreatedAt time.Time
}

// Review rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)
