package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/config"
)

const defaultVerifyTimeout = 5 * time.Second

// FirebaseProfile is the subset of a verified Firebase ID token used to link accounts.
type FirebaseProfile struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// FirebaseVerifier verifies Firebase ID tokens with the Admin SDK.
type FirebaseVerifier struct {
	client  *firebaseauth.Client
	timeout time.Duration
}

// NewFirebaseVerifier initialises the Admin SDK for cfg.ProjectID.
func NewFirebaseVerifier(ctx context.Context, cfg config.FirebaseConfig) (*FirebaseVerifier, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("firebase project id is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client, timeout: defaultVerifyTimeout}, nil
}

// VerifyFirebaseToken checks idToken and extracts the profile claims.
func (v *FirebaseVerifier) VerifyFirebaseToken(ctx context.Context, idToken string) (FirebaseProfile, error) {
	if v == nil || v.client == nil {
		return FirebaseProfile{}, errors.New("firebase verifier not initialised")
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		if firebaseauth.IsIDTokenExpired(err) {
			return FirebaseProfile{}, ErrTokenExpired
		}
		return FirebaseProfile{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return profileFromClaims(token.UID, token.Claims), nil
}

func profileFromClaims(uid string, claims map[string]any) FirebaseProfile {
	str := func(key string) string {
		s, _ := claims[key].(string)
		return strings.TrimSpace(s)
	}
	verified, _ := claims["email_verified"].(bool)
	return FirebaseProfile{
		UID:           uid,
		Email:         strings.ToLower(str("email")),
		EmailVerified: verified,
		Name:          str("name"),
		Picture:       str("picture"),
	}
}
