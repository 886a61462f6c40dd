package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/cart"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/di"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/handlers"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/payments"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/auth"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/config"
	pfirestore "github.com/PastMilk78/escencias-robjans-sub000/internal/platform/firestore"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/idempotency"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/jobs"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/observability"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/ratelimit"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/secrets"
	platformstorage "github.com/PastMilk78/escencias-robjans-sub000/internal/platform/storage"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/repositories"
	firestoreRepo "github.com/PastMilk78/escencias-robjans-sub000/internal/repositories/firestore"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	level, _ := config.Lookup("LOG_LEVEL")
	baseLogger, err := observability.NewLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("storefront")

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets("Session.SigningKey"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.Names()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	metrics := observability.NewMetrics("storefront")

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	userRepo, err := firestoreRepo.NewUserRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise user repository", zap.Error(err))
	}
	reviewRepo, err := firestoreRepo.NewReviewRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise review repository", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Cart.Store == config.CartStoreRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cart.RedisAddr,
			Password: cfg.Cart.RedisPassword,
			DB:       cfg.Cart.RedisDB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	healthRepo, err := newHealthRepository(firestoreProvider, redisClient)
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}

	var images services.ImageUploader
	if bucket := strings.TrimSpace(cfg.Storage.ImagesBucket); bucket != "" {
		storageClient, err := gcs.NewClient(ctx)
		if err != nil {
			logger.Fatal("failed to initialise storage client", zap.Error(err))
		}
		defer func() {
			if err := storageClient.Close(); err != nil {
				logger.Warn("storage close error", zap.Error(err))
			}
		}()
		writer, err := platformstorage.NewGCSWriter(storageClient)
		if err != nil {
			logger.Fatal("failed to initialise storage writer", zap.Error(err))
		}
		uploader, err := platformstorage.NewImageUploader(writer, bucket, cfg.Storage.PublicBaseURL)
		if err != nil {
			logger.Fatal("failed to initialise image uploader", zap.Error(err))
		}
		images = uploader
	}

	var publisher payments.EventPublisher
	if topicID := strings.TrimSpace(cfg.PubSub.PaymentEventsTopic); topicID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		topic := pubsubClient.Topic(topicID)
		defer func() {
			topic.Stop()
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		pub, err := jobs.NewPubSubPaymentPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise payment publisher", zap.Error(err))
		}
		publisher = pub
	}

	gateway := payments.NewStripeGateway(payments.StripeConfig{
		SecretKey:         cfg.Stripe.SecretKey,
		Logger:            payments.StripeLogger(observability.EventLogger(logger.Named("stripe"))),
		ShippingCountries: []string{"MX"},
	})
	if !gateway.Configured() {
		logger.Warn("stripe secret key not set; checkout will answer 500")
	}

	container, err := di.NewContainer(di.Deps{
		Config: cfg,
		Registry: di.Registry{
			Products: productRepo,
			Users:    userRepo,
			Reviews:  reviewRepo,
			Health:   healthRepo,
		},
		Gateway:   gateway,
		Publisher: publisher,
		Images:    images,
		Metrics:   metrics,
		Logger:    logger,
		Build:     buildInfoFromEnv(cfg, startedAt),
	})
	if err != nil {
		logger.Fatal("failed to initialise container", zap.Error(err))
	}
	svc, err := container.Services(ctx)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}

	sessions, err := auth.NewSessions(cfg.Session)
	if err != nil {
		logger.Fatal("failed to initialise sessions", zap.Error(err))
	}
	authenticator := auth.NewSessionAuthenticator(sessions)

	cartStore, replayStore, err := newCartStores(cfg, redisClient)
	if err != nil {
		logger.Fatal("failed to initialise cart store", zap.Error(err))
	}

	oauth := auth.NewOAuth(cfg.OAuth, cfg.Server.PublicURL,
		auth.NewOAuthCookieStore(cfg.Session.SigningKey, cfg.Session.CookieSecure))
	var social handlers.SocialLogin
	if len(oauth.Providers()) > 0 {
		social = oauth
	}

	var firebase handlers.FirebaseTokenVerifier
	if cfg.Firebase.ProjectID != "" {
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			logger.Warn("firebase sign-in disabled", zap.Error(err))
		} else {
			firebase = verifier
		}
	}

	loginLimiter := ratelimit.PerMinute(cfg.RateLimits.LoginPerMinute, cfg.RateLimits.LoginBurst)

	productHandlers := handlers.NewProductHandlers(svc.Catalog)
	adminHandlers := handlers.NewAdminProductHandlers(authenticator, svc.Catalog)
	reviewHandlers := handlers.NewReviewHandlers(authenticator, svc.Reviews)
	cartHandlers := handlers.NewCartHandlers(cartStore, svc.Cart)
	checkoutHandlers := handlers.NewCheckoutHandlers(authenticator, cartStore, svc.Checkout,
		handlers.WithReplayGuard(idempotency.Middleware(replayStore)))
	webhookHandlers := handlers.NewWebhookHandlers(svc.Payments)
	diagnosticsHandlers := handlers.NewDiagnosticsHandlers(svc.System)
	authHandlers := handlers.NewAuthHandlers(handlers.AuthHandlersDeps{
		Users:         svc.Users,
		Sessions:      sessions,
		Authn:         authenticator,
		Social:        social,
		Firebase:      firebase,
		LoginLimiter:  loginLimiter.Middleware,
		AfterLoginURL: cfg.Server.PublicURL + "/",
	})

	projectID := cfg.Firestore.ProjectID
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
		metrics.Middleware,
		chimw.Timeout(cfg.Server.RequestTimeout),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(svc.System)),
		handlers.WithMetricsHandler(metrics.Handler()),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithReviewRoutes(reviewHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithAuthRoutes(authHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithDiagnosticsRoutes(diagnosticsHandlers.Routes),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("escencias robjans storefront listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	project, _ := config.Lookup("SECRETS_PROJECT_ID")
	if project == "" {
		project, _ = config.Lookup("FIREBASE_PROJECT_ID")
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
	}
	if path, _ := config.Lookup("SECRETS_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if credentials, _ := config.Lookup("FIREBASE_CREDENTIALS_FILE"); credentials != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func newHealthRepository(provider *pfirestore.Provider, redisClient *redis.Client) (repositories.HealthRepository, error) {
	checks := []repositories.DependencyCheck{{
		Name:    services.DatabaseCheckName,
		Timeout: 1500 * time.Millisecond,
		Check: func(ctx context.Context) error {
			return provider.Ping(ctx, "products")
		},
	}}
	if redisClient != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "redis",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	return repositories.NewDependencyHealthRepository(checks)
}

// newCartStores picks the browser cart backend and the store that replays
// checkout responses. Both share Redis when it is configured.
func newCartStores(cfg config.Config, redisClient *redis.Client) (cart.Store, idempotency.Store, error) {
	if redisClient != nil {
		carts, err := cart.NewRedisStore(redisClient, cfg.Cart.CookieName, cfg.Cart.TTL, cfg.Session.CookieSecure)
		if err != nil {
			return nil, nil, err
		}
		replays, err := idempotency.NewRedisStore(redisClient)
		if err != nil {
			return nil, nil, err
		}
		return carts, replays, nil
	}
	carts, err := cart.NewCookieStore(cfg.Cart.CookieName, cfg.Cart.CookieKey, cfg.Cart.TTL, cfg.Session.CookieSecure)
	if err != nil {
		return nil, nil, err
	}
	return carts, idempotency.NewMemoryStore(), nil
}

func buildInfoFromEnv(cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("STORE_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("STORE_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Environment,
		StartedAt:   started,
	}
}

