package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/config"
	db "github.com/fonsecaaso/linkkeep/go-server/internal/database"
	"github.com/fonsecaaso/linkkeep/go-server/internal/keygen"
	"github.com/fonsecaaso/linkkeep/go-server/internal/metrics"
	"github.com/fonsecaaso/linkkeep/go-server/internal/middleware"
	"github.com/fonsecaaso/linkkeep/go-server/internal/observability"
	"github.com/fonsecaaso/linkkeep/go-server/internal/repository"
	route "github.com/fonsecaaso/linkkeep/go-server/internal/routes"
	"github.com/fonsecaaso/linkkeep/go-server/internal/security"
	"github.com/fonsecaaso/linkkeep/go-server/internal/service"
	"github.com/fonsecaaso/linkkeep/go-server/internal/token"
)

const (
	shutdownTimeout = 15 * time.Second
	// Sizing target for the startup collision estimate.
	expectedURLs = 1_000_000
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "linkkeep: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	obs, err := observability.SetupObservability(ctx, cfg)
	if err != nil {
		return err
	}
	logger := obs.Logger
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "observability shutdown: %v\n", err)
		}
	}()

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	pgClient, err := db.NewPostgresClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("postgres failed to initialize: %w", err)
	}
	defer pgClient.Close()
	logger.Info("postgres connection established")

	redisClient, err := db.NewRedisClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("redis failed to initialize: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info("redis connection established")
	}

	tokens, err := token.NewService(token.StaticSecret(cfg.SecretKey), cfg.Algorithm, cfg.AccessTokenTTL())
	if err != nil {
		return fmt.Errorf("token service failed to initialize: %w", err)
	}

	keys := keygen.New(
		keygen.WithShortLength(cfg.ShortKeyLength),
		keygen.WithSuffixLength(cfg.SecretSuffixLength),
		keygen.WithMaxAttempts(cfg.KeygenMaxAttempts),
		keygen.WithReserved(route.ReservedKeys...),
	)
	logger.Info("key generator configured",
		zap.Int("short_key_length", keys.ShortLength()),
		zap.Int("secret_suffix_length", keys.SuffixLength()),
		zap.Float64("collision_probability_1m", keygen.CollisionProbability(expectedURLs, keys.ShortLength())),
		zap.Int("length_for_1m_at_1e-9", keygen.LengthFor(expectedURLs, 1e-9)),
	)

	userRepo := repository.NewUserRepository(pgClient, cfg.DBTimeout)
	urlRepo := repository.NewPostgresURLRepository(pgClient, cfg.DBTimeout)

	authService := service.NewAuthService(userRepo, security.NewBcryptHasher(cfg.BcryptCost), tokens)
	urlService := service.NewURLService(urlRepo, keys, service.WithHideExistence(cfg.HideURLExistence))

	limiter := route.NewAuthLimiter(redisClient, cfg.RateLimitRequests, cfg.RateLimitWindow)
	if memory, ok := limiter.(*middleware.RateLimiter); ok {
		defer memory.Stop()
	}

	metrics.StartSystemMetricsCollection(ctx, 15*time.Second)
	metrics.StartPoolStatsCollection(ctx, pgClient, 15*time.Second)

	r := route.SetupRouter(route.Dependencies{
		DB:             pgClient,
		AuthService:    authService,
		URLService:     urlService,
		MetricsHandler: obs.PrometheusHandler,
		AuthLimiter:    limiter,
		PublicBaseURL:  cfg.PublicBaseURL,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
