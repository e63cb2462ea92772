package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/forecast-tournament/forecast/internal/app"
	"github.com/forecast-tournament/forecast/internal/auth"
	"github.com/forecast-tournament/forecast/internal/catalog"
	"github.com/forecast-tournament/forecast/internal/forecasts"
	"github.com/forecast-tournament/forecast/internal/observability"
	"github.com/forecast-tournament/forecast/internal/platform/cache"
	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/platform/otel"
	"github.com/forecast-tournament/forecast/internal/policy"
	"github.com/forecast-tournament/forecast/internal/props"
	"github.com/forecast-tournament/forecast/internal/shared"
	"github.com/forecast-tournament/forecast/internal/suggestions"
	"github.com/forecast-tournament/forecast/internal/users"
	"github.com/forecast-tournament/forecast/internal/views"
	"github.com/forecast-tournament/forecast/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	shutdownTracing, err := otel.Setup(ctx, otel.Options{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: "forecast",
	})
	if err != nil {
		logger.Warn("tracing disabled", slog.Any("error", err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flush traces", slog.Any("error", err))
		}
	}()

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, Role: cfg.PGRole})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	verifyPolicies(ctx, dbpool, logger)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	runner := db.NewPolicyContext(dbpool, db.WithLogger(logger), db.WithObserver(metrics))

	secure := cfg.IsProduction()
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	signer := auth.NewTokenSigner(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenTTL, secure)
	sessions := auth.NewSessionStore(redisClient, cfg.SessionTTL, secure)
	impersonation := auth.NewImpersonation(cfg.ImpersonationSecret, cfg.ImpersonationTTL, secure)

	authRepo := auth.NewRepository(runner)
	identities := auth.Deduplicate(authRepo)
	resolver := auth.NewResolver(identities, impersonation, logger,
		auth.TokenStrategy{Signer: signer},
		auth.SessionStrategy{Store: sessions},
	)
	authService := auth.NewService(authRepo, signer, sessions, cfg.AuthLoginMode, logger)
	authHandler := auth.NewHandler(logger, authService, resolver, identities, impersonation, csrfManager)

	usersService := users.NewService(runner, users.NewRepository, logger)
	catalogService := catalog.NewService(runner, catalog.NewRepository, logger)
	propsService := props.NewService(runner, props.NewRepository, logger)
	forecastsService := forecasts.NewService(runner, forecasts.NewRepository, logger)
	suggestionsService := suggestions.NewService(runner, suggestions.NewRepository, props.NewRepository, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Resolver:           resolver,
		CSRFManager:        csrfManager,
		AuthHandler:        authHandler,
		UsersHandler:       users.NewHandler(logger, usersService),
		CatalogHandler:     catalog.NewHandler(logger, catalogService),
		PropsHandler:       props.NewHandler(logger, propsService),
		ForecastsHandler:   forecasts.NewHandler(logger, forecastsService),
		SuggestionsHandler: suggestions.NewHandler(logger, suggestionsService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Pool:               dbpool,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("login_mode", cfg.AuthLoginMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}

// verifyPolicies logs drift between the declared policy set and the live
// catalog. Serving continues; forecastctl policy verify is the hard gate.
func verifyPolicies(ctx context.Context, q db.DBTX, logger *slog.Logger) {
	report, err := policy.Verify(ctx, policy.NewPGCatalog(q), policy.Schema(), views.Names()...)
	if err != nil {
		logger.Warn("policy verification skipped", slog.Any("error", err))
		return
	}
	for _, d := range report.Drifts {
		logger.Warn("policy drift", slog.String("drift", d.String()))
	}
}
