package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barakahAPI/handlers"
	"barakahAPI/internal/config"
	"barakahAPI/internal/identity"
	"barakahAPI/internal/leaderboard"
	"barakahAPI/internal/ledger"
	"barakahAPI/internal/logger"
	"barakahAPI/internal/metrics"
	"barakahAPI/internal/session"
	"barakahAPI/internal/store"
	"barakahAPI/internal/store/memory"
	"barakahAPI/internal/store/postgres"
	"barakahAPI/internal/workers"
	"barakahAPI/middleware"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	store   string
	migrate bool
	seed    bool
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(func(c *config.Config) {
				if opts.store != "" {
					c.Store = opts.store
				}
			})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.store, "store", "", "store backend (postgres|memory), overrides STORE")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "apply pending migrations before serving (postgres)")
	cmd.Flags().BoolVar(&opts.seed, "seed", true, "load the demo catalog (memory)")

	return cmd
}

// app is everything serve wires together.
type app struct {
	store    store.Store
	ledger   *ledger.Service
	sessions *session.Registry
	handler  http.Handler
	limiter  *middleware.RateLimiter
	close    func()
}

func openStore(ctx context.Context, cfg *config.Config, opts *serveOptions) (store.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		mem := memory.New(memory.WithStoreReconciliation(cfg.ReconcileInStore))
		if opts.seed {
			items := seedDemo(mem, cfg.Calendar)
			logger.Info().Int("items", len(items)).Msg("memory store seeded with demo catalog")
		}
		return mem, func() {}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if opts.migrate {
		if _, err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	s, err := postgres.New(ctx, pool, cfg.ReconcileInStore)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Bool("reconcile_in_store", cfg.ReconcileInStore).Msg("connected to PostgreSQL")
	return s, func() {
		logger.Info().Msg("Closing database connection pool...")
		pool.Close()
	}, nil
}

func verifier(cfg *config.Config) (middleware.Verifier, error) {
	if cfg.DevJWTSecret != "" {
		logger.Warn().Msg("accepting HS256 development tokens, do not use in production")
		return middleware.HS256Verifier([]byte(cfg.DevJWTSecret)), nil
	}
	if cfg.ClerkSecretKey == "" {
		return nil, errors.New("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(cfg.ClerkSecretKey)
	logger.Info().Msg("Clerk initialized successfully")
	return middleware.ClerkVerifier, nil
}

func buildApp(ctx context.Context, cfg *config.Config, opts *serveOptions) (*app, error) {
	verify, err := verifier(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.ClerkWebhookSecret == "" && !cfg.IsDevelopment() {
		return nil, errors.New("CLERK_WEBHOOK_SECRET environment variable is not set")
	}

	s, closeStore, err := openStore(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	middleware.InitPrometheus(reg)

	l := ledger.NewService(s,
		ledger.WithRecorder(metrics.NewLedger(reg)),
		ledger.WithRetry(cfg.MaxStoreAttempts, ledger.DefaultRetryBackoff),
		ledger.WithCalendar(cfg.Calendar),
	)
	sessions := session.NewRegistry(l)
	api := handlers.NewAPI(handlers.Deps{
		Store:       s,
		Ledger:      l,
		Leaderboard: leaderboard.NewService(s),
		Sessions:    sessions,
		Users:       identity.NewClerkProvider(s),
		Calendar:    cfg.Calendar,
		DefaultTZ:   cfg.DefaultTimezone,
	})
	webhookHandler, err := handlers.NewWebhookHandler(s, sessions, cfg.ClerkWebhookSecret)
	if err != nil {
		closeStore()
		return nil, err
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)

	standardRouter := r.PathPrefix("/").Subrouter()
	standardRouter.Use(limiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuth(cfg.MetricsUser, cfg.MetricsPass)(
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	))
	standardRouter.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	api.Register(standardRouter, middleware.RequireAuth(verify), middleware.OptionalAuth(verify))

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", handlers.TimezoneHeader}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	return &app{
		store:    s,
		ledger:   l,
		sessions: sessions,
		handler:  corsHandler(r),
		limiter:  limiter,
		close:    closeStore,
	}, nil
}

func runServe(ctx context.Context, cfg *config.Config, opts *serveOptions) error {
	a, err := buildApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer a.close()

	go a.limiter.Cleanup(ctx)
	workerDone := workers.StartReconcileWorker(ctx, a.ledger, cfg.ReconcileInterval)
	defer func() { <-workerDone }()
	sweeperDone := workers.StartSessionSweeper(ctx, a.sessions, cfg.SessionIdleTimeout)
	defer func() { <-sweeperDone }()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("store", cfg.Store).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("error starting server: %w", err)
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}
	logger.Info().Msg("Server shutdown complete")
	return nil
}
