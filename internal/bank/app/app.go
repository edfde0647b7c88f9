package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/audit"
	httpapi "github.com/MuadBenMusa/sparkcore-backend/internal/bank/http"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/service"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store/drivers/postgres"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store/drivers/sqlite"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/cryptox"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/jwtx"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/ratelimit"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/revocation"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application wires the bank service together. Every dependency is built
// here and handed down explicitly.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db    store.Store
	redis redis.UniversalClient

	// Services
	sessionService      *service.SessionService
	authService         *service.AuthService
	ledgerService       *service.LedgerService
	auditLogService     *service.AuditLogService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService
	loginLimiter        ratelimit.Limiter

	// Audit pipeline
	auditPublisher *audit.AsyncPublisher
	auditConsumer  *audit.Consumer
	started        bool

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized. Nothing
// runs until Start or Run is called.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "bank-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initRedis(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.redis.Close()
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the HTTP handler, for embedding and tests.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Start seeds the admin user and launches the background workers. It does
// not serve HTTP.
func (app *Application) Start(ctx context.Context) error {
	if _, err := app.bootstrapService.EnsureAdmin(ctx, app.cfg.AdminUsername, app.cfg.AdminPassword); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	if err := app.auditConsumer.Start(ctx); err != nil {
		return fmt.Errorf("start audit consumer: %w", err)
	}
	app.housekeepingService.Start()
	app.started = true
	return nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	if err := app.Start(context.Background()); err != nil {
		return err
	}

	app.logger.Info("bank service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown stops accepting requests, drains the audit queue and closes the
// connections.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down bank service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", slogx.Err(err))
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", slogx.Err(err))
		}
	}

	// Queued events reach the stream before the consumer goes away.
	app.auditPublisher.Close()
	if app.started {
		app.housekeepingService.Stop()
		app.auditConsumer.Stop()
	}

	var errs []error
	if err := app.redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close redis: %w", err))
	}
	if err := app.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		app.logger.Error("shutdown incomplete", slogx.Err(err))
		return err
	}

	app.logger.Info("bank service stopped")
	return nil
}

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case "postgres":
		db, err = postgres.NewStore(app.cfg.DatabaseURL)
	default:
		db, err = sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

func (app *Application) initRedis() error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("failed to connect to redis at %s: %w", app.cfg.RedisAddr, err)
	}

	app.redis = rdb
	return nil
}

// initServices builds the services in dependency order
func (app *Application) initServices() error {
	key, err := app.cfg.JWTKey()
	if err != nil {
		return err
	}
	signer, err := jwtx.NewHS256(key, app.cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("jwt signer: %w", err)
	}

	app.auditPublisher = audit.NewAsyncPublisher(
		audit.NewRedisStream(app.redis, app.cfg.AuditStream),
		app.logger,
		app.cfg.AuditQueueSize,
		app.cfg.AuditWorkers,
	)

	app.sessionService = &service.SessionService{
		Signer:      signer,
		Verifier:    signer,
		Revocations: revocation.NewRedis(app.redis, ""),
		Store:       app.db,
		Issuer:      app.cfg.JWTIssuer,
		AccessTTL:   jwtx.DefaultAccessTokenTTL,
	}
	app.authService = &service.AuthService{
		Store:    app.db,
		Sessions: app.sessionService,
		RefreshTokens: &service.RefreshTokenService{
			Store: app.db,
			TTL:   jwtx.DefaultRefreshTokenTTL,
		},
		Audit: app.auditPublisher,
	}
	app.ledgerService = &service.LedgerService{
		Store:    app.db,
		Audit:    app.auditPublisher,
		BankCode: app.cfg.BankCode,
	}
	app.auditLogService = &service.AuditLogService{Store: app.db}
	app.bootstrapService = &service.BootstrapService{Store: app.db}

	app.auditConsumer = audit.NewConsumer(app.redis, app.auditLogService, audit.ConsumerConfig{
		Stream:   app.cfg.AuditStream,
		Group:    app.cfg.AuditGroup,
		Consumer: app.cfg.AuditConsumer,
	}, app.logger)

	app.housekeepingService, err = service.NewHousekeepingService(app.db, app.logger, app.cfg.HousekeepingSchedule)
	if err != nil {
		app.auditPublisher.Close()
		return err
	}

	limits := ratelimit.Config{Capacity: app.cfg.LoginRateCapacity, Window: app.cfg.LoginRateWindow}
	switch app.cfg.RateLimitBackend {
	case "memory":
		// Per process only; meant for single instance development setups.
		app.loginLimiter, err = ratelimit.NewLocal(limits)
	default:
		app.loginLimiter, err = ratelimit.NewRedis(app.redis, ratelimit.DefaultPrefix, limits)
	}
	if err != nil {
		app.auditPublisher.Close()
		return fmt.Errorf("login rate limiter: %w", err)
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.redis, app.logger)

	router.SessionService = app.sessionService
	router.AuthService = app.authService
	router.LedgerService = app.ledgerService
	router.AuditLogService = app.auditLogService
	router.LoginLimiter = app.loginLimiter
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
