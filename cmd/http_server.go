package cmd

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

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/auth"
	authPostgres "github.com/frahmantamala/fitness-content/internal/auth/postgres"
	"github.com/frahmantamala/fitness-content/internal/catalog"
	catalogPostgres "github.com/frahmantamala/fitness-content/internal/catalog/postgres"
	"github.com/frahmantamala/fitness-content/internal/core/events"
	"github.com/frahmantamala/fitness-content/internal/directory"
	directoryPostgres "github.com/frahmantamala/fitness-content/internal/directory/postgres"
	"github.com/frahmantamala/fitness-content/internal/locale"
	"github.com/frahmantamala/fitness-content/internal/media"
	mediaPostgres "github.com/frahmantamala/fitness-content/internal/media/postgres"
	"github.com/frahmantamala/fitness-content/internal/rbac"
	rbacPostgres "github.com/frahmantamala/fitness-content/internal/rbac/postgres"
	"github.com/frahmantamala/fitness-content/internal/translation"
	translationPostgres "github.com/frahmantamala/fitness-content/internal/translation/postgres"
	"github.com/frahmantamala/fitness-content/internal/transport/rest"
	"github.com/frahmantamala/fitness-content/internal/transport/swagger"
	"github.com/frahmantamala/fitness-content/internal/user"
	userPostgres "github.com/frahmantamala/fitness-content/internal/user/postgres"
	"github.com/frahmantamala/fitness-content/pkg/logger"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Redis  *redis.Client
	Bus    *events.EventBus
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer sentry.Flush(2 * time.Second)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "base_url", deps.Config.Server.BaseURL)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		// let in flight async subscribers finish before the pool goes away
		deps.Bus.Wait()
		if deps.Redis != nil {
			_ = deps.Redis.Close()
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Setup(logger.Options{
		Env:       config.Env,
		Level:     config.Observability.Logging.Level,
		Format:    config.Observability.Logging.Format,
		SentryDSN: config.Observability.SentryDSN,
	})
	lg := logger.L()
	ctx := context.Background()

	gormDB, err := initGorm(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db, err := initSQLX(gormDB, config.Database.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	rdb, err := initRedis(ctx, config.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	locales, err := locale.NewResolver(config.Locale.Default, config.Locale.Supported)
	if err != nil {
		return nil, fmt.Errorf("failed to build locale resolver: %w", err)
	}

	bus := events.NewEventBus(lg)
	cache := auth.NewTieredCache(config.Cache.Size, config.Cache.TTL, rdb, lg)
	cache.InvalidateOn(bus)
	bus.Subscribe(events.EventTypeMediaDeleteFailed, func(ctx context.Context, event events.Event) error {
		lg.WarnContext(ctx, "media file left behind, the sweeper will retry", "payload", event.Payload())
		return nil
	})

	gate := auth.NewGate(auth.NewPermissionGraph(db, cache, lg), lg)

	storage, err := media.NewStorage(ctx, config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media storage: %w", err)
	}
	mediaSvc := media.NewService(mediaPostgres.NewMediaRepository(gormDB), storage, bus, media.ConfigFrom(config.Media), lg)
	mediaHandler := media.NewHandler(mediaSvc, gate, lg)

	defs := catalog.Definitions()
	registry := catalog.NewRegistry(defs, catalogPostgres.Stores(gormDB))
	translations := translationPostgres.NewTranslationRepository(gormDB)
	translationSvc := translation.NewService(translations, registry, config.Locale.Supported, lg)
	catalogSvc := catalog.NewService(registry, catalogPostgres.NewPivotRepository(gormDB), translation.NewOverlay(translations), translationSvc, mediaSvc, lg)
	directorySvc := directory.NewService(directoryPostgres.NewDirectoryRepository(gormDB), mediaSvc, lg)

	catalog.RegisterPolicies(gate, defs)
	translation.RegisterPolicies(gate)
	user.RegisterPolicies(gate)
	rbac.RegisterPolicies(gate)
	directory.RegisterPolicies(gate)

	tokens := auth.NewJWTTokenGenerator(
		config.Security.JWTAccessSecret,
		config.Security.JWTRefreshSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authSvc := auth.NewService(authPostgres.NewRepository(gormDB), tokens, config.Security.BCryptCost, lg)
	if rdb != nil {
		authSvc.WithRevocations(auth.NewRedisRevocations(rdb))
	}

	opts := rest.RouterOptions{
		AllowedOrigins: config.Server.AllowedOrigins,
		Locales:        locales,
	}
	if config.Observability.Metrics.Enabled {
		opts.MetricsPath = config.Observability.Metrics.Path
	}
	if path := config.Server.OpenAPIPath; path != "" {
		if _, err := swagger.Load(ctx, path); err != nil {
			lg.Warn("api docs disabled", "error", err)
		} else {
			opts.OpenAPIPath = path
		}
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Health:        rest.NewHealthHandler(db, rdb),
		Auth:          auth.NewHandler(authSvc, lg),
		Authorization: auth.NewRBACAuthorization(gate, lg),
		Catalog:       catalog.NewHandler(catalogSvc, gate, mediaHandler, lg),
		Translations:  translation.NewHandler(translationSvc, gate, lg),
		Media:         mediaHandler,
		Users:         user.NewHandler(user.NewService(userPostgres.NewUserRepository(gormDB), lg), gate, lg),
		RBAC:          rbac.NewHandler(rbac.NewService(rbacPostgres.NewRepository(gormDB), bus, lg), gate, lg),
		Directories:   directory.NewHandler(directorySvc, gate, mediaHandler, lg),
	}, opts, lg)

	return &Dependencies{
		Config: config,
		DB:     db,
		Redis:  rdb,
		Bus:    bus,
		Router: router,
		Logger: lg,
	}, nil
}
