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

	"github.com/HammerMeetNail/memeboard/internal/config"
	"github.com/HammerMeetNail/memeboard/internal/database"
	"github.com/HammerMeetNail/memeboard/internal/handlers"
	"github.com/HammerMeetNail/memeboard/internal/logging"
	"github.com/HammerMeetNail/memeboard/internal/middleware"
	"github.com/HammerMeetNail/memeboard/internal/models"
	"github.com/HammerMeetNail/memeboard/internal/services"
	"github.com/HammerMeetNail/memeboard/internal/storage"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
		logger.Debug("Debug logging enabled", map[string]interface{}{"env": cfg.Server.Environment})
	}

	logger.Info("Starting memeboard server...")
	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.close()

	logger.Info("Running database migrations...", map[string]interface{}{"driver": db.driver})
	if err := migrate(cfg.Database); err != nil {
		return err
	}
	logger.Info("Migrations completed")

	store, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	codec := services.NewCodec(cfg.Auth.TicketSecret, cfg.Auth.TicketTTL)
	authService := services.NewAuthService(codec, cfg.Auth.SitePassword)
	admissionService := services.NewAdmissionService(store, nil)
	reactionService := services.NewReactionService(db.conn)
	assetService := services.NewAssetService(db.conn, store, admissionService, reactionService, cfg.Auth.MasterPassword)
	statsService := services.NewStatsService(db.conn, assetService)

	// Redis is optional; without it counts are always read from the database.
	var redisHealth handlers.HealthChecker
	if cfg.Redis.Enabled() {
		logger.Info("Connecting to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
		redisDB, err := database.NewRedisDB(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = redisDB.Close() }()
		reactionService.SetCountCache(services.NewCountCache(services.NewRedisAdapter(redisDB.Client), cfg.Redis.CountTTL))
		redisHealth = redisDB
		logger.Info("Connected to Redis")
	}

	pages, err := handlers.NewPageHandler(cfg.Server.TemplatesDir)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	pages.SetPublicURL(cfg.Server.PublicURL)

	handler := newRouter(cfg, routerDeps{
		auth:      authService,
		assets:    assetService,
		reactions: reactionService,
		stats:     statsService,
		pages:     pages,
		health:    handlers.NewHealthHandler(db.health, redisHealth, store),
		logger:    logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Uploads from slow connections need more room than page renders.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{"addr": addr})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

// openedDB bundles a backend connection with what the rest of main needs
// from it.
type openedDB struct {
	driver string
	conn   services.DB
	health handlers.HealthChecker
	close  func()
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *logging.Logger) (*openedDB, error) {
	switch cfg.Driver() {
	case database.DriverPostgres:
		logger.Info("Connecting to PostgreSQL")
		pg, err := database.NewPostgresDB(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		logger.Info("Connected to PostgreSQL")
		return &openedDB{driver: database.DriverPostgres, conn: services.NewPoolAdapter(pg.Pool), health: pg, close: pg.Close}, nil
	default:
		path := cfg.SQLitePath()
		logger.Info("Opening SQLite database", map[string]interface{}{"path": path})
		lite, err := database.NewSQLiteDB(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return &openedDB{driver: database.DriverSQLite, conn: services.NewSQLAdapter(lite.DB), health: lite, close: lite.Close}, nil
	}
}

// migrationURL is the URL golang-migrate expects for the configured backend.
func migrationURL(cfg config.DatabaseConfig) string {
	if cfg.Driver() == database.DriverPostgres {
		return cfg.URL
	}
	return database.SQLiteMigrationURL(cfg.SQLitePath())
}

func migrate(cfg config.DatabaseConfig) error {
	migrator, err := database.NewMigrator(migrationURL(cfg), cfg.Driver())
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	return migrator.Close()
}

func buildStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Type == "s3" {
		return storage.NewS3Store(ctx, cfg.S3)
	}
	return storage.NewFilesystemStore(cfg.AssetRoot, "/assets")
}

type routerDeps struct {
	auth      services.AuthServiceInterface
	assets    services.AssetServiceInterface
	reactions services.ReactionServiceInterface
	stats     services.StatsServiceInterface
	pages     *handlers.PageHandler
	health    *handlers.HealthHandler
	logger    *logging.Logger
}

func newRouter(cfg *config.Config, d routerDeps) http.Handler {
	authHandler := handlers.NewAuthHandler(d.auth, d.pages, cfg.Auth.TicketTTL, cfg.Server.Secure)
	assetHandler := handlers.NewAssetHandler(d.assets, d.pages, cfg.Server.MaxUploadBytes)
	reactionHandler := handlers.NewReactionHandler(d.reactions, d.pages)
	boardHandler := handlers.NewBoardHandler(d.stats, d.assets, d.pages)

	requireIdentity := middleware.RequireIdentity

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", d.health.Health)
	mux.HandleFunc("GET /ready", d.health.Ready)
	mux.HandleFunc("GET /live", d.health.Live)

	mux.HandleFunc("GET /login", authHandler.LoginPage)
	mux.HandleFunc("POST /login", authHandler.Login)
	mux.HandleFunc("POST /logout", authHandler.Logout)

	mux.Handle("GET /{$}", requireIdentity(http.HandlerFunc(boardHandler.Index)))

	// Areas are registered by name so they do not shadow /assets/ and /static/.
	for _, area := range models.Areas {
		mux.Handle("GET /"+string(area), requireIdentity(assetHandler.List(area)))
		mux.Handle("GET /"+string(area)+"/{id}", requireIdentity(assetHandler.Detail(area)))
		mux.Handle("POST /"+string(area)+"/{id}/delete", requireIdentity(assetHandler.Delete(area)))
	}
	mux.Handle("GET /upload/{area}", requireIdentity(http.HandlerFunc(assetHandler.UploadForm)))
	mux.Handle("POST /upload/{area}", requireIdentity(http.HandlerFunc(assetHandler.Upload)))
	mux.Handle("POST /memes/{id}/react", requireIdentity(http.HandlerFunc(reactionHandler.React)))

	if cfg.Storage.Type != "s3" {
		mux.Handle("GET /assets/", handlers.AssetFileServer(cfg.Storage.AssetRoot))
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))

	identity := middleware.NewIdentityMiddleware(d.auth)
	securityHeaders := middleware.NewSecurityHeaders(cfg.Server.Secure)
	cacheControl := middleware.NewCacheControl()
	requestLogger := middleware.NewRequestLogger(d.logger)

	// Outermost last.
	var handler http.Handler = mux
	handler = identity.Authenticate(handler)
	handler = cacheControl.Apply(handler)
	handler = securityHeaders.Apply(handler)
	handler = requestLogger.Apply(handler)
	return handler
}
