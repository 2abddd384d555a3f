// Package main is the entry point for the QuillPress blog server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quillpress/internal/blog"
	"quillpress/internal/cache"
	"quillpress/internal/config"
	"quillpress/internal/database"
	"quillpress/internal/handlers"
	"quillpress/internal/media"
	"quillpress/internal/middleware"
	"quillpress/internal/router"
	"quillpress/internal/session"
	"quillpress/internal/storage"
	"quillpress/internal/store"
)

// objectStore is what the media pipeline and the admin endpoints need from
// file storage. storage.Client and storage.Local both provide it.
type objectStore interface {
	media.ObjectStore
	handlers.ObjectDeleter
}

func main() {
	// Load configuration from environment variables and .env.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: text in development, JSON elsewhere.
	var logger *slog.Logger
	if cfg.IsDev() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	slog.SetDefault(logger)

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"project_id", cfg.ProjectID,
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db, cfg.ProjectID); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (Redis-compatible cache + session store).
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// In non-development environments, mark cookies as Secure (HTTPS-only).
	secureCookies := !cfg.IsDev()
	sessionStore := session.NewStore(valkeyClient, secureCookies)

	// Initialize data stores.
	userStore := store.NewUserStore(db)
	postStore := store.NewPostStore(db)
	projectStore := store.NewProjectStore(db, cfg.ProjectID)
	mediaStore := store.NewMediaStore(db)
	cacheLogStore := store.NewCacheLogStore(db)

	if err := ensureEditor(userStore, cfg); err != nil {
		slog.Error("failed to create editor", "error", err)
		os.Exit(1)
	}

	// Media goes to S3-compatible storage when configured, local disk otherwise.
	var objects objectStore
	mediaDir := ""
	if cfg.UseS3() {
		client, err := storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicURL)
		if err != nil {
			slog.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
		objects = client
	} else {
		local, err := storage.NewLocal(cfg.MediaDir)
		if err != nil {
			slog.Error("failed to initialize local storage", "error", err)
			os.Exit(1)
		}
		slog.Info("local media storage", "dir", local.Root())
		objects = local
		mediaDir = local.Root()
	}

	processor := media.NewProcessor(objects, mediaStore, cfg.ProjectID)
	svc := blog.NewService(postStore, projectStore, processor)

	// Anonymous page cache. A typed nil must not reach the handlers.
	var pageCache handlers.PageCache
	if cfg.PageCacheTTL > 0 {
		pc := cache.NewPageCache(valkeyClient, cfg.PageCacheTTL)
		// Pages rendered by a previous release may no longer match.
		pc.InvalidateAll(context.Background())
		pageCache = pc
	} else {
		slog.Warn("page cache disabled")
	}

	commentLimiter := middleware.NewRateLimiter(cfg.CommentRateLimit, time.Minute)
	defer commentLimiter.Stop()

	// Create handler groups with their dependencies.
	blogHandlers := handlers.NewBlog(svc, cfg.ProjectID, pageCache, cacheLogStore, cfg.BaseURL)
	adminHandlers := handlers.NewAdmin(cfg.ProjectID, projectStore, mediaStore, userStore, cacheLogStore, objects, pageCache).
		WithEditorSessions(sessionStore)
	authHandlers := handlers.NewAuth(sessionStore, userStore)

	// Set up the Chi router with all middleware and routes.
	r := router.New(router.Options{
		ProjectID:      cfg.ProjectID,
		SecureCookies:  secureCookies,
		CommentLimiter: commentLimiter,
		MediaDir:       mediaDir,
	}, sessionStore, blogHandlers, adminHandlers, authHandlers)

	// Create the HTTP server with sensible timeouts. Uploads and posts with
	// embedded images can be large, so reads get more room than usual.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

// ensureEditor creates the configured editor account if it does not exist.
func ensureEditor(users *store.UserStore, cfg *config.Config) error {
	if cfg.EditorEmail == "" || cfg.EditorPassword == "" {
		return nil
	}
	existing, err := users.FindByEmail(cfg.EditorEmail)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	u, err := users.Create(cfg.EditorEmail, cfg.EditorPassword, "Editor", cfg.ProjectID)
	if err != nil {
		return err
	}
	slog.Info("editor created", "email", u.Email, "project_id", u.ProjectID)
	return nil
}
