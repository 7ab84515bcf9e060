package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/readaloud/internal/api"
	"github.com/bobarin/readaloud/internal/config"
	"github.com/bobarin/readaloud/internal/db"
	"github.com/bobarin/readaloud/internal/logger"
	"github.com/bobarin/readaloud/internal/narrator"
	"github.com/bobarin/readaloud/internal/nonce"
	"github.com/bobarin/readaloud/internal/storage"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Infof("Starting readaloud API...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Infof("Connected to database")

	seed, err := cfg.SeedSettings()
	if err != nil {
		logger.Fatalf("Failed to load seed settings: %v", err)
	}
	if created, err := database.SeedSettings(ctx, seed); err != nil {
		logger.Fatalf("Failed to seed settings: %v", err)
	} else if created {
		logger.Infof("Seeded default audio settings")
	}

	// Connect to Redis
	nonces, err := nonce.New(cfg.RedisURL, cfg.NonceTTL)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer nonces.Close()
	logger.Infof("Connected to Redis (nonce ttl %s)", cfg.NonceTTL)

	// Initialize storage
	var store storage.Store
	routerCfg := api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	}
	switch cfg.StorageBackend {
	case "supabase":
		store = storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket, "")
		logger.Infof("Initialized Supabase storage (bucket: %s)", cfg.SupabaseStorageBucket)
	default:
		store = storage.NewLocalStore(cfg.AudioDir, cfg.PublicBaseURL+"/audio")
		routerCfg.AudioDir = cfg.AudioDir
		logger.Infof("Initialized local storage at %s", cfg.AudioDir)
	}

	handler := api.NewHandler(narrator.New(database, database, store), database, nonces, cfg.PublicBaseURL)
	router := api.NewRouter(handler, routerCfg)

	if cfg.BackendAPIKey != "" {
		logger.Infof("API key authentication enabled for admin routes")
	} else {
		logger.Warnf("No BACKEND_API_KEY set, admin routes are unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("Server error: %v", err)
		return
	}

	logger.Infof("Server exited")
}
