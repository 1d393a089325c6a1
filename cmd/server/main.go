package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tezgah/backend/internal/cache"
	"tezgah/backend/internal/config"
	"tezgah/backend/internal/currency"
	"tezgah/backend/internal/httpapi"
	"tezgah/backend/internal/logger"
	"tezgah/backend/internal/service"
	"tezgah/backend/internal/storage"
	"tezgah/backend/internal/store"
	"tezgah/backend/internal/store/memory"
	pgstore "tezgah/backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		if err := pgstore.Migrate(cfg.DatabaseURL, log); err != nil {
			log.Fatal("database migration failed", zap.Error(err))
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info("repository ready", zap.String("backend", "postgres"))
	} else {
		seeded, err := memory.NewSeeded(log)
		if err != nil {
			log.Fatal("seed in-memory repository", zap.Error(err))
		}
		repo = seeded
		log.Info("repository ready", zap.String("backend", "memory"))
	}

	cacheStore := cache.RateCache(cache.NoopRateCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisRateCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, using noop rate cache", zap.Error(err))
		} else {
			cacheStore = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("rate cache ready", zap.String("backend", "redis"))
		}
	}

	var provider currency.Provider
	if cfg.FXAPIKey != "" {
		provider = currency.NewHTTPProvider(cfg.FXBaseURL, cfg.FXAPIKey, &http.Client{Timeout: 5 * time.Second})
	} else {
		log.Warn("FX_API_KEY not set; conversions run without a live rate")
	}
	rates := currency.NewRates(provider, cacheStore, cfg.FXCacheTTL(), cfg.FXFetchRetries, log)

	var objects storage.ObjectStorage = storage.NewStub()
	if cfg.StorageEnabled() {
		s3, err := storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:     cfg.StorageEndpoint,
			Region:       cfg.StorageRegion,
			Bucket:       cfg.StorageBucket,
			AccessKey:    cfg.StorageAccessKey,
			SecretKey:    cfg.StorageSecretKey,
			UsePathStyle: cfg.StorageUsePathStyle,
			PresignTTL:   cfg.PresignTTL(),
		}, log)
		if err != nil {
			log.Fatal("object storage unavailable", zap.Error(err))
		}
		objects = s3
		log.Info("attachment storage ready", zap.String("bucket", cfg.StorageBucket))
	}

	svc := service.New(repo, service.Options{
		Rates:              rates,
		Storage:            objects,
		Logger:             log,
		AllowNegativeStock: cfg.AllowNegativeStock,
		ReportMonths:       cfg.ReportMonths,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo, log)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, log)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("tezgah backend listening", zap.String("addr", cfg.Address()), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error("close error", zap.Error(err))
		}
	}

	log.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AppEnv == "production" && cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must name the frontend origin in production")
	}
	return nil
}
