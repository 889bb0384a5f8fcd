package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"huddle/api/internal/app"
	"huddle/api/internal/avatar"
	"huddle/api/internal/cache"
	"huddle/api/internal/config"
	"huddle/api/internal/content"
	"huddle/api/internal/history"
	"huddle/api/internal/logging"
	"huddle/api/internal/search"
	"huddle/api/internal/store"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(cfg.LogLevel, os.Stdout)
	if err != nil {
		logger.Fatal().Err(err).Msg("config load failed")
	}
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.HistoryDir).Msg("failed to create history dir")
	}

	dataStore := store.NewPostgresStore(db, cfg.ShortIDScanLimit)

	var presigner avatar.Presigner
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioClient, err := avatar.NewMinio(avatar.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
			URLTTL:    cfg.AvatarURLTTL(),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("avatar storage setup failed")
		}
		presigner = minioClient
	} else {
		logger.Info().Msg("avatar storage not configured, user chips show initials")
	}
	var directory content.Directory = avatar.NewDirectory(dataStore, presigner, logger)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts, logger)
	go searchService.ReindexAll(ctx)

	deps := app.Dependencies{
		Store:   dataStore,
		History: history.New(cfg.HistoryDir),
		Search:  searchService,
		Logger:  logger,
	}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisClient, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisClient.Close()

		cached := cache.NewDirectory(directory, redisClient, cfg.CacheTTL(), logger)
		directory = cached
		deps.Tasks = cached
		deps.Renders = cache.NewRenderCache(redisClient, cfg.CacheTTL())
		logger.Info().Dur("ttl", cfg.CacheTTL()).Msg("lookup and render caches enabled")
	}
	deps.Parser = content.NewParser(directory, logger)

	service := app.New(deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("huddle api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
