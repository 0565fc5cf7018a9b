package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkwell/api/internal/ai"
	"inkwell/api/internal/app"
	"inkwell/api/internal/archive"
	"inkwell/api/internal/cache"
	"inkwell/api/internal/config"
	"inkwell/api/internal/email"
	"inkwell/api/internal/export"
	"inkwell/api/internal/search"
	"inkwell/api/internal/session"
	"inkwell/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		log.Fatalf("archive dir: %v", err)
	}

	postgresStore := store.NewPostgresStore(db)
	archiveService := archive.New(cfg.ArchiveDir)

	pgfts := search.NewPgFTS(db)
	var meili *search.Meili
	if cfg.MeiliURL != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
		defer meili.Close()
	}
	searchService := search.NewService(meili, pgfts)

	var service *app.Service
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Printf("redis unavailable, refresh sessions fall back to postgres: %v", err)
			service = app.New(cfg, postgresStore, archiveService, searchService)
		} else {
			defer redisStore.Close()
			log.Printf("refresh sessions stored in redis")
			service = app.NewWithSessionStore(cfg, postgresStore, redisStore, archiveService, searchService)
		}
	} else {
		service = app.New(cfg, postgresStore, archiveService, searchService)
	}

	if cfg.AIBaseURL != "" && cfg.AIAPIKey != "" {
		service.WithAI(ai.NewOpenAIClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel))
		log.Printf("ai analysis enabled, model %s", cfg.AIModel)
	}

	emailService := email.NewService(email.Config{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		From:      cfg.SMTPFrom,
		FromName:  cfg.SMTPFromName,
		EnableTLS: true,
	})
	if emailService.IsConfigured() {
		service.WithEmail(emailService)
		log.Printf("conflict digests enabled via %s", cfg.SMTPHost)
	}

	if cfg.S3Endpoint != "" {
		storage, err := export.NewStorage(ctx, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
		if err != nil {
			log.Printf("export storage unavailable, exports stream inline: %v", err)
		} else {
			service.WithExportStorage(storage)
			log.Printf("export uploads enabled, bucket %s", cfg.S3Bucket)
		}
	}

	if cfg.RedisURL != "" {
		hotCache, err := cache.New(cfg.RedisURL, "inkwell")
		if err != nil {
			log.Printf("analysis cache unavailable: %v", err)
		} else {
			defer hotCache.Close()
			service.WithCache(hotCache)
		}
	}

	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("bootstrap: %v", err)
	}

	go searchService.ReindexAllFromPG(ctx)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Printf("stopped")
}
