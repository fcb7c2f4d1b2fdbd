package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"menuhall/api/internal/app"
	"menuhall/api/internal/archive"
	"menuhall/api/internal/config"
	"menuhall/api/internal/prevweek"
	"menuhall/api/internal/search"
	"menuhall/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	searchService.ReindexAllFromPG(ctx)

	var cache *prevweek.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		cache, err = prevweek.NewCache(cfg.RedisURL, cfg.PrevWeekTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer cache.Close()
		log.Printf("Using Redis for previous-week snapshots")
	}

	var archiveStore *archive.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		archiveStore, err = archive.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Printf("WARNING: archive unavailable, continuing without it: %v", err)
			archiveStore = nil
		} else {
			log.Printf("Archiving company menus to bucket %s", cfg.MinioBucket)
		}
	}

	service := app.New(cfg, dataStore, cache, searchService, archiveStore)

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
		log.Printf("Menuhall API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
