package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"kinofeed/api"
	"kinofeed/config"
	"kinofeed/handlers"
	"kinofeed/internal/cache"
	"kinofeed/internal/tmdb"
	"kinofeed/services/catalog"
	"kinofeed/services/mdblist"
	"kinofeed/services/metadata"
	"kinofeed/services/posters"
	"kinofeed/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] config: %v", err)
	}
	setupLogging(cfg.LogFile)

	httpc := &http.Client{Timeout: 15 * time.Second}

	tmdbClient := tmdb.New(cfg.TMDBAPIKey, httpc, tmdb.Options{
		RequestsPerSecond: cfg.UpstreamRPS,
		MaxInFlight:       cfg.UpstreamMaxInFlight,
	})

	posterSvc := posters.NewService(httpc)
	metaSvc, err := metadata.NewService(tmdbClient, cfg.FanartAPIKey, httpc, posterSvc, metadata.Options{
		MetaCacheEntries: cfg.MetaCacheEntries,
		MetaPolicy: cache.Policy{
			MaxAge:               cfg.MetaMaxAge,
			StaleWhileRevalidate: cfg.MetaStaleWindow,
			StaleIfError:         cfg.MetaErrorWindow,
		},
		EnrichWorkers: cfg.EnrichWorkers,
	})
	if err != nil {
		log.Fatalf("[main] metadata service: %v", err)
	}
	catalogSvc := catalog.NewService(tmdbClient, metaSvc, mdblist.NewClient(httpc), posterSvc)

	catalogHandler := handlers.NewCatalogHandler(catalogSvc)
	metaHandler := handlers.NewMetaHandler(metaSvc)
	manifestHandler := handlers.NewManifestHandler(metaSvc)
	sessionHandler := handlers.NewSessionHandler(tmdbClient)

	router := utils.NewRouter()
	router.Use(api.RequestLogMiddleware())
	router.Use(api.RateLimitMiddleware(api.NewIPRateLimiter(rate.Limit(20), 40)))

	router.HandleFunc("/manifest.json", manifestHandler.Get).Methods(http.MethodGet)
	router.HandleFunc("/request_token", sessionHandler.RequestToken).Methods(http.MethodGet)
	router.HandleFunc("/session_id", sessionHandler.SessionID).Methods(http.MethodGet)
	router.HandleFunc("/catalog/{type}/{id}.json", catalogHandler.Get).Methods(http.MethodGet)
	router.HandleFunc("/catalog/{type}/{id}/{extra}.json", catalogHandler.Get).Methods(http.MethodGet)
	router.HandleFunc("/meta/{type}/{id}.json", metaHandler.Get).Methods(http.MethodGet)
	router.HandleFunc("/{config}/manifest.json", manifestHandler.Get).Methods(http.MethodGet)
	router.HandleFunc("/{config}/catalog/{type}/{id}.json", catalogHandler.Get).Methods(http.MethodGet)
	router.HandleFunc("/{config}/catalog/{type}/{id}/{extra}.json", catalogHandler.Get).Methods(http.MethodGet)
	router.HandleFunc("/{config}/meta/{type}/{id}.json", metaHandler.Get).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[main] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}

func setupLogging(logFile string) {
	var out io.Writer = os.Stdout
	if logFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	log.SetOutput(out)
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})))
}
