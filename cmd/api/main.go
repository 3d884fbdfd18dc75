package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"replymate/internal/adapters/gemini"
	"replymate/internal/adapters/google"
	server "replymate/internal/adapters/http_server"
	"replymate/internal/adapters/oauth"
	"replymate/internal/adapters/observability"
	redisad "replymate/internal/adapters/redis"
	"replymate/internal/app"
	"replymate/internal/shared"
	mysqlrepo "replymate/internal/storage/mysql"
)

const locationWorkers = 4

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	if missing := cfg.Missing(); len(missing) > 0 {
		log.Fatal().Strs("keys", missing).Msg("required configuration is missing")
	}

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		SampleRatio: cfg.OTelSampleRatio,
		Version:     version,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	if err := mysqlrepo.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	log.Info().Msg("database connection ok")

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unavailable; cache reads will miss")
	}

	// deps
	repo := mysqlrepo.New(db)
	elevated := mysqlrepo.NewElevated(db)
	gc := google.New(google.Options{
		PlacesKey: cfg.GooglePlacesKey,
		Timeout:   cfg.HTTPClientTimeout,
		RPS:       cfg.GoogleRPS,
	})
	oc := oauth.New(oauth.Options{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL(),
		Timeout:      cfg.HTTPClientTimeout,
	})
	llm := gemini.New(gemini.Options{APIKey: cfg.GeminiKey, Model: cfg.GeminiModel, Timeout: cfg.HTTPClientTimeout})

	tokens := app.NewTokenManager(repo, oc)
	locations := app.NewLocationResolver(gc, cache, cfg.LocationTTL, locationWorkers)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		SessionSecret: cfg.SessionSecret,
		Sync:          app.NewSyncService(repo, repo, repo, tokens, locations, gc, gc, cache),
		Replies:       app.NewReplyService(repo, repo, repo, tokens, locations, gc, cache),
		Queries:       app.NewQueryService(repo, repo, repo, cache, cfg.CacheTTL),
		Businesses:    app.NewBusinessService(repo, elevated, gc, cache),
		Drafts:        app.NewDraftService(repo, repo, repo, llm),
		Competitors:   app.NewCompetitorService(repo, repo, gc),
		OAuth: server.NewOAuthHandlers(oc, repo, cache, cfg.SessionSecret, cfg.DashboardURL,
			strings.HasPrefix(cfg.PublicBaseURL, "https://")),
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown failed")
	}
	_ = db.Close()
}
