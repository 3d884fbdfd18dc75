// Command resync runs one review sync for every active business of a user.
//
//	RESYNC_USER_ID=<user> RESYNC_WORKERS=3 go run ./cmd/resync
package main

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"replymate/internal/adapters/google"
	"replymate/internal/adapters/oauth"
	"replymate/internal/adapters/observability"
	redisad "replymate/internal/adapters/redis"
	"replymate/internal/app"
	"replymate/internal/shared"
	mysqlrepo "replymate/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	if cfg.MySQLDSN == "" || cfg.ResyncUserID == "" {
		log.Fatal().Msg("MYSQL_DSN and RESYNC_USER_ID are required")
	}
	if cfg.ResyncWorkers <= 0 {
		cfg.ResyncWorkers = 1
	}

	log.Info().
		Str("user_id", cfg.ResyncUserID).
		Int("workers", cfg.ResyncWorkers).
		Msg("resync starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	defer db.Close()

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	gc := google.New(google.Options{PlacesKey: cfg.GooglePlacesKey, Timeout: cfg.HTTPClientTimeout, RPS: cfg.GoogleRPS})
	oc := oauth.New(oauth.Options{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL(),
		Timeout:      cfg.HTTPClientTimeout,
	})
	svc := app.NewSyncService(repo, repo, repo,
		app.NewTokenManager(repo, oc),
		app.NewLocationResolver(gc, cache, cfg.LocationTTL, cfg.ResyncWorkers),
		gc, gc, cache)

	businesses, err := repo.ListBusinesses(ctx, cfg.ResyncUserID)
	if err != nil {
		log.Fatal().Err(err).Msg("list businesses failed")
	}

	sem := semaphore.NewWeighted(int64(cfg.ResyncWorkers))
	var wg sync.WaitGroup
	var failed atomic.Int32

	for _, b := range businesses {
		if !b.IsActive {
			continue
		}
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := svc.SyncBusiness(ctx, cfg.ResyncUserID, id)
			if err != nil {
				failed.Add(1)
				log.Warn().Str("business_id", id).Err(err).Msg("sync failed")
				return
			}
			log.Info().Str("business_id", id).Bool("places", res.UsedPlacesAPI).
				Int("inserted", res.Inserted).Int("updated", res.Updated).Msg("sync ok")
		}(b.ID)
	}

	wg.Wait()
	log.Info().Int("businesses", len(businesses)).Int32("failed", failed.Load()).Msg("resync completed")
}
