package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"replymate/internal/adapters/observability"
	"replymate/internal/domain"
)

const defaultResolverWorkers = 4

// LocationResolver maps a Place ID to a Business Profile location handle.
type LocationResolver struct {
	gbp     domain.BusinessProfileClient
	cache   domain.Cache
	ttl     time.Duration
	workers int64
}

func NewLocationResolver(gbp domain.BusinessProfileClient, cache domain.Cache, ttl time.Duration, workers int) *LocationResolver {
	if workers <= 0 {
		workers = defaultResolverWorkers
	}
	return &LocationResolver{gbp: gbp, cache: cache, ttl: ttl, workers: int64(workers)}
}

func locationKey(userID, placeID string) string {
	return "location:" + userID + ":" + placeID
}

// ResolveCached serves the handle from cache when present, else resolves and caches it.
func (r *LocationResolver) ResolveCached(ctx context.Context, userID, placeID, accessToken string) (domain.LocationHandle, error) {
	if r.cache != nil {
		var h string
		if ok, _ := r.cache.Get(ctx, locationKey(userID, placeID), &h); ok && h != "" {
			observability.ObserveCache("location", "hit")
			return domain.LocationHandle(h), nil
		}
		observability.ObserveCache("location", "miss")
	}
	h, err := r.Resolve(ctx, placeID, accessToken)
	if err != nil {
		return "", err
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, locationKey(userID, placeID), string(h), int(r.ttl.Seconds())); err == nil {
			observability.ObserveCache("location", "set")
		}
	}
	return h, nil
}

// Forget evicts a cached handle, e.g. after the location stopped answering.
func (r *LocationResolver) Forget(ctx context.Context, userID, placeID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, locationKey(userID, placeID)); err == nil {
		observability.ObserveCache("location", "del")
	}
}

type accountScan struct {
	handle domain.LocationHandle
	found  bool
	err    error
}

// Resolve lists accounts, then pages each account's locations looking for a
// metadata Place ID or store code equal to placeID. Accounts are scanned in
// parallel but the answer is the first match in account order, exactly as a
// sequential scan would report it. No match is ErrLocationNotFound.
func (r *LocationResolver) Resolve(ctx context.Context, placeID, accessToken string) (domain.LocationHandle, error) {
	ctx, span := observability.Tracer().Start(ctx, "location.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("place_id", placeID))

	accounts, err := r.gbp.ListAccounts(ctx, accessToken)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("accounts", len(accounts)))

	scans := make([]accountScan, len(accounts))
	sem := semaphore.NewWeighted(r.workers)
	var wg sync.WaitGroup

	for i, acc := range accounts {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			scans[i].err = err
			break
		}
		wg.Add(1)
		go func(i int, account string) {
			defer wg.Done()
			defer sem.Release(1)
			scans[i] = r.scanAccount(ctx, account, placeID, accessToken)
		}(i, acc.Name)
	}
	wg.Wait()

	for i, s := range scans {
		if s.err != nil {
			span.SetStatus(codes.Error, s.err.Error())
			return "", s.err
		}
		if s.found {
			log.Debug().Str("account", accounts[i].Name).Str("location", string(s.handle)).Msg("location resolved")
			return s.handle, nil
		}
	}
	return "", domain.ErrLocationNotFound
}

func (r *LocationResolver) scanAccount(ctx context.Context, account, placeID, accessToken string) accountScan {
	pageToken := ""
	for {
		page, err := r.gbp.ListLocations(ctx, accessToken, account, pageToken)
		if err != nil {
			return accountScan{err: err}
		}
		for _, loc := range page.Locations {
			if matchesPlace(loc, placeID) {
				return accountScan{handle: qualifyLocation(account, loc.Name), found: true}
			}
		}
		if page.NextPageToken == "" || page.NextPageToken == pageToken {
			return accountScan{}
		}
		pageToken = page.NextPageToken
	}
}

func matchesPlace(loc domain.GBPLocation, placeID string) bool {
	if placeID == "" {
		return false
	}
	if loc.Metadata != nil && loc.Metadata.PlaceID == placeID {
		return true
	}
	return loc.StoreCode == placeID
}

// qualifyLocation turns "locations/{l}" into "accounts/{a}/locations/{l}".
func qualifyLocation(account, name string) domain.LocationHandle {
	if strings.HasPrefix(name, "accounts/") {
		return domain.LocationHandle(name)
	}
	return domain.LocationHandle(strings.TrimRight(account, "/") + "/" + strings.TrimLeft(name, "/"))
}
