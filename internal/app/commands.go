package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"replymate/internal/adapters/observability"
	"replymate/internal/domain"
)

const (
	sourcePrimary = "primary"
	sourcePlaces  = "places"
)

type SyncResult struct {
	Inserted      int
	Updated       int
	UsedPlacesAPI bool
	Message       string
	ReviewCount   int
	Business      domain.Business
}

// SyncService pulls a business's reviews from Business Profile, or from Place
// Details when the primary path is unavailable, and reconciles them into storage.
type SyncService struct {
	businesses domain.BusinessRepository
	conns      domain.ConnectionRepository
	tokens     *TokenManager
	locations  *LocationResolver
	gbp        domain.BusinessProfileClient
	places     domain.PlacesClient
	reconciler *Reconciler
	cache      domain.Cache
	now        func() time.Time
}

func NewSyncService(
	businesses domain.BusinessRepository,
	conns domain.ConnectionRepository,
	reviews domain.ReviewRepository,
	tokens *TokenManager,
	locations *LocationResolver,
	gbp domain.BusinessProfileClient,
	places domain.PlacesClient,
	cache domain.Cache,
) *SyncService {
	return &SyncService{
		businesses: businesses,
		conns:      conns,
		tokens:     tokens,
		locations:  locations,
		gbp:        gbp,
		places:     places,
		reconciler: NewReconciler(reviews),
		cache:      cache,
		now:        time.Now,
	}
}

// SyncBusiness runs one sync for a business owned by userID.
func (s *SyncService) SyncBusiness(ctx context.Context, userID, businessID string) (SyncResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "sync.business")
	defer span.End()
	span.SetAttributes(attribute.String("business_id", businessID))
	logger := observability.Ctx(ctx)

	b, err := s.businesses.GetBusiness(ctx, userID, businessID)
	if err != nil {
		return SyncResult{}, err
	}
	now := s.now().UTC()

	source := sourcePrimary
	res, perr := s.fetchPrimary(ctx, userID, b, now)
	if perr != nil {
		if !fallbackAllowed(perr) {
			observability.ObserveSync(source, "error")
			span.SetStatus(codes.Error, perr.Error())
			return SyncResult{}, perr
		}
		logger.Warn().Err(perr).Str("business_id", b.ID).Msg("primary review source unavailable, falling back to place details")
		observability.ObserveSync(source, "fallback")

		source = sourcePlaces
		res, err = fetchFromPlaceDetails(ctx, s.places, b.PlaceID, now)
		if err != nil {
			observability.ObserveSync(source, "error")
			span.SetStatus(codes.Error, err.Error())
			return SyncResult{}, fmt.Errorf("fallback fetch: %w", err)
		}
	}
	usedFallback := source == sourcePlaces
	span.SetAttributes(attribute.String("source", source))

	rec, err := s.reconciler.Reconcile(ctx, b.ID, res.Reviews, usedFallback)
	if err != nil {
		observability.ObserveSync(source, "error")
		return SyncResult{}, err
	}

	rating := b.Rating
	if res.AverageRating != nil {
		rating = res.AverageRating
	}
	total := b.TotalReviews
	if res.TotalReviewCount != nil {
		total = *res.TotalReviewCount
	}
	if err := s.businesses.UpdateSyncStats(ctx, b.ID, rating, total, now); err != nil {
		observability.ObserveSync(source, "error")
		return SyncResult{}, fmt.Errorf("update sync stats: %w", err)
	}
	b.Rating, b.TotalReviews, b.LastSyncAt = rating, total, &now
	s.invalidateReviews(ctx, b.ID)

	observability.ObserveSync(source, "ok")
	logger.Info().
		Str("business_id", b.ID).
		Str("source", source).
		Int("inserted", rec.Inserted).
		Int("updated", rec.Updated).
		Msg("reviews synchronized")

	return SyncResult{
		Inserted:      rec.Inserted,
		Updated:       rec.Updated,
		UsedPlacesAPI: usedFallback,
		Message:       syncMessage(len(res.Reviews), usedFallback, perr),
		ReviewCount:   len(res.Reviews),
		Business:      b,
	}, nil
}

// fetchPrimary walks connection -> fresh token -> location -> all review pages.
func (s *SyncService) fetchPrimary(ctx context.Context, userID string, b domain.Business, now time.Time) (domain.FetchResult, error) {
	conn, err := s.conns.GetConnection(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.FetchResult{}, domain.ErrNoConnection
	}
	if err != nil {
		return domain.FetchResult{}, err
	}
	if conn, err = s.tokens.EnsureFresh(ctx, conn); err != nil {
		return domain.FetchResult{}, err
	}
	loc, err := s.locations.ResolveCached(ctx, userID, b.PlaceID, conn.AccessToken)
	if err != nil {
		return domain.FetchResult{}, err
	}
	res, err := fetchAllReviews(ctx, s.gbp, conn.AccessToken, loc, now)
	if err != nil {
		s.locations.Forget(ctx, userID, b.PlaceID)
		return domain.FetchResult{}, err
	}
	return res, nil
}

// fallbackAllowed lists the primary-path failures Place Details can stand in for.
// Configuration and storage errors abort the sync.
func fallbackAllowed(err error) bool {
	switch {
	case errors.Is(err, domain.ErrNoConnection),
		errors.Is(err, domain.ErrReauthRequired),
		errors.Is(err, domain.ErrLocationNotFound):
		return true
	}
	return domain.IsProviderError(err)
}

func syncMessage(n int, usedFallback bool, cause error) string {
	if !usedFallback {
		return fmt.Sprintf("Successfully synchronized %d reviews.", n)
	}
	msg := fmt.Sprintf("Synchronized %d reviews through the Places API (at most %d reviews).", n, PlacesReviewCap)
	switch {
	case errors.Is(cause, domain.ErrNoConnection):
		return msg + " Connect your Google Business account to sync all reviews."
	case errors.Is(cause, domain.ErrReauthRequired):
		return msg + " Your Google authorization expired; reconnect your Google Business account to sync all reviews."
	}
	return msg + " Google Business Profile was unavailable for this business."
}

// invalidateReviews drops every cached review page of the business.
func (s *SyncService) invalidateReviews(ctx context.Context, businessID string) {
	invalidateReviewCache(ctx, s.cache, businessID)
}

func invalidateReviewCache(ctx context.Context, cache domain.Cache, businessID string) {
	if cache == nil {
		return
	}
	if err := cache.DelPrefix(ctx, reviewsKeyPrefix(businessID)); err != nil {
		log.Warn().Err(err).Str("business_id", businessID).Msg("review cache invalidation failed")
		return
	}
	observability.ObserveCache("reviews", "del")
}
