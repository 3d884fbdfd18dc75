package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"replymate/internal/adapters/observability"
	"replymate/internal/domain"
)

const (
	DefaultReviewLimit = 50
	MaxReviewLimit     = 200
)

func reviewsKeyPrefix(businessID string) string { return "reviews:" + businessID + ":" }

func reviewsKey(businessID string, q domain.ReviewQuery) string {
	return fmt.Sprintf("%s%d:%d:%s", reviewsKeyPrefix(businessID), q.Limit, q.Offset, q.Replied)
}

type BusinessView struct {
	Businesses          []domain.Business
	HasGoogleConnection bool
}

type QueryService struct {
	businesses domain.BusinessRepository
	conns      domain.ConnectionRepository
	reviews    domain.ReviewRepository
	cache      domain.Cache
	cacheTTL   time.Duration
}

func NewQueryService(b domain.BusinessRepository, conns domain.ConnectionRepository, r domain.ReviewRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{businesses: b, conns: conns, reviews: r, cache: c, cacheTTL: ttl}
}

func (s *QueryService) ListBusinesses(ctx context.Context, userID string) (BusinessView, error) {
	bs, err := s.businesses.ListBusinesses(ctx, userID)
	if err != nil {
		return BusinessView{}, err
	}
	_, err = s.conns.GetConnection(ctx, userID)
	switch {
	case err == nil:
		return BusinessView{Businesses: bs, HasGoogleConnection: true}, nil
	case errors.Is(err, domain.ErrNotFound):
		return BusinessView{Businesses: bs}, nil
	default:
		return BusinessView{}, err
	}
}

// ListReviews is read-through cached per (business, limit, offset, filter).
// Ownership is checked before the cache is consulted.
func (s *QueryService) ListReviews(ctx context.Context, userID, businessID string, q domain.ReviewQuery) (domain.ReviewsPage, error) {
	q, err := normalizeReviewQuery(q)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	if _, err := s.businesses.GetBusiness(ctx, userID, businessID); err != nil {
		return domain.ReviewsPage{}, err
	}

	key := reviewsKey(businessID, q)
	var out domain.ReviewsPage
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		observability.ObserveCache("reviews", "hit")
		return out, nil
	}
	observability.ObserveCache("reviews", "miss")

	rp, err := s.reviews.ListReviews(ctx, businessID, q)
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy slice to avoid aliasing the repo's backing array
	cp := deepCopyReviewsPage(rp)

	// optional size guard
	if b, _ := json.Marshal(cp); len(b) < 1_000_000 {
		if err := s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds())); err == nil {
			observability.ObserveCache("reviews", "set")
		}
	}
	return cp, nil
}

func normalizeReviewQuery(q domain.ReviewQuery) (domain.ReviewQuery, error) {
	if q.Limit == 0 {
		q.Limit = DefaultReviewLimit
	}
	if q.Limit < 0 || q.Limit > MaxReviewLimit {
		return q, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, MaxReviewLimit)
	}
	if q.Offset < 0 {
		return q, fmt.Errorf("%w: offset must not be negative", domain.ErrValidation)
	}
	switch q.Replied {
	case domain.FilterAll, domain.FilterReplied, domain.FilterNotReplied:
	default:
		return q, fmt.Errorf("%w: replied must be %q or %q", domain.ErrValidation, domain.FilterReplied, domain.FilterNotReplied)
	}
	return q, nil
}

func deepCopyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	out := domain.ReviewsPage{Total: in.Total, Limit: in.Limit, Offset: in.Offset}
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.Review, n)
		copy(out.Items, in.Items)
	}
	return out
}
