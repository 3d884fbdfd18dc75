package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"replymate/internal/adapters/observability"
	"replymate/internal/domain"
)

type CompetitorSyncResult struct {
	Inserted   int
	Updated    int
	Message    string
	Competitor domain.Competitor
}

var competitorFields = []string{"name", "formatted_address", "rating", "user_ratings_total"}

// CompetitorService tracks competitor places of a business and refreshes their
// reviews from Place Details only.
type CompetitorService struct {
	businesses  domain.BusinessRepository
	competitors domain.CompetitorRepository
	places      domain.PlacesClient
	now         func() time.Time
}

func NewCompetitorService(b domain.BusinessRepository, c domain.CompetitorRepository, places domain.PlacesClient) *CompetitorService {
	return &CompetitorService{businesses: b, competitors: c, places: places, now: time.Now}
}

// AddCompetitor starts tracking placeID for a business the user owns. The business's
// own place is rejected and a place already tracked is ErrAlreadyExists.
func (s *CompetitorService) AddCompetitor(ctx context.Context, userID, businessID, placeID string) (domain.Competitor, error) {
	placeID = strings.TrimSpace(placeID)
	if businessID == "" || placeID == "" {
		return domain.Competitor{}, fmt.Errorf("%w: businessId and placeId are required", domain.ErrValidation)
	}
	b, err := s.businesses.GetBusiness(ctx, userID, businessID)
	if err != nil {
		return domain.Competitor{}, err
	}
	if b.PlaceID == placeID {
		return domain.Competitor{}, fmt.Errorf("%w: a business cannot track itself as a competitor", domain.ErrValidation)
	}

	tracked, err := s.competitors.ListCompetitors(ctx, b.ID)
	if err != nil {
		return domain.Competitor{}, err
	}
	for _, c := range tracked {
		if c.PlaceID == placeID {
			return domain.Competitor{}, fmt.Errorf("%w: competitor with place id %s", domain.ErrAlreadyExists, placeID)
		}
	}

	d, err := s.places.PlaceDetails(ctx, placeID, competitorFields)
	if err != nil {
		var pe *domain.ProviderError
		if errors.As(err, &pe) {
			return domain.Competitor{}, fmt.Errorf("%w: place lookup failed: %s", domain.ErrValidation, pe.Message)
		}
		return domain.Competitor{}, err
	}
	if d.Name == "" {
		return domain.Competitor{}, fmt.Errorf("%w: no place found for %s", domain.ErrNotFound, placeID)
	}

	c := domain.Competitor{
		ID:         uuid.NewString(),
		BusinessID: b.ID,
		PlaceID:    placeID,
		Name:       d.Name,
		Address:    ptrStr(d.FormattedAddress),
		Rating:     d.Rating,
	}
	if d.UserRatingsTotal != nil {
		c.TotalReviews = *d.UserRatingsTotal
	}
	return s.competitors.CreateCompetitor(ctx, c)
}

func (s *CompetitorService) ListCompetitors(ctx context.Context, userID, businessID string) ([]domain.Competitor, error) {
	if _, err := s.businesses.GetBusiness(ctx, userID, businessID); err != nil {
		return nil, err
	}
	return s.competitors.ListCompetitors(ctx, businessID)
}

// DeleteCompetitor drops the competitor and its reviews.
func (s *CompetitorService) DeleteCompetitor(ctx context.Context, userID, competitorID string) error {
	return s.competitors.DeleteCompetitor(ctx, userID, competitorID)
}

func (s *CompetitorService) SyncCompetitor(ctx context.Context, userID, competitorID string) (CompetitorSyncResult, error) {
	c, err := s.competitors.GetCompetitor(ctx, userID, competitorID)
	if err != nil {
		return CompetitorSyncResult{}, err
	}
	now := s.now().UTC()

	d, err := s.places.PlaceDetails(ctx, c.PlaceID, fallbackFields)
	if err != nil {
		observability.ObserveSync("competitor", "error")
		return CompetitorSyncResult{}, err
	}

	rows := mapCompetitorReviews(c.ID, c.PlaceID, d.Reviews, now)
	existing, err := s.competitors.ExistingCompetitorReviews(ctx, c.ID)
	if err != nil {
		return CompetitorSyncResult{}, fmt.Errorf("load competitor reviews: %w", err)
	}

	var res CompetitorSyncResult
	for i := range rows {
		if id, ok := existing[rows[i].GoogleReviewID]; ok {
			rows[i].ID = id
			res.Updated++
			continue
		}
		rows[i].ID = uuid.NewString()
		res.Inserted++
	}
	if len(rows) > 0 {
		if err := s.competitors.UpsertCompetitorReviews(ctx, rows); err != nil {
			return CompetitorSyncResult{}, fmt.Errorf("upsert competitor reviews: %w", err)
		}
	}

	rating := c.Rating
	if d.Rating != nil {
		rating = d.Rating
	}
	total := len(rows)
	if d.UserRatingsTotal != nil {
		total = *d.UserRatingsTotal
	}
	if err := s.competitors.UpdateCompetitorStats(ctx, c.ID, rating, total, now); err != nil {
		return CompetitorSyncResult{}, fmt.Errorf("update competitor stats: %w", err)
	}
	c.Rating, c.TotalReviews, c.LastSyncAt = rating, total, &now

	observability.ObserveSync("competitor", "ok")
	res.Message = fmt.Sprintf("Synchronized %d competitor reviews (Places API returns at most %d).", len(rows), PlacesReviewCap)
	res.Competitor = c
	return res, nil
}
