package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"replymate/internal/domain"
)

var onboardingFields = []string{
	"name", "formatted_address", "formatted_phone_number", "website",
	"rating", "user_ratings_total", "types",
}

// BusinessService covers onboarding and removal. Removal checks ownership through
// the caller-scoped repository before touching the elevated store.
type BusinessService struct {
	businesses domain.BusinessRepository
	elevated   domain.ElevatedStore
	places     domain.PlacesClient
	cache      domain.Cache
}

func NewBusinessService(b domain.BusinessRepository, elevated domain.ElevatedStore, places domain.PlacesClient, cache domain.Cache) *BusinessService {
	return &BusinessService{businesses: b, elevated: elevated, places: places, cache: cache}
}

// Onboard registers a Place ID for the user from its place details.
func (s *BusinessService) Onboard(ctx context.Context, userID, placeID string) (domain.Business, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return domain.Business{}, fmt.Errorf("%w: placeId is required", domain.ErrValidation)
	}

	switch _, err := s.businesses.FindByPlaceID(ctx, userID, placeID); {
	case err == nil:
		return domain.Business{}, fmt.Errorf("%w: business with place id %s", domain.ErrAlreadyExists, placeID)
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Business{}, err
	}

	d, err := s.places.PlaceDetails(ctx, placeID, onboardingFields)
	if err != nil {
		var pe *domain.ProviderError
		if errors.As(err, &pe) {
			return domain.Business{}, fmt.Errorf("%w: place lookup failed: %s", domain.ErrValidation, pe.Message)
		}
		return domain.Business{}, err
	}
	if d.Name == "" {
		return domain.Business{}, fmt.Errorf("%w: no place found for %s", domain.ErrValidation, placeID)
	}

	b := mapPlaceToBusiness(userID, placeID, d)
	b.ID = uuid.NewString()
	return s.businesses.CreateBusiness(ctx, b)
}

// Delete hard-deletes (reviews cascade) unless soft is set, which only deactivates.
func (s *BusinessService) Delete(ctx context.Context, userID, businessID string, soft bool) error {
	if _, err := s.businesses.GetBusiness(ctx, userID, businessID); err != nil {
		return err
	}
	if soft {
		return s.businesses.DeactivateBusiness(ctx, userID, businessID)
	}
	if err := s.elevated.HardDeleteBusiness(ctx, businessID); err != nil {
		return err
	}
	invalidateReviewCache(ctx, s.cache, businessID)
	return nil
}
