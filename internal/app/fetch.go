package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"replymate/internal/adapters/observability"
	"replymate/internal/domain"
)

// PlacesReviewCap is the number of reviews Place Details returns at most.
const PlacesReviewCap = 5

var fallbackFields = []string{"reviews", "rating", "user_ratings_total"}

// fetchAllReviews pages the location's reviews until no page token is returned.
// Provider order is kept; the last aggregates seen win.
func fetchAllReviews(ctx context.Context, gbp domain.BusinessProfileClient, accessToken string, loc domain.LocationHandle, now time.Time) (domain.FetchResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "reviews.fetch_primary")
	defer span.End()

	var out domain.FetchResult
	pageToken := ""
	pages := 0
	for {
		page, err := gbp.ListReviews(ctx, accessToken, loc, pageToken)
		if err != nil {
			return domain.FetchResult{}, err
		}
		pages++
		out.Reviews = append(out.Reviews, mapGBPReviews(page.Reviews, now)...)
		if page.AverageRating != nil {
			out.AverageRating = page.AverageRating
		}
		if page.TotalReviewCount != nil {
			out.TotalReviewCount = page.TotalReviewCount
		}
		if page.NextPageToken == "" || page.NextPageToken == pageToken {
			break
		}
		pageToken = page.NextPageToken
	}
	span.SetAttributes(attribute.Int("pages", pages), attribute.Int("reviews", len(out.Reviews)))
	return out, nil
}

// fetchFromPlaceDetails is the key-authenticated fallback, capped at PlacesReviewCap reviews.
func fetchFromPlaceDetails(ctx context.Context, places domain.PlacesClient, placeID string, now time.Time) (domain.FetchResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "reviews.fetch_fallback")
	defer span.End()

	d, err := places.PlaceDetails(ctx, placeID, fallbackFields)
	if err != nil {
		return domain.FetchResult{}, err
	}
	if len(d.Reviews) > PlacesReviewCap {
		d.Reviews = d.Reviews[:PlacesReviewCap]
	}
	span.SetAttributes(attribute.Int("reviews", len(d.Reviews)))
	return domain.FetchResult{
		Reviews:          mapPlacesReviews(placeID, d.Reviews, now),
		AverageRating:    d.Rating,
		TotalReviewCount: d.UserRatingsTotal,
	}, nil
}
