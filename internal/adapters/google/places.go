package google

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"replymate/internal/domain"
)

type placesEnvelope struct {
	Status       string              `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Result       domain.PlaceDetails `json:"result"`
}

// PlaceDetails queries the public Place Details endpoint. Status OK and ZERO_RESULTS
// are successes; anything else is a ProviderError.
func (c *Client) PlaceDetails(ctx context.Context, placeID string, fields []string) (domain.PlaceDetails, error) {
	if c.placesKey == "" {
		return domain.PlaceDetails{}, domain.MissingKey("GOOGLE_PLACES_API_KEY")
	}
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", strings.Join(fields, ","))
	q.Set("key", c.placesKey)

	var env placesEnvelope
	if err := c.do(ctx, call{
		service: "places", endpoint: "details",
		method: http.MethodGet, url: joinPath(c.ep.Places, "maps", "api", "place", "details", "json") + "?" + q.Encode(),
	}, &env); err != nil {
		return domain.PlaceDetails{}, err
	}

	switch env.Status {
	case "OK", "ZERO_RESULTS":
		return env.Result, nil
	default:
		msg := env.ErrorMessage
		if msg == "" {
			msg = "places status " + env.Status
		}
		return domain.PlaceDetails{}, &domain.ProviderError{Service: "places", Status: http.StatusOK, Message: msg}
	}
}
