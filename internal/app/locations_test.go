package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"replymate/internal/app"
	"replymate/internal/domain"
)

func TestResolve_FirstMatchInAccountOrder(t *testing.T) {
	gbp := &fakeGBP{
		accounts: []domain.GBPAccount{{Name: "accounts/1"}, {Name: "accounts/2"}, {Name: "accounts/3"}},
		locations: map[string][]domain.GBPLocationsPage{
			"accounts/1": {{Locations: []domain.GBPLocation{placeLocation("locations/a", "X")}}},
			// match on the second page
			"accounts/2": {
				{Locations: []domain.GBPLocation{placeLocation("locations/b", "Y")}},
				{Locations: []domain.GBPLocation{placeLocation("locations/c", "P1")}},
			},
			"accounts/3": {{Locations: []domain.GBPLocation{placeLocation("accounts/3/locations/d", "P1")}}},
		},
	}
	r := app.NewLocationResolver(gbp, nil, time.Hour, 3)

	h, err := r.Resolve(context.Background(), "P1", "tok")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if h != "accounts/2/locations/c" {
		t.Fatalf("handle = %q", h)
	}
}

func TestResolve_StoreCodeFallbackMatch(t *testing.T) {
	gbp := &fakeGBP{
		accounts: []domain.GBPAccount{{Name: "accounts/1"}},
		locations: map[string][]domain.GBPLocationsPage{
			"accounts/1": {{Locations: []domain.GBPLocation{{Name: "locations/s", StoreCode: "P1"}}}},
		},
	}
	h, err := app.NewLocationResolver(gbp, nil, time.Hour, 1).Resolve(context.Background(), "P1", "tok")
	if err != nil || h != "accounts/1/locations/s" {
		t.Fatalf("h=%q err=%v", h, err)
	}
}

func TestResolve_NotFound(t *testing.T) {
	gbp := &fakeGBP{
		accounts: []domain.GBPAccount{{Name: "accounts/1"}},
		locations: map[string][]domain.GBPLocationsPage{
			"accounts/1": {{Locations: []domain.GBPLocation{placeLocation("locations/a", "X")}}},
		},
	}
	_, err := app.NewLocationResolver(gbp, nil, time.Hour, 1).Resolve(context.Background(), "P1", "tok")
	if !errors.Is(err, domain.ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
}

func TestResolve_NoAccounts(t *testing.T) {
	_, err := app.NewLocationResolver(&fakeGBP{}, nil, time.Hour, 1).Resolve(context.Background(), "P1", "tok")
	if !errors.Is(err, domain.ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
}

func TestResolve_ErrorBeforeMatchWins(t *testing.T) {
	pe := &domain.ProviderError{Service: "locations", Status: 500, Message: "boom"}
	gbp := &fakeGBP{
		accounts:     []domain.GBPAccount{{Name: "accounts/1"}, {Name: "accounts/2"}},
		locationsErr: map[string]error{"accounts/1": pe},
		locations: map[string][]domain.GBPLocationsPage{
			"accounts/2": {{Locations: []domain.GBPLocation{placeLocation("locations/z", "P1")}}},
		},
	}
	_, err := app.NewLocationResolver(gbp, nil, time.Hour, 2).Resolve(context.Background(), "P1", "tok")
	if !domain.IsProviderError(err) {
		t.Fatalf("expected ProviderError from first account, got %v", err)
	}
}

func TestResolve_MatchBeforeErrorWins(t *testing.T) {
	gbp := &fakeGBP{
		accounts:     []domain.GBPAccount{{Name: "accounts/1"}, {Name: "accounts/2"}},
		locationsErr: map[string]error{"accounts/2": &domain.ProviderError{Service: "locations", Status: 500}},
		locations: map[string][]domain.GBPLocationsPage{
			"accounts/1": {{Locations: []domain.GBPLocation{placeLocation("locations/z", "P1")}}},
		},
	}
	h, err := app.NewLocationResolver(gbp, nil, time.Hour, 2).Resolve(context.Background(), "P1", "tok")
	if err != nil || h != "accounts/1/locations/z" {
		t.Fatalf("h=%q err=%v", h, err)
	}
}

func TestResolveCached_HitSkipsProvider(t *testing.T) {
	gbp := &fakeGBP{
		accounts: []domain.GBPAccount{{Name: "accounts/1"}},
		locations: map[string][]domain.GBPLocationsPage{
			"accounts/1": {{Locations: []domain.GBPLocation{placeLocation("locations/a", "P1")}}},
		},
	}
	cache := newMemCache()
	r := app.NewLocationResolver(gbp, cache, time.Hour, 1)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		h, err := r.ResolveCached(ctx, userID, "P1", "tok")
		if err != nil || h != "accounts/1/locations/a" {
			t.Fatalf("h=%q err=%v", h, err)
		}
	}
	if gbp.accountCalls != 1 {
		t.Fatalf("expected one provider scan, got %d", gbp.accountCalls)
	}

	r.Forget(ctx, userID, "P1")
	if _, err := r.ResolveCached(ctx, userID, "P1", "tok"); err != nil {
		t.Fatalf("err: %v", err)
	}
	if gbp.accountCalls != 2 {
		t.Fatalf("expected re-scan after Forget, got %d", gbp.accountCalls)
	}
}
