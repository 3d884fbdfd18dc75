package domain

import (
	"context"
	"time"
)

// BusinessRepository is caller-scoped: every lookup takes the owning user id and
// returns ErrNotFound for rows the user does not own.
type BusinessRepository interface {
	GetBusiness(ctx context.Context, userID, businessID string) (Business, error)
	ListBusinesses(ctx context.Context, userID string) ([]Business, error)
	FindByPlaceID(ctx context.Context, userID, placeID string) (Business, error)
	CreateBusiness(ctx context.Context, b Business) (Business, error)
	UpdateSyncStats(ctx context.Context, businessID string, rating *float64, total int, syncedAt time.Time) error
	DeactivateBusiness(ctx context.Context, userID, businessID string) error
}

// ElevatedStore bypasses ownership checks. Callers must verify ownership first.
type ElevatedStore interface {
	HardDeleteBusiness(ctx context.Context, businessID string) error
}

type ConnectionRepository interface {
	GetConnection(ctx context.Context, userID string) (GoogleConnection, error)
	UpsertConnection(ctx context.Context, c GoogleConnection) error
	UpdateTokens(ctx context.Context, connectionID, accessToken, refreshToken string, expiresAt time.Time) error
	DeleteConnection(ctx context.Context, userID string) error
}

type ReviewRepository interface {
	// ExistingReviews returns stored reviews of a business keyed by GoogleReviewID.
	ExistingReviews(ctx context.Context, businessID string) (map[string]Review, error)
	// UpsertReviews writes rows keyed on (business_id, google_review_id).
	UpsertReviews(ctx context.Context, rs []Review) error
	MarkReplied(ctx context.Context, businessID, googleReviewID string, r Reply) error
	GetReview(ctx context.Context, userID, reviewID string) (Review, error)
	ListReviews(ctx context.Context, businessID string, q ReviewQuery) (ReviewsPage, error)
}

// CompetitorRepository scopes competitors through the owning business.
type CompetitorRepository interface {
	GetCompetitor(ctx context.Context, userID, competitorID string) (Competitor, error)
	// ListCompetitors returns the business's competitors, newest first.
	ListCompetitors(ctx context.Context, businessID string) ([]Competitor, error)
	// CreateCompetitor returns ErrAlreadyExists for a place already tracked by the business.
	CreateCompetitor(ctx context.Context, c Competitor) (Competitor, error)
	// DeleteCompetitor removes the competitor and its reviews, or returns ErrNotFound
	// when the user does not own it.
	DeleteCompetitor(ctx context.Context, userID, competitorID string) error
	ExistingCompetitorReviews(ctx context.Context, competitorID string) (map[string]string, error)
	UpsertCompetitorReviews(ctx context.Context, rs []CompetitorReview) error
	UpdateCompetitorStats(ctx context.Context, competitorID string, rating *float64, total int, syncedAt time.Time) error
}

type TemplateRepository interface {
	FindTemplate(ctx context.Context, businessID, tone, language string) (Template, error)
}

// OAuthToken is a token endpoint response.
type OAuthToken struct {
	AccessToken  string
	RefreshToken string // empty when not rotated
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
}

type OAuthClient interface {
	AuthCodeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (OAuthToken, error)
	Refresh(ctx context.Context, refreshToken string) (OAuthToken, error)
}

// BusinessProfileClient talks to the OAuth-gated Business Profile APIs, one page per call.
type BusinessProfileClient interface {
	ListAccounts(ctx context.Context, accessToken string) ([]GBPAccount, error)
	ListLocations(ctx context.Context, accessToken, account, pageToken string) (GBPLocationsPage, error)
	ListReviews(ctx context.Context, accessToken string, loc LocationHandle, pageToken string) (GBPReviewsPage, error)
	PutReply(ctx context.Context, accessToken string, loc LocationHandle, reviewID, comment string) (GBPReply, error)
}

// PlacesClient is the public, key-authenticated Place Details API.
type PlacesClient interface {
	PlaceDetails(ctx context.Context, placeID string, fields []string) (PlaceDetails, error)
}

// ReplyGenerator drafts a reply for a prompt. Opaque LLM capability.
type ReplyGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	DelPrefix(ctx context.Context, prefix string) error
}

// NonceStore records single-use markers (OAuth state).
type NonceStore interface {
	// Claim returns false when the nonce was already claimed.
	Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}
