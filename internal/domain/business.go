package domain

import "time"

type Business struct {
	ID                 string
	UserID             string
	PlaceID            string
	Name               string
	Address            *string
	Phone              *string
	Website            *string
	Category           *string
	Rating             *float64 // cached aggregate, 0..5
	TotalReviews       int
	LastSyncAt         *time.Time
	DefaultLanguage    *string
	DefaultTone        *string
	CustomInstructions *string
	IsActive           bool
	CreatedAt          time.Time
}

// GoogleConnection is the single OAuth credential a user holds for Google Business Profile.
type GoogleConnection struct {
	ID           string
	UserID       string
	AccessToken  string
	RefreshToken string // empty when the provider never issued one
	TokenType    string
	Scope        string
	ExpiresAt    *time.Time
}

// Expired reports whether the access token must be refreshed before use.
// A connection without an expiry never expires.
func (c GoogleConnection) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Competitor is another place a business tracks; unique per (business, place).
type Competitor struct {
	ID           string
	BusinessID   string
	PlaceID      string
	Name         string
	Address      *string
	Rating       *float64
	TotalReviews int
	LastSyncAt   *time.Time
	CreatedAt    time.Time
}

type Template struct {
	ID              string
	BusinessID      string
	Name            string
	Tone            string
	Language        string
	Instructions    *string
	ExampleResponse *string
}
