package domain

// Provider payloads, one shape per source. They are normalized into Review at the
// app boundary and never stored as-is.

// GBPReview is a review as returned by the Business Profile (My Business v4) API.
type GBPReview struct {
	Name             string       `json:"name"` // accounts/{a}/locations/{l}/reviews/{r}
	ReviewID         string       `json:"reviewId"`
	StarRating       string       `json:"starRating"` // ONE..FIVE or STAR_RATING_UNSPECIFIED
	Comment          string       `json:"comment,omitempty"`
	CreateTime       string       `json:"createTime,omitempty"`
	UpdateTime       string       `json:"updateTime,omitempty"`
	ReviewerLanguage string       `json:"reviewerLanguage,omitempty"`
	Reviewer         *GBPReviewer `json:"reviewer,omitempty"`
	ReviewReply      *GBPReply    `json:"reviewReply,omitempty"`
}

type GBPReviewer struct {
	DisplayName     string `json:"displayName,omitempty"`
	ProfilePhotoURL string `json:"profilePhotoUrl,omitempty"`
}

type GBPReply struct {
	Comment    string `json:"comment,omitempty"`
	UpdateTime string `json:"updateTime,omitempty"`
}

type GBPReviewsPage struct {
	Reviews          []GBPReview `json:"reviews"`
	AverageRating    *float64    `json:"averageRating,omitempty"`
	TotalReviewCount *int        `json:"totalReviewCount,omitempty"`
	NextPageToken    string      `json:"nextPageToken,omitempty"`
}

type GBPAccount struct {
	Name        string `json:"name"` // accounts/{a}
	AccountName string `json:"accountName,omitempty"`
}

type GBPLocation struct {
	Name      string `json:"name"` // locations/{l} or accounts/{a}/locations/{l}
	StoreCode string `json:"storeCode,omitempty"`
	Metadata  *struct {
		PlaceID string `json:"placeId,omitempty"`
	} `json:"metadata,omitempty"`
}

type GBPLocationsPage struct {
	Locations     []GBPLocation `json:"locations"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

// PlacesReview is a review from the public Place Details API. It has no id and no reply.
type PlacesReview struct {
	AuthorName      string `json:"author_name"`
	AuthorURL       string `json:"author_url,omitempty"`
	Language        string `json:"language,omitempty"`
	ProfilePhotoURL string `json:"profile_photo_url,omitempty"`
	Rating          int    `json:"rating"`
	Text            string `json:"text,omitempty"`
	Time            int64  `json:"time"` // unix seconds
}

// PlaceDetails is the subset of Place Details fields the app requests.
type PlaceDetails struct {
	Name             string         `json:"name,omitempty"`
	FormattedAddress string         `json:"formatted_address,omitempty"`
	Phone            string         `json:"formatted_phone_number,omitempty"`
	Website          string         `json:"website,omitempty"`
	Rating           *float64       `json:"rating,omitempty"`
	UserRatingsTotal *int           `json:"user_ratings_total,omitempty"`
	Types            []string       `json:"types,omitempty"`
	Reviews          []PlacesReview `json:"reviews,omitempty"`
}

// LocationHandle is a fully-qualified accounts/{a}/locations/{l} path.
type LocationHandle string

// FetchResult is what a review fetcher hands to reconciliation.
type FetchResult struct {
	Reviews          []Review // normalized, BusinessID not yet set
	AverageRating    *float64
	TotalReviewCount *int
}
