package app

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"replymate/internal/domain"
)

const anonymousAuthor = "Anonymous"

/********** tiny helpers **********/

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptrStr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

// parseTime accepts RFC 3339 with or without fractional seconds.
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		log.Debug().Err(err).Str("value", s).Msg("unparseable provider timestamp")
		return time.Time{}, false
	}
	return t.UTC(), true
}

// normalizeLanguage canonicalizes a BCP 47 tag ("en-us" -> "en-US"); junk becomes nil.
func normalizeLanguage(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	tag, err := language.Parse(s)
	if err != nil || tag == language.Und {
		return nil
	}
	out := tag.String()
	return &out
}

/********** ratings **********/

var starRatings = map[string]int{"ONE": 1, "TWO": 2, "THREE": 3, "FOUR": 4, "FIVE": 5}

// normalizeStarRating maps the Business Profile enum to 1..5. Unknown values,
// including STAR_RATING_UNSPECIFIED, become 1.
func normalizeStarRating(star string) int {
	if n, ok := starRatings[strings.ToUpper(strings.TrimSpace(star))]; ok {
		return n
	}
	return 1
}

func clampRating(n int) int {
	switch {
	case n < 1:
		return 1
	case n > 5:
		return 5
	}
	return n
}

/********** ids **********/

// PlacesReviewID synthesizes a stable external id for Place Details reviews,
// which carry none of their own.
func PlacesReviewID(placeID, authorName string, unix int64) string {
	sig := strings.Join([]string{placeID, authorName, strconv.FormatInt(unix, 10)}, "|")
	sum := sha1.Sum([]byte(sig))
	return "places:" + hex.EncodeToString(sum[:])
}

// bareReviewID returns the trailing id of accounts/{a}/locations/{l}/reviews/{r}.
func bareReviewID(id string) string {
	if i := strings.LastIndex(id, "/reviews/"); i >= 0 {
		return id[i+len("/reviews/"):]
	}
	return id
}

/********** review mappers **********/

func mapGBPReview(r domain.GBPReview, fetchedAt time.Time) domain.Review {
	rv := domain.Review{
		GoogleReviewID: firstNonEmpty(r.Name, r.ReviewID),
		AuthorName:     anonymousAuthor,
		Rating:         normalizeStarRating(r.StarRating),
		Text:           ptrStr(r.Comment),
		Language:       normalizeLanguage(r.ReviewerLanguage),
		FetchedAt:      fetchedAt,
	}
	if r.Reviewer != nil {
		if n := firstNonEmpty(r.Reviewer.DisplayName); n != "" {
			rv.AuthorName = n
		}
		rv.AuthorPhotoURL = ptrStr(r.Reviewer.ProfilePhotoURL)
	}

	rv.ReviewCreatedAt = fetchedAt
	if t, ok := parseTime(r.CreateTime); ok {
		rv.ReviewCreatedAt = t
	}

	if r.ReviewReply != nil {
		rv.HasReply = true
		rv.ReplyText = ptrStr(r.ReviewReply.Comment)
		author := domain.ReplyAuthorLabel
		rv.ReplyAuthor = &author
		if t, ok := parseTime(r.ReviewReply.UpdateTime); ok {
			rv.RepliedAt = &t
		}
	}
	return rv
}

func mapGBPReviews(in []domain.GBPReview, fetchedAt time.Time) []domain.Review {
	out := make([]domain.Review, 0, len(in))
	for _, r := range in {
		rv := mapGBPReview(r, fetchedAt)
		if rv.GoogleReviewID == "" {
			log.Warn().Str("context", "mapGBPReviews").Msg("dropping review without id")
			continue
		}
		out = append(out, rv)
	}
	return out
}

// mapPlacesReview never sets reply fields; Place Details does not expose them.
func mapPlacesReview(placeID string, r domain.PlacesReview, fetchedAt time.Time) domain.Review {
	author := firstNonEmpty(r.AuthorName, anonymousAuthor)
	created := fetchedAt
	if r.Time > 0 {
		created = time.Unix(r.Time, 0).UTC()
	}
	return domain.Review{
		GoogleReviewID:  PlacesReviewID(placeID, author, r.Time),
		AuthorName:      author,
		AuthorPhotoURL:  ptrStr(r.ProfilePhotoURL),
		Rating:          clampRating(r.Rating),
		Text:            ptrStr(r.Text),
		Language:        normalizeLanguage(r.Language),
		ReviewCreatedAt: created,
		FetchedAt:       fetchedAt,
	}
}

func mapPlacesReviews(placeID string, in []domain.PlacesReview, fetchedAt time.Time) []domain.Review {
	out := make([]domain.Review, 0, len(in))
	for _, r := range in {
		out = append(out, mapPlacesReview(placeID, r, fetchedAt))
	}
	return out
}

func mapCompetitorReviews(competitorID, placeID string, in []domain.PlacesReview, fetchedAt time.Time) []domain.CompetitorReview {
	out := make([]domain.CompetitorReview, 0, len(in))
	for _, r := range in {
		rv := mapPlacesReview(placeID, r, fetchedAt)
		out = append(out, domain.CompetitorReview{
			CompetitorID:    competitorID,
			GoogleReviewID:  rv.GoogleReviewID,
			AuthorName:      rv.AuthorName,
			AuthorPhotoURL:  rv.AuthorPhotoURL,
			Rating:          rv.Rating,
			Text:            rv.Text,
			Language:        rv.Language,
			ReviewCreatedAt: rv.ReviewCreatedAt,
			FetchedAt:       fetchedAt,
		})
	}
	return out
}

/********** business mapper **********/

func mapPlaceToBusiness(userID, placeID string, d domain.PlaceDetails) domain.Business {
	b := domain.Business{
		UserID:   userID,
		PlaceID:  placeID,
		Name:     firstNonEmpty(d.Name, placeID),
		Address:  ptrStr(d.FormattedAddress),
		Phone:    ptrStr(d.Phone),
		Website:  ptrStr(d.Website),
		Rating:   d.Rating,
		IsActive: true,
	}
	if len(d.Types) > 0 {
		b.Category = ptrStr(d.Types[0])
	}
	if d.UserRatingsTotal != nil {
		b.TotalReviews = *d.UserRatingsTotal
	}
	return b
}
