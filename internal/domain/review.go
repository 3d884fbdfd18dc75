package domain

import "time"

// ReplyAuthorLabel is stored as reply_author for replies posted through the app.
const ReplyAuthorLabel = "Business Owner"

type Review struct {
	ID              string
	BusinessID      string
	GoogleReviewID  string // natural key together with BusinessID
	AuthorName      string
	AuthorPhotoURL  *string
	Rating          int // always 1..5 once normalized
	Text            *string
	Language        *string
	HasReply        bool
	ReplyText       *string
	ReplyAuthor     *string
	RepliedAt       *time.Time
	ReviewCreatedAt time.Time
	FetchedAt       time.Time
}

// Reply holds the reply state mirrored from the provider or from a posted reply.
type Reply struct {
	Text      string
	Author    string
	RepliedAt time.Time
}

type CompetitorReview struct {
	ID              string
	CompetitorID    string
	GoogleReviewID  string
	AuthorName      string
	AuthorPhotoURL  *string
	Rating          int
	Text            *string
	Language        *string
	ReviewCreatedAt time.Time
	FetchedAt       time.Time
}

type ReplyFilter string

const (
	FilterAll        ReplyFilter = ""
	FilterReplied    ReplyFilter = "replied"
	FilterNotReplied ReplyFilter = "not_replied"
)

type ReviewQuery struct {
	Limit   int
	Offset  int
	Replied ReplyFilter
}

type ReviewsPage struct {
	Items  []Review
	Total  int
	Limit  int
	Offset int
}
