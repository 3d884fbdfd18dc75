package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"replymate/internal/adapters/observability"
	"replymate/internal/domain"
)

type ReplyResult struct {
	Success   bool
	Message   string
	RepliedAt time.Time
}

// ReplyService posts owner replies to Business Profile and mirrors them locally.
type ReplyService struct {
	businesses domain.BusinessRepository
	conns      domain.ConnectionRepository
	reviews    domain.ReviewRepository
	tokens     *TokenManager
	locations  *LocationResolver
	gbp        domain.BusinessProfileClient
	cache      domain.Cache
	now        func() time.Time
}

func NewReplyService(
	businesses domain.BusinessRepository,
	conns domain.ConnectionRepository,
	reviews domain.ReviewRepository,
	tokens *TokenManager,
	locations *LocationResolver,
	gbp domain.BusinessProfileClient,
	cache domain.Cache,
) *ReplyService {
	return &ReplyService{
		businesses: businesses,
		conns:      conns,
		reviews:    reviews,
		tokens:     tokens,
		locations:  locations,
		gbp:        gbp,
		cache:      cache,
		now:        time.Now,
	}
}

// qualifyReviewID builds the accounts/{a}/locations/{l}/reviews/{r} name synced rows are keyed on.
func qualifyReviewID(loc domain.LocationHandle, reviewID string) string {
	return string(loc) + "/reviews/" + reviewID
}

// PostReply has no fallback: every failure is returned and nothing is stored.
// googleReviewID may be bare or fully qualified.
func (s *ReplyService) PostReply(ctx context.Context, userID, businessID, googleReviewID, text string) (ReplyResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "reply.post")
	defer span.End()
	span.SetAttributes(attribute.String("business_id", businessID))

	text = strings.TrimSpace(text)
	if googleReviewID == "" || text == "" {
		return ReplyResult{}, domain.ErrValidation
	}

	b, err := s.businesses.GetBusiness(ctx, userID, businessID)
	if err != nil {
		return ReplyResult{}, err
	}
	conn, err := s.conns.GetConnection(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return ReplyResult{}, domain.ErrNoConnection
	}
	if err != nil {
		return ReplyResult{}, err
	}
	if conn, err = s.tokens.EnsureFresh(ctx, conn); err != nil {
		return ReplyResult{}, err
	}
	loc, err := s.locations.ResolveCached(ctx, userID, b.PlaceID, conn.AccessToken)
	if err != nil {
		return ReplyResult{}, err
	}

	reviewID := bareReviewID(googleReviewID)
	posted, err := s.gbp.PutReply(ctx, conn.AccessToken, loc, reviewID, text)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return ReplyResult{}, err
	}

	repliedAt := s.now().UTC()
	if t, ok := parseTime(posted.UpdateTime); ok {
		repliedAt = t
	}
	reply := domain.Reply{Text: text, Author: domain.ReplyAuthorLabel, RepliedAt: repliedAt}
	if err := s.reviews.MarkReplied(ctx, b.ID, qualifyReviewID(loc, reviewID), reply); err != nil {
		return ReplyResult{}, err
	}
	invalidateReviewCache(ctx, s.cache, b.ID)

	observability.Ctx(ctx).Info().Str("business_id", b.ID).Msg("reply posted")
	return ReplyResult{Success: true, Message: "Reply posted to Google.", RepliedAt: repliedAt}, nil
}
