package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"replymate/internal/domain"
)

type ReconcileResult struct {
	Inserted int
	Updated  int
}

// Reconciler merges fetched reviews into storage keyed by (business, external id).
type Reconciler struct {
	reviews domain.ReviewRepository
}

func NewReconciler(r domain.ReviewRepository) *Reconciler { return &Reconciler{reviews: r} }

// Reconcile is idempotent: the same input twice leaves the same rows. When the
// fallback source produced incoming, stored replies are carried forward since
// that source never reports them.
func (r *Reconciler) Reconcile(ctx context.Context, businessID string, incoming []domain.Review, usedFallback bool) (ReconcileResult, error) {
	rows := dedupeByExternalID(incoming)
	if len(rows) == 0 {
		return ReconcileResult{}, nil
	}

	existing, err := r.reviews.ExistingReviews(ctx, businessID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("load existing reviews: %w", err)
	}

	var res ReconcileResult
	for i := range rows {
		rv := &rows[i]
		rv.BusinessID = businessID
		old, ok := existing[rv.GoogleReviewID]
		if !ok {
			rv.ID = uuid.NewString()
			res.Inserted++
			continue
		}
		rv.ID = old.ID
		if usedFallback && old.HasReply {
			rv.HasReply = true
			rv.ReplyText = old.ReplyText
			rv.ReplyAuthor = old.ReplyAuthor
			rv.RepliedAt = old.RepliedAt
		}
		res.Updated++
	}

	if err := r.reviews.UpsertReviews(ctx, rows); err != nil {
		return ReconcileResult{}, fmt.Errorf("upsert reviews for %s: %w", businessID, err)
	}
	return res, nil
}

// dedupeByExternalID keeps first-seen order; a later duplicate replaces the earlier record.
func dedupeByExternalID(in []domain.Review) []domain.Review {
	idx := make(map[string]int, len(in))
	out := make([]domain.Review, 0, len(in))
	for _, rv := range in {
		if rv.GoogleReviewID == "" {
			continue
		}
		if i, ok := idx[rv.GoogleReviewID]; ok {
			out[i] = rv
			continue
		}
		idx[rv.GoogleReviewID] = len(out)
		out = append(out, rv)
	}
	return out
}
