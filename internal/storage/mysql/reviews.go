package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"replymate/internal/domain"
)

// upsertBatch bounds the placeholders of one multi-row INSERT.
const upsertBatch = 100

func (r *Repo) ExistingReviews(ctx context.Context, businessID string) (map[string]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, google_review_id, has_reply, reply_text, reply_author, replied_at
FROM reviews WHERE business_id = ?`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]domain.Review{}
	for rows.Next() {
		rv := domain.Review{BusinessID: businessID}
		var text, author sql.NullString
		var at sql.NullTime
		if err := rows.Scan(&rv.ID, &rv.GoogleReviewID, &rv.HasReply, &text, &author, &at); err != nil {
			return nil, err
		}
		rv.ReplyText, rv.ReplyAuthor, rv.RepliedAt = strPtr(text), strPtr(author), timePtr(at)
		out[rv.GoogleReviewID] = rv
	}
	return out, rows.Err()
}

// UpsertReviews writes in chunks; each chunk commits on its own.
func (r *Repo) UpsertReviews(ctx context.Context, rs []domain.Review) error {
	for start := 0; start < len(rs); start += upsertBatch {
		end := min(start+upsertBatch, len(rs))
		if err := r.upsertReviewChunk(ctx, rs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) upsertReviewChunk(ctx context.Context, rs []domain.Review) error {
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*14)
	for _, rv := range rs {
		values = append(values, "(?,?,?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			rv.ID, rv.BusinessID, rv.GoogleReviewID, rv.AuthorName,
			valStr(rv.AuthorPhotoURL), rv.Rating, valStr(rv.Text), valStr(rv.Language),
			rv.HasReply, valStr(rv.ReplyText), valStr(rv.ReplyAuthor), valTime(rv.RepliedAt),
			rv.ReviewCreatedAt.UTC(), rv.FetchedAt.UTC(),
		)
	}
	return r.inTx(ctx, insertReviewsPrefix+strings.Join(values, ",")+insertReviewsOnDup, args)
}

func (r *Repo) inTx(ctx context.Context, stmt string, args []any) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// MarkReplied is a no-op when the review was never synced.
// MarkReplied matches the row by its full review name or by the bare trailing id.
func (r *Repo) MarkReplied(ctx context.Context, businessID, googleReviewID string, rp domain.Reply) error {
	bare := googleReviewID
	if i := strings.LastIndex(bare, "/reviews/"); i >= 0 {
		bare = bare[i+len("/reviews/"):]
	}
	_, err := r.db.ExecContext(ctx, markRepliedSQL, rp.Text, rp.Author, rp.RepliedAt.UTC(), businessID, googleReviewID, bare)
	return err
}

func scanReview(s scanner) (domain.Review, error) {
	var rv domain.Review
	var photo, text, lang, replyText, replyAuthor sql.NullString
	var repliedAt sql.NullTime
	if err := s.Scan(
		&rv.ID, &rv.BusinessID, &rv.GoogleReviewID, &rv.AuthorName,
		&photo, &rv.Rating, &text, &lang,
		&rv.HasReply, &replyText, &replyAuthor, &repliedAt,
		&rv.ReviewCreatedAt, &rv.FetchedAt,
	); err != nil {
		return domain.Review{}, err
	}
	rv.AuthorPhotoURL, rv.Text, rv.Language = strPtr(photo), strPtr(text), strPtr(lang)
	rv.ReplyText, rv.ReplyAuthor, rv.RepliedAt = strPtr(replyText), strPtr(replyAuthor), timePtr(repliedAt)
	return rv, nil
}

func (r *Repo) GetReview(ctx context.Context, userID, reviewID string) (domain.Review, error) {
	cols := qualify(reviewColumns, "r")
	row := r.db.QueryRowContext(ctx, `
SELECT `+cols+`
FROM reviews r
JOIN businesses b ON b.id = r.business_id
WHERE r.id = ? AND b.user_id = ?`, reviewID, userID)
	rv, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, domain.ErrNotFound
	}
	return rv, err
}

// qualify prefixes every column of a comma separated list with alias.
func qualify(cols, alias string) string {
	parts := strings.Split(cols, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}

func (r *Repo) ListReviews(ctx context.Context, businessID string, q domain.ReviewQuery) (domain.ReviewsPage, error) {
	where := "business_id = ?"
	switch q.Replied {
	case domain.FilterReplied:
		where += " AND has_reply = 1"
	case domain.FilterNotReplied:
		where += " AND has_reply = 0"
	}

	page := domain.ReviewsPage{Items: []domain.Review{}, Limit: q.Limit, Offset: q.Offset}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE `+where, businessID).Scan(&page.Total); err != nil {
		return domain.ReviewsPage{}, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+reviewColumns+`
FROM reviews
WHERE `+where+`
ORDER BY review_created_at DESC, id DESC
LIMIT ? OFFSET ?`, businessID, q.Limit, q.Offset)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return domain.ReviewsPage{}, err
		}
		page.Items = append(page.Items, rv)
	}
	if err := rows.Err(); err != nil {
		return domain.ReviewsPage{}, err
	}
	return page, nil
}

func scanCompetitor(s scanner) (domain.Competitor, error) {
	var c domain.Competitor
	var addr sql.NullString
	var rating sql.NullFloat64
	var lastSync sql.NullTime
	if err := s.Scan(&c.ID, &c.BusinessID, &c.PlaceID, &c.Name, &addr, &rating, &c.TotalReviews, &lastSync, &c.CreatedAt); err != nil {
		return domain.Competitor{}, err
	}
	c.Address, c.Rating, c.LastSyncAt = strPtr(addr), f64Ptr(rating), timePtr(lastSync)
	return c, nil
}

func (r *Repo) GetCompetitor(ctx context.Context, userID, competitorID string) (domain.Competitor, error) {
	c, err := scanCompetitor(r.db.QueryRowContext(ctx, getCompetitorSQL, competitorID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Competitor{}, domain.ErrNotFound
	}
	return c, err
}

func (r *Repo) ListCompetitors(ctx context.Context, businessID string) ([]domain.Competitor, error) {
	rows, err := r.db.QueryContext(ctx, listCompetitorsSQL, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Competitor{}
	for rows.Next() {
		c, err := scanCompetitor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) CreateCompetitor(ctx context.Context, c domain.Competitor) (domain.Competitor, error) {
	_, err := r.db.ExecContext(ctx, insertCompetitorSQL,
		c.ID, c.BusinessID, c.PlaceID, c.Name, valStr(c.Address), valF64(c.Rating), c.TotalReviews, valTime(c.LastSyncAt))
	if isDuplicate(err) {
		return domain.Competitor{}, domain.ErrAlreadyExists
	}
	if err != nil {
		return domain.Competitor{}, err
	}
	created, err := scanCompetitor(r.db.QueryRowContext(ctx,
		"SELECT "+competitorColumns+" FROM competitors c WHERE c.id = ?", c.ID))
	if err != nil {
		return domain.Competitor{}, err
	}
	return created, nil
}

func (r *Repo) DeleteCompetitor(ctx context.Context, userID, competitorID string) error {
	res, err := r.db.ExecContext(ctx, deleteCompetitorSQL, competitorID, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) ExistingCompetitorReviews(ctx context.Context, competitorID string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT google_review_id, id FROM competitor_reviews WHERE competitor_id = ?`, competitorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var gid, id string
		if err := rows.Scan(&gid, &id); err != nil {
			return nil, err
		}
		out[gid] = id
	}
	return out, rows.Err()
}

func (r *Repo) UpsertCompetitorReviews(ctx context.Context, rs []domain.CompetitorReview) error {
	for start := 0; start < len(rs); start += upsertBatch {
		chunk := rs[start:min(start+upsertBatch, len(rs))]
		values := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*10)
		for _, cr := range chunk {
			values = append(values, "(?,?,?,?,?,?,?,?,?,?)")
			args = append(args,
				cr.ID, cr.CompetitorID, cr.GoogleReviewID, cr.AuthorName,
				valStr(cr.AuthorPhotoURL), cr.Rating, valStr(cr.Text), valStr(cr.Language),
				cr.ReviewCreatedAt.UTC(), cr.FetchedAt.UTC(),
			)
		}
		if err := r.inTx(ctx, insertCompetitorReviewsPrefix+strings.Join(values, ",")+insertCompetitorReviewsOnDup, args); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) UpdateCompetitorStats(ctx context.Context, competitorID string, rating *float64, total int, syncedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE competitors SET rating = ?, total_reviews = ?, last_sync_at = ? WHERE id = ?`,
		valF64(rating), total, syncedAt.UTC(), competitorID)
	return err
}

func (r *Repo) FindTemplate(ctx context.Context, businessID, tone, language string) (domain.Template, error) {
	var t domain.Template
	var instr, example sql.NullString
	err := r.db.QueryRowContext(ctx, findTemplateSQL, businessID, tone, language).
		Scan(&t.ID, &t.BusinessID, &t.Name, &t.Tone, &t.Language, &instr, &example)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Template{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Template{}, err
	}
	t.Instructions, t.ExampleResponse = strPtr(instr), strPtr(example)
	return t, nil
}
