package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	"replymate/internal/domain"
)

const errDupEntry = 1062

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}
func valEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
func f64Ptr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func isDuplicate(err error) bool {
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}

// Repo implements every caller-scoped repository port on one *sql.DB.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

type scanner interface {
	Scan(dest ...any) error
}

func scanBusiness(s scanner) (domain.Business, error) {
	var b domain.Business
	var address, phone, website, category, lang, tone, instr sql.NullString
	var rating sql.NullFloat64
	var lastSync sql.NullTime
	if err := s.Scan(
		&b.ID, &b.UserID, &b.PlaceID, &b.Name,
		&address, &phone, &website, &category,
		&rating, &b.TotalReviews, &lastSync,
		&lang, &tone, &instr,
		&b.IsActive, &b.CreatedAt,
	); err != nil {
		return domain.Business{}, err
	}
	b.Address, b.Phone, b.Website, b.Category = strPtr(address), strPtr(phone), strPtr(website), strPtr(category)
	b.Rating = f64Ptr(rating)
	b.LastSyncAt = timePtr(lastSync)
	b.DefaultLanguage, b.DefaultTone, b.CustomInstructions = strPtr(lang), strPtr(tone), strPtr(instr)
	return b, nil
}

func (r *Repo) GetBusiness(ctx context.Context, userID, businessID string) (domain.Business, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+businessColumns+` FROM businesses WHERE id = ? AND user_id = ?`,
		businessID, userID)
	b, err := scanBusiness(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Business{}, domain.ErrNotFound
	}
	return b, err
}

func (r *Repo) FindByPlaceID(ctx context.Context, userID, placeID string) (domain.Business, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+businessColumns+` FROM businesses WHERE user_id = ? AND place_id = ?`,
		userID, placeID)
	b, err := scanBusiness(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Business{}, domain.ErrNotFound
	}
	return b, err
}

func (r *Repo) ListBusinesses(ctx context.Context, userID string) ([]domain.Business, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+businessColumns+` FROM businesses WHERE user_id = ? ORDER BY created_at DESC, id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Business{}
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) CreateBusiness(ctx context.Context, b domain.Business) (domain.Business, error) {
	_, err := r.db.ExecContext(ctx, insertBusinessSQL,
		b.ID, b.UserID, b.PlaceID, b.Name,
		valStr(b.Address), valStr(b.Phone), valStr(b.Website), valStr(b.Category),
		valF64(b.Rating), b.TotalReviews,
		valStr(b.DefaultLanguage), valStr(b.DefaultTone), valStr(b.CustomInstructions),
		b.IsActive,
	)
	if isDuplicate(err) {
		return domain.Business{}, domain.ErrAlreadyExists
	}
	if err != nil {
		return domain.Business{}, err
	}
	return r.GetBusiness(ctx, b.UserID, b.ID)
}

func (r *Repo) UpdateSyncStats(ctx context.Context, businessID string, rating *float64, total int, syncedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, updateSyncStatsSQL, valF64(rating), total, syncedAt.UTC(), businessID)
	return err
}

func (r *Repo) DeactivateBusiness(ctx context.Context, userID, businessID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE businesses SET is_active = 0 WHERE id = ? AND user_id = ?`, businessID, userID)
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows when the flag is already cleared; confirm ownership separately.
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetBusiness(ctx, userID, businessID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) GetConnection(ctx context.Context, userID string) (domain.GoogleConnection, error) {
	var c domain.GoogleConnection
	var refresh, tokenType, scope sql.NullString
	var expires sql.NullTime
	err := r.db.QueryRowContext(ctx, `
SELECT id, user_id, access_token, refresh_token, token_type, scope, expires_at
FROM google_connections WHERE user_id = ?`, userID).
		Scan(&c.ID, &c.UserID, &c.AccessToken, &refresh, &tokenType, &scope, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GoogleConnection{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.GoogleConnection{}, err
	}
	c.RefreshToken, c.TokenType, c.Scope = refresh.String, tokenType.String, scope.String
	c.ExpiresAt = timePtr(expires)
	return c, nil
}

// UpsertConnection keeps the stored id when the user already has a row.
func (r *Repo) UpsertConnection(ctx context.Context, c domain.GoogleConnection) error {
	_, err := r.db.ExecContext(ctx, upsertConnectionSQL,
		c.ID, c.UserID, c.AccessToken,
		valEmpty(c.RefreshToken), valEmpty(c.TokenType), valEmpty(c.Scope),
		valTime(c.ExpiresAt),
	)
	return err
}

func (r *Repo) UpdateTokens(ctx context.Context, connectionID, accessToken, refreshToken string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE google_connections
SET access_token = ?, refresh_token = ?, expires_at = ?
WHERE id = ?`, accessToken, valEmpty(refreshToken), expiresAt.UTC(), connectionID)
	return err
}

func (r *Repo) DeleteConnection(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM google_connections WHERE user_id = ?`, userID)
	return err
}

// Elevated skips ownership scoping. Only wire it behind a service that checked ownership.
type Elevated struct{ db *sql.DB }

func NewElevated(db *sql.DB) *Elevated { return &Elevated{db: db} }

// HardDeleteBusiness removes the business; reviews, competitors and templates cascade.
func (e *Elevated) HardDeleteBusiness(ctx context.Context, businessID string) error {
	res, err := e.db.ExecContext(ctx, `DELETE FROM businesses WHERE id = ?`, businessID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
