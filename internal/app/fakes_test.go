package app_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"replymate/internal/domain"
)

// ---- storage fakes ----

type fakeBusinesses struct {
	mu    sync.Mutex
	items map[string]domain.Business
	stats int
}

func newFakeBusinesses(bs ...domain.Business) *fakeBusinesses {
	f := &fakeBusinesses{items: map[string]domain.Business{}}
	for _, b := range bs {
		f.items[b.ID] = b
	}
	return f
}

func (f *fakeBusinesses) GetBusiness(ctx context.Context, userID, id string) (domain.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok || b.UserID != userID {
		return domain.Business{}, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeBusinesses) ListBusinesses(ctx context.Context, userID string) ([]domain.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Business
	for _, b := range f.items {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBusinesses) FindByPlaceID(ctx context.Context, userID, placeID string) (domain.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.items {
		if b.UserID == userID && b.PlaceID == placeID {
			return b, nil
		}
	}
	return domain.Business{}, domain.ErrNotFound
}

func (f *fakeBusinesses) CreateBusiness(ctx context.Context, b domain.Business) (domain.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[b.ID] = b
	return b, nil
}

func (f *fakeBusinesses) UpdateSyncStats(ctx context.Context, id string, rating *float64, total int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.items[id]
	b.Rating, b.TotalReviews, b.LastSyncAt = rating, total, &at
	f.items[id] = b
	f.stats++
	return nil
}

func (f *fakeBusinesses) DeactivateBusiness(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.items[id]
	b.IsActive = false
	f.items[id] = b
	return nil
}

func (f *fakeBusinesses) HardDeleteBusiness(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

type fakeConns struct {
	mu      sync.Mutex
	byUser  map[string]domain.GoogleConnection
	updates int
}

func newFakeConns(cs ...domain.GoogleConnection) *fakeConns {
	f := &fakeConns{byUser: map[string]domain.GoogleConnection{}}
	for _, c := range cs {
		f.byUser[c.UserID] = c
	}
	return f
}

func (f *fakeConns) GetConnection(ctx context.Context, userID string) (domain.GoogleConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byUser[userID]
	if !ok {
		return domain.GoogleConnection{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeConns) UpsertConnection(ctx context.Context, c domain.GoogleConnection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUser[c.UserID] = c
	return nil
}

func (f *fakeConns) UpdateTokens(ctx context.Context, id, access, refresh string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for u, c := range f.byUser {
		if c.ID == id {
			c.AccessToken, c.RefreshToken, c.ExpiresAt = access, refresh, &exp
			f.byUser[u] = c
		}
	}
	f.updates++
	return nil
}

func (f *fakeConns) DeleteConnection(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byUser, userID)
	return nil
}

// fakeReviews keys rows on (business_id, google_review_id) like the unique index.
type fakeReviews struct {
	mu      sync.Mutex
	rows    map[string]domain.Review
	upserts int
}

func newFakeReviews(rs ...domain.Review) *fakeReviews {
	f := &fakeReviews{rows: map[string]domain.Review{}}
	for _, r := range rs {
		f.rows[r.BusinessID+"|"+r.GoogleReviewID] = r
	}
	return f
}

func (f *fakeReviews) ExistingReviews(ctx context.Context, businessID string) (map[string]domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]domain.Review{}
	for _, r := range f.rows {
		if r.BusinessID == businessID {
			out[r.GoogleReviewID] = r
		}
	}
	return out, nil
}

func (f *fakeReviews) UpsertReviews(ctx context.Context, rs []domain.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	for _, r := range rs {
		key := r.BusinessID + "|" + r.GoogleReviewID
		if old, ok := f.rows[key]; ok {
			r.ID = old.ID
		}
		f.rows[key] = r
	}
	return nil
}

func (f *fakeReviews) MarkReplied(ctx context.Context, businessID, gid string, rep domain.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := businessID + "|" + gid
	r, ok := f.rows[key]
	if !ok {
		return nil
	}
	text, author, at := rep.Text, rep.Author, rep.RepliedAt
	r.HasReply, r.ReplyText, r.ReplyAuthor, r.RepliedAt = true, &text, &author, &at
	f.rows[key] = r
	return nil
}

func (f *fakeReviews) GetReview(ctx context.Context, userID, id string) (domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Review{}, domain.ErrNotFound
}

func (f *fakeReviews) ListReviews(ctx context.Context, businessID string, q domain.ReviewQuery) (domain.ReviewsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []domain.Review
	for _, r := range f.rows {
		if r.BusinessID == businessID {
			items = append(items, r)
		}
	}
	return domain.ReviewsPage{Items: items, Total: len(items), Limit: q.Limit, Offset: q.Offset}, nil
}

func (f *fakeReviews) get(businessID, gid string) (domain.Review, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[businessID+"|"+gid]
	return r, ok
}

func (f *fakeReviews) count(businessID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.BusinessID == businessID {
			n++
		}
	}
	return n
}

// memCache round-trips values through JSON like the redis adapter.
type memCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newMemCache() *memCache { return &memCache{store: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = b
	return nil
}

func (c *memCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *memCache) DelPrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.store {
		if strings.HasPrefix(k, prefix) {
			delete(c.store, k)
		}
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}

// ---- provider fakes ----

type fakeOAuth struct {
	calls int32
	tok   domain.OAuthToken
	err   error
	delay time.Duration
}

func (f *fakeOAuth) AuthCodeURL(state string) (string, error) {
	return "https://consent.example/?state=" + state, nil
}

func (f *fakeOAuth) Exchange(ctx context.Context, code string) (domain.OAuthToken, error) {
	return f.tok, f.err
}

func (f *fakeOAuth) Refresh(ctx context.Context, rt string) (domain.OAuthToken, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.tok, f.err
}

type fakeGBP struct {
	mu sync.Mutex

	accounts    []domain.GBPAccount
	accountsErr error
	// locations[account] is the sequence of pages for that account
	locations    map[string][]domain.GBPLocationsPage
	locationsErr map[string]error
	// reviews[location] is the sequence of pages for that location
	reviews    map[domain.LocationHandle][]domain.GBPReviewsPage
	reviewsErr error

	reply    domain.GBPReply
	replyErr error

	accountCalls  int
	locationCalls int
	reviewCalls   int
	tokensSeen    []string
	replied       []string // "{location}|{reviewID}|{comment}"
}

func pageIndex(token string) int {
	if token == "" {
		return 0
	}
	var n int
	for _, ch := range strings.TrimPrefix(token, "p") {
		n = n*10 + int(ch-'0')
	}
	return n
}

func pageToken(i int) string {
	return "p" + string(rune('0'+i))
}

func (f *fakeGBP) ListAccounts(ctx context.Context, tok string) ([]domain.GBPAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accountCalls++
	f.tokensSeen = append(f.tokensSeen, tok)
	return f.accounts, f.accountsErr
}

func (f *fakeGBP) ListLocations(ctx context.Context, tok, account, token string) (domain.GBPLocationsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locationCalls++
	if err := f.locationsErr[account]; err != nil {
		return domain.GBPLocationsPage{}, err
	}
	pages := f.locations[account]
	i := pageIndex(token)
	if i >= len(pages) {
		return domain.GBPLocationsPage{}, nil
	}
	p := pages[i]
	if i+1 < len(pages) {
		p.NextPageToken = pageToken(i + 1)
	}
	return p, nil
}

func (f *fakeGBP) ListReviews(ctx context.Context, tok string, loc domain.LocationHandle, token string) (domain.GBPReviewsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviewCalls++
	if f.reviewsErr != nil {
		return domain.GBPReviewsPage{}, f.reviewsErr
	}
	pages := f.reviews[loc]
	i := pageIndex(token)
	if i >= len(pages) {
		return domain.GBPReviewsPage{}, nil
	}
	p := pages[i]
	if i+1 < len(pages) {
		p.NextPageToken = pageToken(i + 1)
	}
	return p, nil
}

func (f *fakeGBP) PutReply(ctx context.Context, tok string, loc domain.LocationHandle, reviewID, comment string) (domain.GBPReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return domain.GBPReply{}, f.replyErr
	}
	f.replied = append(f.replied, string(loc)+"|"+reviewID+"|"+comment)
	return f.reply, nil
}

type fakePlaces struct {
	calls   int32
	details domain.PlaceDetails
	err     error
	fields  []string
}

func (f *fakePlaces) PlaceDetails(ctx context.Context, placeID string, fields []string) (domain.PlaceDetails, error) {
	atomic.AddInt32(&f.calls, 1)
	f.fields = fields
	return f.details, f.err
}

// ---- helpers ----

func pstr(s string) *string     { return &s }
func pint(i int) *int           { return &i }
func pfloat(f float64) *float64 { return &f }
func ptime(t time.Time) *time.Time {
	return &t
}

func gbpReview(loc, id, star string) domain.GBPReview {
	return domain.GBPReview{
		Name:       loc + "/reviews/" + id,
		ReviewID:   id,
		StarRating: star,
		Comment:    "comment " + id,
		CreateTime: "2026-03-01T10:00:00Z",
		Reviewer:   &domain.GBPReviewer{DisplayName: "Author " + id},
	}
}

func placeLocation(name, placeID string) domain.GBPLocation {
	loc := domain.GBPLocation{Name: name}
	loc.Metadata = &struct {
		PlaceID string `json:"placeId,omitempty"`
	}{PlaceID: placeID}
	return loc
}
