package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"replymate/internal/app"
	"replymate/internal/domain"
)

type replyFixture struct {
	conns   *fakeConns
	reviews *fakeReviews
	gbp     *fakeGBP
	cache   *memCache
	svc     *app.ReplyService
}

func newReplyFixture(conn *domain.GoogleConnection) *replyFixture {
	gid := string(loc1) + "/reviews/r1"
	f := &replyFixture{
		conns:   newFakeConns(),
		reviews: newFakeReviews(domain.Review{ID: "row-1", BusinessID: "b-x", GoogleReviewID: gid, Rating: 5}),
		gbp:     &fakeGBP{},
		cache:   newMemCache(),
	}
	if conn != nil {
		f.conns = newFakeConns(*conn)
	}
	primaryScenario(&syncFixture{gbp: f.gbp})
	tokens := app.NewTokenManager(f.conns, &fakeOAuth{})
	locs := app.NewLocationResolver(f.gbp, f.cache, time.Hour, 1)
	f.svc = app.NewReplyService(newFakeBusinesses(businessX()), f.conns, f.reviews, tokens, locs, f.gbp, f.cache)
	return f
}

func TestPostReply_MirrorsReply(t *testing.T) {
	f := newReplyFixture(validConn())
	f.gbp.reply = domain.GBPReply{Comment: "Thank you!", UpdateTime: "2026-04-01T09:30:00Z"}
	gid := string(loc1) + "/reviews/r1"

	res, err := f.svc.PostReply(context.Background(), userID, "b-x", gid, "Thank you!")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	if !res.Success || !res.RepliedAt.Equal(want) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(f.gbp.replied) != 1 || f.gbp.replied[0] != string(loc1)+"|r1|Thank you!" {
		t.Fatalf("provider should get the bare id: %v", f.gbp.replied)
	}
	row, _ := f.reviews.get("b-x", gid)
	if !row.HasReply || deref(row.ReplyText) != "Thank you!" || deref(row.ReplyAuthor) != domain.ReplyAuthorLabel || !row.RepliedAt.Equal(want) {
		t.Fatalf("reply not mirrored: %+v", row)
	}
}

func TestPostReply_NoUpdateTimeUsesNow(t *testing.T) {
	f := newReplyFixture(validConn())
	before := time.Now().Add(-time.Second)

	res, err := f.svc.PostReply(context.Background(), userID, "b-x", "r1", "Hi")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.RepliedAt.Before(before) {
		t.Fatalf("replied_at %v should be now", res.RepliedAt)
	}
	// a bare id still lands on the row stored under the full review name
	row, _ := f.reviews.get("b-x", string(loc1)+"/reviews/r1")
	if !row.HasReply || deref(row.ReplyText) != "Hi" || !row.RepliedAt.Equal(res.RepliedAt) {
		t.Fatalf("reply not mirrored for bare id: %+v", row)
	}
}

func TestPostReply_NoConnection(t *testing.T) {
	f := newReplyFixture(nil)
	_, err := f.svc.PostReply(context.Background(), userID, "b-x", "r1", "Hi")
	if !errors.Is(err, domain.ErrNoConnection) {
		t.Fatalf("expected ErrNoConnection, got %v", err)
	}
}

func TestPostReply_ExpiredWithoutRefreshToken(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	f := newReplyFixture(&domain.GoogleConnection{ID: "c-1", UserID: userID, ExpiresAt: &past})
	_, err := f.svc.PostReply(context.Background(), userID, "b-x", "r1", "Hi")
	if !errors.Is(err, domain.ErrReauthRequired) {
		t.Fatalf("expected ErrReauthRequired, got %v", err)
	}
}

func TestPostReply_LocationNotFound(t *testing.T) {
	f := newReplyFixture(validConn())
	f.gbp.locations = map[string][]domain.GBPLocationsPage{}
	_, err := f.svc.PostReply(context.Background(), userID, "b-x", "r1", "Hi")
	if !errors.Is(err, domain.ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
}

func TestPostReply_ProviderErrorLeavesRowUntouched(t *testing.T) {
	f := newReplyFixture(validConn())
	f.gbp.replyErr = &domain.ProviderError{Service: "reviews", Status: 400, Message: "Request contains an invalid argument."}
	gid := string(loc1) + "/reviews/r1"

	_, err := f.svc.PostReply(context.Background(), userID, "b-x", gid, "Hi")
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.Message != "Request contains an invalid argument." {
		t.Fatalf("expected provider message, got %v", err)
	}
	row, _ := f.reviews.get("b-x", gid)
	if row.HasReply {
		t.Fatalf("row must not change on failure: %+v", row)
	}
}

func TestPostReply_ValidatesInput(t *testing.T) {
	f := newReplyFixture(validConn())
	if _, err := f.svc.PostReply(context.Background(), userID, "b-x", "r1", "   "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
