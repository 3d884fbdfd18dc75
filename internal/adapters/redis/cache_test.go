package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "replymate/internal/adapters/redis"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	type payload struct{ Handle string }
	if err := c.Set(ctx, "loc:u1:P1", payload{Handle: "accounts/1/locations/2"}, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("loc:u1:P1"); ttl != 60*time.Second {
		t.Fatalf("ttl = %v", ttl)
	}

	var got payload
	ok, err := c.Get(ctx, "loc:u1:P1", &got)
	if err != nil || !ok || got.Handle != "accounts/1/locations/2" {
		t.Fatalf("get ok=%v err=%v got=%+v", ok, err, got)
	}

	if err := c.Del(ctx, "loc:u1:P1"); err != nil {
		t.Fatalf("del: %v", err)
	}
	ok, err = c.Get(ctx, "loc:u1:P1", &got)
	if err != nil || ok {
		t.Fatalf("expected miss after del, ok=%v err=%v", ok, err)
	}
}

func TestCache_DelPrefix(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	for _, k := range []string{"reviews:b1:50:0:", "reviews:b1:50:0:replied", "reviews:b2:50:0:"} {
		if err := c.Set(ctx, k, []int{1}, 60); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	if err := c.DelPrefix(ctx, "reviews:b1:"); err != nil {
		t.Fatalf("del prefix: %v", err)
	}
	if mr.Exists("reviews:b1:50:0:") || mr.Exists("reviews:b1:50:0:replied") {
		t.Fatalf("b1 keys should be gone")
	}
	if !mr.Exists("reviews:b2:50:0:") {
		t.Fatalf("b2 key must survive")
	}
}

func TestCache_ClaimIsSingleUse(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	first, err := c.Claim(ctx, "state-abc", time.Minute)
	if err != nil || !first {
		t.Fatalf("first claim ok=%v err=%v", first, err)
	}
	second, err := c.Claim(ctx, "state-abc", time.Minute)
	if err != nil || second {
		t.Fatalf("second claim must fail, ok=%v err=%v", second, err)
	}
}
