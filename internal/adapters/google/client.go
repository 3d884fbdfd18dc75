// Package google is the HTTP adapter for Google Business Profile and Places.
package google

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"replymate/internal/adapters/observability"
	"replymate/internal/domain"
)

// Endpoints are the API roots. Tests point them at httptest servers.
type Endpoints struct {
	Accounts string // mybusinessaccountmanagement
	Info     string // mybusinessbusinessinformation
	Reviews  string // mybusiness v4
	Places   string // maps.googleapis.com
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Accounts: "https://mybusinessaccountmanagement.googleapis.com",
		Info:     "https://mybusinessbusinessinformation.googleapis.com",
		Reviews:  "https://mybusiness.googleapis.com",
		Places:   "https://maps.googleapis.com",
	}
}

type Client struct {
	ep         Endpoints
	hc         *http.Client
	placesKey  string
	rl         *rate.Limiter
	maxRetries int
}

type Options struct {
	Endpoints  Endpoints
	PlacesKey  string
	Timeout    time.Duration
	RPS        int
	MaxRetries int // extra attempts on 429/5xx; negative disables retries
}

func New(o Options) *Client {
	if o.Endpoints == (Endpoints{}) {
		o.Endpoints = DefaultEndpoints()
	}
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.RPS <= 0 {
		o.RPS = 10
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return &Client{
		ep:         o.Endpoints,
		hc:         &http.Client{Timeout: o.Timeout},
		placesKey:  o.PlacesKey,
		rl:         rate.NewLimiter(rate.Limit(o.RPS), o.RPS),
		maxRetries: o.MaxRetries,
	}
}

type call struct {
	service  string // metric + error label
	endpoint string // metric label, never the raw URL
	method   string
	url      string
	token    string
	body     any
}

// googleError covers the {"error":{...}} envelope of the Business Profile APIs.
type googleError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// do performs the request with client-side rate limiting and retries on 429 and
// transient 5xx, honoring Retry-After. Every failure is a *domain.ProviderError.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return &domain.ProviderError{Service: cl.service, Message: err.Error()}
	}

	var payload []byte
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return err
		}
		payload = b
	}

	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		// build a fresh request each attempt
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, cl.method, cl.url, rdr)
		if err != nil {
			return err
		}
		if cl.token != "" {
			req.Header.Set("Authorization", "Bearer "+cl.token)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "replymate/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(cl.service, cl.endpoint, 0, time.Since(start))
			lastErr = &domain.ProviderError{Service: cl.service, Message: err.Error()}
			if ctx.Err() == nil && i < c.maxRetries && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return lastErr
		}
		observability.ObserveExternal(cl.service, cl.endpoint, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			defer resp.Body.Close()
			if out == nil || resp.StatusCode == http.StatusNoContent {
				_, _ = io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return &domain.ProviderError{Service: cl.service, Status: resp.StatusCode, Message: "malformed response: " + err.Error()}
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			wait := retryAfter(resp)
			lastErr = readProviderError(cl.service, resp)
			if wait == 0 {
				wait = backoff(i)
			}
			if i < c.maxRetries && sleepCtx(ctx, wait) {
				continue
			}
			return lastErr

		default:
			return readProviderError(cl.service, resp)
		}
	}
	return lastErr
}

func readProviderError(service string, resp *http.Response) error {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(b))
	var ge googleError
	if json.Unmarshal(b, &ge) == nil && ge.Error.Message != "" {
		msg = ge.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &domain.ProviderError{Service: service, Status: resp.StatusCode, Message: msg}
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}

var errEmptyToken = errors.New("access token is empty")

func requireToken(service, token string) error {
	if token == "" {
		return &domain.ProviderError{Service: service, Status: http.StatusUnauthorized, Message: errEmptyToken.Error()}
	}
	return nil
}

func joinPath(base string, parts ...string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.Join(parts, "/"))
}
