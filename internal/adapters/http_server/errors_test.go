package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"replymate/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"validation":    {fmt.Errorf("%w: placeId is required", domain.ErrValidation), http.StatusBadRequest},
		"reauth":        {domain.ErrReauthRequired, http.StatusUnauthorized},
		"no connection": {domain.ErrNoConnection, http.StatusForbidden},
		"not found":     {domain.ErrNotFound, http.StatusNotFound},
		"location":      {domain.ErrLocationNotFound, http.StatusNotFound},
		"exists":        {domain.ErrAlreadyExists, http.StatusConflict},
		"config":        {domain.MissingKey("GEMINI_API_KEY"), http.StatusInternalServerError},
		"provider":      {fmt.Errorf("fallback fetch: %w", &domain.ProviderError{Service: "places", Status: 403}), http.StatusInternalServerError},
		"unexpected":    {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		if got, _ := statusFor(tc.err); got != tc.want {
			t.Errorf("%s: status = %d, want %d", name, got, tc.want)
		}
	}
}

func TestParseSession(t *testing.T) {
	tok, err := IssueSession("s3cret", "u-9", 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := parseSession("s3cret", tok); err == nil {
		t.Fatal("expired session accepted")
	}

	tok, _ = IssueSession("s3cret", "u-9", time.Hour)
	if uid, err := parseSession("s3cret", tok); err != nil || uid != "u-9" {
		t.Fatalf("uid=%q err=%v", uid, err)
	}
	if _, err := parseSession("other", tok); err == nil {
		t.Fatal("session signed with another secret accepted")
	}
}
