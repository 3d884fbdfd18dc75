package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"replymate/internal/adapters/gemini"
	"replymate/internal/domain"
)

func TestGenerate_ReturnsTrimmedText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/test-model:generateContent" || r.URL.Query().Get("key") != "k" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Contents) != 1 || body.Contents[0].Parts[0].Text != "hello prompt" {
			t.Errorf("unexpected body: %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"  Thanks for visiting!\n"}]}}]}`)
	}))
	defer ts.Close()

	cl := gemini.New(gemini.Options{BaseURL: ts.URL, APIKey: "k", Model: "models/test-model"})
	got, err := cl.Generate(context.Background(), "hello prompt")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got != "Thanks for visiting!" {
		t.Fatalf("got %q", got)
	}
}

func TestGenerate_EmptyCandidatesIsProviderError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	}))
	defer ts.Close()

	_, err := gemini.New(gemini.Options{BaseURL: ts.URL, APIKey: "k"}).Generate(context.Background(), "p")
	if !domain.IsProviderError(err) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestGenerate_APIErrorMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid"}}`)
	}))
	defer ts.Close()

	_, err := gemini.New(gemini.Options{BaseURL: ts.URL, APIKey: "bad"}).Generate(context.Background(), "p")
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.Status != http.StatusBadRequest || pe.Message != "API key not valid" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerate_MissingKey(t *testing.T) {
	_, err := gemini.New(gemini.Options{}).Generate(context.Background(), "p")
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
