package gemini

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"replymate/internal/adapters/observability"
	"replymate/internal/domain"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type Options struct {
	BaseURL string
	APIKey  string
	Model   string // e.g. models/gemini-2.5-flash
	Timeout time.Duration
}

// Client drafts review replies with the generateContent endpoint.
type Client struct {
	rc    *resty.Client
	key   string
	model string
}

func New(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Model == "" {
		o.Model = "models/gemini-2.5-flash"
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(o.BaseURL, "/")).
		SetTimeout(o.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{rc: rc, key: o.APIKey, model: strings.TrimPrefix(o.Model, "/")}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.key == "" {
		return "", domain.MissingKey("GEMINI_API_KEY")
	}

	var out generateResponse
	var apiErr apiError
	start := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParam("key", c.key).
		SetBody(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/" + c.model + ":generateContent")
	if err != nil {
		observability.ObserveExternal("gemini", "generate", 0, time.Since(start))
		return "", &domain.ProviderError{Service: "gemini", Message: err.Error()}
	}
	observability.ObserveExternal("gemini", "generate", resp.StatusCode(), time.Since(start))

	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", &domain.ProviderError{Service: "gemini", Status: resp.StatusCode(), Message: msg}
	}

	var text string
	if len(out.Candidates) > 0 && len(out.Candidates[0].Content.Parts) > 0 {
		text = strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	}
	if text == "" {
		return "", &domain.ProviderError{Service: "gemini", Status: resp.StatusCode(), Message: "empty response from model"}
	}
	return text, nil
}
