package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"replymate/internal/domain"
)

const (
	DefaultReplyLanguage = "English"
	DefaultReplyTone     = "Professional"
)

var toneInstructions = map[string]string{
	"professional": "Use professional, respectful and formal language. Respond on behalf of the business in a serious and trustworthy manner.",
	"friendly":     "Use warm, friendly and approachable language. Build a close connection with the customer while remaining respectful.",
	"short":        "Give a brief, concise and direct response. Use at most 2-3 sentences.",
	"detailed":     "Give a detailed and comprehensive response. Address every point in the review.",
}

type DraftRequest struct {
	ReviewID string
	Tone     string
	Language string
}

type Draft struct {
	Reply    string
	Tone     string
	Language string
}

// DraftService asks the reply generator for a reply to a stored review.
type DraftService struct {
	businesses domain.BusinessRepository
	reviews    domain.ReviewRepository
	templates  domain.TemplateRepository
	generator  domain.ReplyGenerator
}

func NewDraftService(b domain.BusinessRepository, r domain.ReviewRepository, t domain.TemplateRepository, g domain.ReplyGenerator) *DraftService {
	return &DraftService{businesses: b, reviews: r, templates: t, generator: g}
}

func (s *DraftService) Generate(ctx context.Context, userID string, req DraftRequest) (Draft, error) {
	rv, err := s.reviews.GetReview(ctx, userID, req.ReviewID)
	if err != nil {
		return Draft{}, err
	}
	b, err := s.businesses.GetBusiness(ctx, userID, rv.BusinessID)
	if err != nil {
		return Draft{}, err
	}

	lang := firstNonEmpty(req.Language, languageName(rv.Language), languageName(b.DefaultLanguage), DefaultReplyLanguage)
	tone := firstNonEmpty(req.Tone, deref(b.DefaultTone), DefaultReplyTone)

	var tpl *domain.Template
	switch t, err := s.templates.FindTemplate(ctx, b.ID, tone, lang); {
	case err == nil:
		tpl = &t
	case !errors.Is(err, domain.ErrNotFound):
		return Draft{}, err
	}

	reply, err := s.generator.Generate(ctx, buildPrompt(rv, b, tone, lang, tpl))
	if err != nil {
		return Draft{}, err
	}
	return Draft{Reply: reply, Tone: tone, Language: lang}, nil
}

// languageName renders a stored tag ("de", "pt-BR") as an English name; free-form
// values pass through unchanged.
func languageName(p *string) string {
	s := strings.TrimSpace(deref(p))
	if s == "" {
		return ""
	}
	tag, err := language.Parse(s)
	if err != nil {
		return s
	}
	if n := display.English.Tags().Name(tag); n != "" {
		return n
	}
	return s
}

func buildPrompt(rv domain.Review, b domain.Business, tone, lang string, tpl *domain.Template) string {
	toneLine := tone
	if ins, ok := toneInstructions[strings.ToLower(tone)]; ok {
		toneLine = ins
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a reply to a Google review on behalf of %s.\n\n", b.Name)
	fmt.Fprintf(&sb, "Tone: %s\n", toneLine)
	fmt.Fprintf(&sb, "Reply language: %s\n\n", lang)
	fmt.Fprintf(&sb, "Review by %s (%d/5):\n\"%s\"\n\n", rv.AuthorName, rv.Rating, deref(rv.Text))
	sb.WriteString("Rules:\n")
	sb.WriteString("1. Address the reviewer by name (say hello if there is no name).\n")
	sb.WriteString("2. Refer to the specific points of the review.\n")
	sb.WriteString("3. Do not promise discounts, gifts or refunds.\n")
	sb.WriteString("4. Return only the reply text.\n")

	if b.CustomInstructions != nil && *b.CustomInstructions != "" {
		fmt.Fprintf(&sb, "\nBusiness instructions:\n%s\n", *b.CustomInstructions)
	}
	if tpl != nil {
		if tpl.Instructions != nil && *tpl.Instructions != "" {
			fmt.Fprintf(&sb, "\nTemplate instructions:\n%s\n", *tpl.Instructions)
		}
		if tpl.ExampleResponse != nil && *tpl.ExampleResponse != "" {
			fmt.Fprintf(&sb, "\nExample reply:\n%s\n", *tpl.ExampleResponse)
		}
	}
	return sb.String()
}
