package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"replymate/internal/app"
	"replymate/internal/domain"
)

type fakeTemplates struct{ t *domain.Template }

func (f fakeTemplates) FindTemplate(ctx context.Context, businessID, tone, lang string) (domain.Template, error) {
	if f.t == nil || f.t.Tone != tone || f.t.Language != lang {
		return domain.Template{}, domain.ErrNotFound
	}
	return *f.t, nil
}

type fakeGenerator struct {
	prompt string
	out    string
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.out, f.err
}

func draftFixture(tpl *domain.Template) (*app.DraftService, *fakeGenerator) {
	b := businessX()
	b.CustomInstructions = pstr("Sign as the Uno team.")
	reviews := newFakeReviews(domain.Review{
		ID: "row-1", BusinessID: b.ID, GoogleReviewID: "g1", AuthorName: "Ana", Rating: 2,
		Text: pstr("Cold coffee"), Language: pstr("de"),
	})
	gen := &fakeGenerator{out: "Hallo Ana"}
	return app.NewDraftService(newFakeBusinesses(b), reviews, fakeTemplates{t: tpl}, gen), gen
}

func TestGenerate_DefaultsFromReviewLanguage(t *testing.T) {
	svc, gen := draftFixture(nil)

	d, err := svc.Generate(context.Background(), userID, app.DraftRequest{ReviewID: "row-1"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if d.Reply != "Hallo Ana" || d.Language != "German" || d.Tone != app.DefaultReplyTone {
		t.Fatalf("unexpected draft: %+v", d)
	}
	for _, want := range []string{"Cold coffee", "Reply language: German", "Sign as the Uno team.", "professional"} {
		if !strings.Contains(gen.prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, gen.prompt)
		}
	}
}

func TestGenerate_UsesMatchingTemplate(t *testing.T) {
	svc, gen := draftFixture(&domain.Template{
		Tone: "Friendly", Language: "English",
		Instructions: pstr("Mention the loyalty card."), ExampleResponse: pstr("Hi there!"),
	})

	if _, err := svc.Generate(context.Background(), userID, app.DraftRequest{ReviewID: "row-1", Tone: "Friendly", Language: "English"}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if !strings.Contains(gen.prompt, "Mention the loyalty card.") || !strings.Contains(gen.prompt, "Hi there!") {
		t.Fatalf("template not applied:\n%s", gen.prompt)
	}
}

func TestGenerate_UnknownReview(t *testing.T) {
	svc, _ := draftFixture(nil)
	if _, err := svc.Generate(context.Background(), userID, app.DraftRequest{ReviewID: "nope"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
