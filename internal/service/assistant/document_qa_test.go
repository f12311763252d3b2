package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"docchat/internal/documents"
	"docchat/internal/models"
)

func TestAnswerBuildsTruncatedPrompt(t *testing.T) {
	long := strings.Repeat("a", 2990) + strings.Repeat("é", 20)
	gen := &fakeGenerator{reply: func([]models.ChatTurn) (*genai.GenerateContentResponse, error) {
		return textResponse("42"), nil
	}}
	qa := NewDocumentQA(mapSource{"doc.txt": long}, gen, 3000, nil)

	got, err := qa.Answer(context.Background(), "doc.txt", "  what?  ")
	if err != nil || got != "42" {
		t.Fatalf("answer: %q %v", got, err)
	}
	if len(gen.calls) != 1 || len(gen.calls[0]) != 1 {
		t.Fatalf("expected a single one-turn call, got %v", gen.calls)
	}
	want := "The user uploaded this document:\n\n" + strings.Repeat("a", 2990) + strings.Repeat("é", 10) + "\n\nQuestion: what?"
	turn := gen.calls[0][0]
	if turn.Role != models.RoleUser || turn.Text != want {
		t.Fatalf("unexpected prompt turn %+v", turn)
	}
}

func TestAnswerShortDocumentIsNotPadded(t *testing.T) {
	gen := &fakeGenerator{}
	qa := NewDocumentQA(mapSource{"s.md": "tiny"}, gen, 0, nil)
	if _, err := qa.Answer(context.Background(), "s.md", "q"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if gen.calls[0][0].Text != BuildPrompt("tiny", "q") {
		t.Fatalf("unexpected prompt %q", gen.calls[0][0].Text)
	}
}

func TestAnswerMissingInput(t *testing.T) {
	qa := NewDocumentQA(mapSource{}, &fakeGenerator{}, 3000, nil)
	cases := [][2]string{{"", "q"}, {"doc.txt", ""}, {"doc.txt", "   "}}
	for _, c := range cases {
		if _, err := qa.Answer(context.Background(), c[0], c[1]); !errors.Is(err, ErrMissingInput) {
			t.Fatalf("expected ErrMissingInput for %q, got %v", c, err)
		}
	}
}

func TestAnswerNotFound(t *testing.T) {
	gen := &fakeGenerator{}
	qa := NewDocumentQA(mapSource{}, gen, 3000, nil)
	if _, err := qa.Answer(context.Background(), "nope.txt", "q"); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if gen.callCount() != 0 {
		t.Fatalf("backend must not be called")
	}
}

func TestAnswerBlankDocument(t *testing.T) {
	gen := &fakeGenerator{}
	qa := NewDocumentQA(mapSource{"blank.txt": " \n\t "}, gen, 3000, nil)
	got, err := qa.Answer(context.Background(), "blank.txt", "q")
	if err != nil || got != NoReadableText {
		t.Fatalf("got %q %v", got, err)
	}
	if gen.callCount() != 0 {
		t.Fatalf("backend must not be called")
	}
}

func TestAnswerNoCandidate(t *testing.T) {
	gen := &fakeGenerator{reply: func([]models.ChatTurn) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, nil
	}}
	qa := NewDocumentQA(mapSource{"d.txt": "text"}, gen, 3000, nil)
	got, err := qa.Answer(context.Background(), "d.txt", "q")
	if err != nil || got != NoAnswer {
		t.Fatalf("got %q %v", got, err)
	}
}

func TestAnswerBackendFailure(t *testing.T) {
	qa := NewDocumentQA(mapSource{"d.txt": "text"}, &fakeGenerator{reply: failing(errBackend)}, 3000, nil)
	_, err := qa.Answer(context.Background(), "d.txt", "q")
	if !errors.Is(err, ErrAskFailure) || !errors.Is(err, errBackend) {
		t.Fatalf("expected wrapped ask failure, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if truncate("héllo", 2) != "hé" {
		t.Fatalf("truncate should count characters")
	}
	if truncate("abc", 10) != "abc" {
		t.Fatalf("short strings are unchanged")
	}
	if truncate("abc", 3) != "abc" {
		t.Fatalf("exact length is unchanged")
	}
}
