package assistant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docchat/internal/models"
	"docchat/internal/service/ai"
)

// DefaultContextChars is how much document text goes into a prompt.
const DefaultContextChars = 3000

// DocumentSource looks up extracted documents by filename.
type DocumentSource interface {
	Get(ctx context.Context, filename string) (*models.Document, error)
}

// DocumentQA answers single questions about one document. It never touches
// the conversation history.
type DocumentQA struct {
	docs         DocumentSource
	gen          Generator
	contextChars int
	logger       *zap.Logger
}

func NewDocumentQA(docs DocumentSource, gen Generator, contextChars int, logger *zap.Logger) *DocumentQA {
	if contextChars <= 0 {
		contextChars = DefaultContextChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentQA{docs: docs, gen: gen, contextChars: contextChars, logger: logger}
}

// Answer asks the backend question about the stored text of filename.
// Lookup errors from the document source are returned unchanged.
func (q *DocumentQA) Answer(ctx context.Context, filename, question string) (string, error) {
	question = strings.TrimSpace(question)
	if filename == "" || question == "" {
		return "", ErrMissingInput
	}
	doc, err := q.docs.Get(ctx, filename)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return NoReadableText, nil
	}

	prompt := BuildPrompt(truncate(doc.Text, q.contextChars), question)
	resp, err := q.gen.GenerateContent(ctx, []models.ChatTurn{models.UserTurn(prompt)})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAskFailure, err)
	}
	answer, ok := ai.FirstText(resp)
	if !ok {
		q.logger.Warn("document backend returned no usable candidate", zap.String("filename", filename))
		return NoAnswer, nil
	}
	return answer, nil
}

// BuildPrompt frames document text and a question as one user message.
func BuildPrompt(text, question string) string {
	return fmt.Sprintf("The user uploaded this document:\n\n%s\n\nQuestion: %s", text, question)
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
