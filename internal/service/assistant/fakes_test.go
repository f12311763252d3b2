package assistant

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/genai"

	"docchat/internal/documents"
	"docchat/internal/models"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls [][]models.ChatTurn
	reply func(turns []models.ChatTurn) (*genai.GenerateContentResponse, error)
}

func (f *fakeGenerator) GenerateContent(_ context.Context, turns []models.ChatTurn) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]models.ChatTurn(nil), turns...))
	f.mu.Unlock()
	if f.reply == nil {
		return textResponse("ok"), nil
	}
	return f.reply(turns)
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func failing(err error) func([]models.ChatTurn) (*genai.GenerateContentResponse, error) {
	return func([]models.ChatTurn) (*genai.GenerateContentResponse, error) { return nil, err }
}

type memoryRecorder struct {
	turns []models.ChatTurn
	err   error
}

func (m *memoryRecorder) Record(_ context.Context, turn models.ChatTurn) error {
	m.turns = append(m.turns, turn)
	return m.err
}

type mapSource map[string]string

func (m mapSource) Get(_ context.Context, filename string) (*models.Document, error) {
	text, ok := m[filename]
	if !ok {
		return nil, documents.ErrNotFound
	}
	return &models.Document{Filename: filename, Text: text}, nil
}

var errBackend = errors.New("backend down")
