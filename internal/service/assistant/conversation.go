package assistant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"docchat/internal/models"
	"docchat/internal/service/ai"
)

// Generator is the generative backend: one call per ordered list of turns.
type Generator interface {
	GenerateContent(ctx context.Context, turns []models.ChatTurn) (*genai.GenerateContentResponse, error)
}

// Recorder receives every turn appended to the conversation.
type Recorder interface {
	Record(ctx context.Context, turn models.ChatTurn) error
}

// ConversationEngine holds the shared multi-turn chat with the backend.
type ConversationEngine struct {
	gen      Generator
	history  *History
	recorder Recorder
	logger   *zap.Logger

	// one-slot semaphore held across append, backend call and append so every
	// call sees a consistent prefix of the history; waiters give up with ctx
	turn chan struct{}
}

// NewConversationEngine wires the engine; recorder may be nil.
func NewConversationEngine(gen Generator, history *History, recorder Recorder, logger *zap.Logger) *ConversationEngine {
	if history == nil {
		history = NewHistory(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationEngine{
		gen:      gen,
		history:  history,
		recorder: recorder,
		logger:   logger,
		turn:     make(chan struct{}, 1),
	}
}

// Respond appends message as a user turn, sends the whole history and appends
// the model's reply when the backend produced one. Turns run one at a time; a
// caller still waiting for its turn when ctx ends gets ErrChatFailure without
// touching the history.
func (e *ConversationEngine) Respond(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyInput
	}

	select {
	case e.turn <- struct{}{}:
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrChatFailure, ctx.Err())
	}
	defer func() { <-e.turn }()

	e.append(ctx, models.UserTurn(message))
	resp, err := e.gen.GenerateContent(ctx, e.history.Snapshot())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrChatFailure, err)
	}
	reply, ok := ai.FirstText(resp)
	if !ok {
		e.logger.Warn("chat backend returned no usable candidate", zap.Int("history_turns", e.history.Len()))
		return NoProperResponse, nil
	}
	e.append(ctx, models.ModelTurn(reply))
	return reply, nil
}

// History returns a copy of the conversation so far.
func (e *ConversationEngine) History() []models.ChatTurn {
	return e.history.Snapshot()
}

// Reset clears the conversation.
func (e *ConversationEngine) Reset() {
	e.turn <- struct{}{}
	defer func() { <-e.turn }()
	e.history.Reset()
	e.logger.Info("conversation history cleared")
}

func (e *ConversationEngine) append(ctx context.Context, turn models.ChatTurn) {
	e.history.Append(turn)
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, turn); err != nil {
		e.logger.Warn("record transcript turn failed", zap.String("role", string(turn.Role)), zap.Error(err))
	}
}
