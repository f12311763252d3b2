package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"docchat/internal/config"
	"docchat/internal/metrics"
	"docchat/internal/models"
)

// GeminiClient sends whole conversations to the Gemini generateContent API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required (GEMINI_API_KEY)")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &GeminiClient{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// GenerateContent replays turns in order and returns the raw response.
func (g *GeminiClient) GenerateContent(ctx context.Context, turns []models.ChatTurn) (*genai.GenerateContentResponse, error) {
	if len(turns) == 0 {
		return nil, errors.New("at least one turn is required")
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, convertTurns(turns), nil)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveBackend("gemini", "error", elapsed)
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	outcome := "ok"
	if _, ok := FirstText(resp); !ok {
		outcome = "empty"
	}
	metrics.ObserveBackend("gemini", outcome, elapsed)
	g.logger.Debug("gemini responded",
		zap.String("model", g.model),
		zap.Int("turns", len(turns)),
		zap.Duration("elapsed", elapsed),
		zap.String("outcome", outcome),
	)
	return resp, nil
}

func convertTurns(turns []models.ChatTurn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		var role genai.Role
		switch turn.Role {
		case models.RoleModel:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return contents
}
