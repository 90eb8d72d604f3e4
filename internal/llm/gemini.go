package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"lifesync-engine/internal/domain"
)

const (
	generationTemperature = 0.7
	generationMaxTokens   = 1024
)

// GeminiProvider implementa Provider sobre los modelos generativos de Google.
// Reintenta por modelo y cae al siguiente modelo alternativo ante
// ProviderFailure.
type GeminiProvider struct {
	client          *genai.Client
	logger          *zap.Logger
	primaryModel    string
	alternateModels []string
}

func NewGeminiProvider(ctx context.Context, apiKey, primaryModel string, alternates []string, logger *zap.Logger) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("llm: gemini api key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &GeminiProvider{
		client:          client,
		logger:          logger,
		primaryModel:    primaryModel,
		alternateModels: alternates,
	}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) GenerateExplanation(ctx context.Context, req ExplanationRequest) (domain.Explanation, error) {
	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = SystemPrompt
	}
	userPrompt := BuildUserPrompt(req)

	start := time.Now()
	text, model, err := p.generateContent(ctx, systemPrompt, userPrompt)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return domain.Explanation{}, err
	}

	parsed := SafeLoadJSON(text)
	return NormalizeExplanation(parsed, model, elapsed), nil
}

// generateContent intenta el modelo primario y después cada alternativo.
func (p *GeminiProvider) generateContent(ctx context.Context, systemPrompt, userPrompt string) (string, string, error) {
	models := append([]string{p.primaryModel}, p.alternateModels...)

	var lastErr error
	for _, model := range models {
		if model != p.primaryModel {
			p.logger.Info("trying alternate gemini model", zap.String("model", model))
		}
		text, err := p.tryModel(ctx, model, systemPrompt, userPrompt)
		if err == nil {
			return text, model, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		p.logger.Warn("gemini model failed", zap.String("model", model), zap.Error(err))
	}

	return "", "", &ProviderFailure{
		Provider: "gemini",
		Model:    strings.Join(models, ","),
		Attempts: maxAttemptsPerModel,
		Err:      lastErr,
	}
}

func (p *GeminiProvider) tryModel(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(generationTemperature)),
		MaxOutputTokens: generationMaxTokens,
		CandidateCount:  1,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemPrompt)},
		},
	}
	contents := []*genai.Content{{Parts: []*genai.Part{genai.NewPartFromText(userPrompt)}}}

	return generateWithRetries(ctx, func(ctx context.Context) (string, error) {
		resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			return "", err
		}
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					return strings.TrimSpace(part.Text), nil
				}
			}
		}
		return "", errors.New("empty response from model")
	})
}
