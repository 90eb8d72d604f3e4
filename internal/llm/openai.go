package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"lifesync-engine/internal/domain"
)

// OpenAIProvider implementa Provider sobre una API compatible con OpenAI.
// Actúa como alternativa secundaria del router.
type OpenAIProvider struct {
	client openai.Client
	logger *zap.Logger
	model  string
}

func NewOpenAIProvider(apiKey, model string, logger *zap.Logger) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("llm: openai api key required")
	}
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
		model:  model,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) GenerateExplanation(ctx context.Context, req ExplanationRequest) (domain.Explanation, error) {
	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = SystemPrompt
	}
	userPrompt := BuildUserPrompt(req)

	start := time.Now()
	var tokensUsed *int
	text, err := generateWithRetries(ctx, func(ctx context.Context) (string, error) {
		resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(p.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(userPrompt),
			},
			Temperature:         openai.Float(generationTemperature),
			MaxCompletionTokens: openai.Int(generationMaxTokens),
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("empty response from model")
		}
		total := int(resp.Usage.TotalTokens)
		tokensUsed = &total
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if ctx.Err() != nil {
			return domain.Explanation{}, ctx.Err()
		}
		return domain.Explanation{}, &ProviderFailure{
			Provider: "openai",
			Model:    p.model,
			Attempts: maxAttemptsPerModel,
			Err:      err,
		}
	}

	parsed := SafeLoadJSON(text)
	exp := NormalizeExplanation(parsed, p.model, elapsed)
	exp.TokensUsed = tokensUsed
	return exp, nil
}
