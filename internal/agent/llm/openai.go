package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/feichai0017/testcase-generator/pkg/logger"
)

type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger logger.Logger
}

func NewOpenAIGenerator(cfg Config, log logger.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		model:  modelOr(cfg.Model, string(openai.ChatModelGPT4)),
		logger: log,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	model := modelOr(req.Model, g.model)
	params := openai.ChatCompletionNewParams{
		Model:       openai.F(openai.ChatModel(model)),
		Messages:    openai.F(msgs),
		Temperature: openai.F(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.F(int64(req.MaxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai chat completion returned no choices")
	}

	g.logger.Debug("chat completion finished",
		logger.String("model", resp.Model),
		logger.Int64("promptTokens", resp.Usage.PromptTokens),
		logger.Int64("completionTokens", resp.Usage.CompletionTokens),
	)
	return &ChatResponse{Content: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}
