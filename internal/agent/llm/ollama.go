package llm

import (
	"context"
	"fmt"

	"github.com/feichai0017/testcase-generator/pkg/logger"
	"github.com/feichai0017/testcase-generator/pkg/ollama"
)

type ollamaChatter interface {
	Chat(ctx context.Context, msgs []ollama.Message, opts ollama.ChatOptions) (string, error)
}

// OllamaGenerator runs the prompt against a local model through the client pool.
type OllamaGenerator struct {
	pool   ollamaChatter
	logger logger.Logger
}

func NewOllamaGenerator(pool ollamaChatter, log logger.Logger) *OllamaGenerator {
	return &OllamaGenerator{pool: pool, logger: log}
}

func (g *OllamaGenerator) Generate(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msgs := make([]ollama.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, ollama.Message{Role: string(m.Role), Content: m.Content})
	}

	temp := req.Temperature
	content, err := g.pool.Chat(ctx, msgs, ollama.ChatOptions{Temperature: &temp, MaxTokens: req.MaxTokens})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	return &ChatResponse{Content: content, Model: req.Model}, nil
}
