// Package llm talks to the generative model that turns extracted document
// content into test cases.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/feichai0017/testcase-generator/pkg/logger"
	"github.com/feichai0017/testcase-generator/pkg/ollama"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a complete model call. Model may be empty, in which case
// the generator's configured model is used.
type ChatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"maxTokens"`
}

type ChatResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// Generator performs one model call.
type Generator interface {
	Generate(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Config selects the model provider.
type Config struct {
	// Provider is one of openai, gemini or ollama.
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	Ollama      ollama.Config `yaml:"ollama"`
}

// NewGenerator builds the generator for cfg.Provider.
func NewGenerator(ctx context.Context, cfg Config, log logger.Logger) (Generator, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIGenerator(cfg, log.Named("openai"))
	case "gemini":
		return NewGeminiGenerator(ctx, cfg, log.Named("gemini"))
	case "ollama":
		oc := cfg.Ollama
		if oc.Model == "" {
			oc.Model = cfg.Model
		}
		if oc.Endpoint == "" {
			oc.Endpoint = cfg.BaseURL
		}
		return NewOllamaGenerator(ollama.NewPool(oc), log.Named("ollama")), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

func modelOr(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}
