// Package ollama is a small HTTP client for a local Ollama server, with a
// fixed-size client pool.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config holds connection and sampling settings.
type Config struct {
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxPoolSize int           `yaml:"max_pool_size"`
	PoolTimeout time.Duration `yaml:"pool_timeout"`
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = "http://localhost:11434"
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = 4
	}
	if c.PoolTimeout <= 0 {
		c.PoolTimeout = 30 * time.Second
	}
	return c
}

// Message is one chat turn. Images are raw bytes and are base64 encoded on the wire.
type Message struct {
	Role    string
	Content string
	Images  [][]byte
}

type wireMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  options       `json:"options"`
}

// ChatResponse mirrors the non-streaming /api/chat reply.
type ChatResponse struct {
	Model           string      `json:"model"`
	Message         wireMessage `json:"message"`
	Done            bool        `json:"done"`
	TotalDuration   int64       `json:"total_duration,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// ChatOptions overrides per call. Zero values fall back to the client config.
type ChatOptions struct {
	Temperature *float64
	MaxTokens   int
	JSON        bool
}

type Client struct {
	endpoint    string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Chat sends messages to /api/chat and returns the assistant content.
func (c *Client) Chat(ctx context.Context, msgs []Message, opts ChatOptions) (string, error) {
	body := chatRequest{
		Model:  c.model,
		Stream: false,
		Options: options{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	}
	if opts.Temperature != nil {
		body.Options.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		body.Options.NumPredict = opts.MaxTokens
	}
	if opts.JSON {
		body.Format = "json"
	}
	for _, m := range msgs {
		wm := wireMessage{Role: m.Role, Content: m.Content}
		for _, img := range m.Images {
			wm.Images = append(wm.Images, base64.StdEncoding.EncodeToString(img))
		}
		body.Messages = append(body.Messages, wm)
	}

	reqData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(reqData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(data))
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama error: %s", result.Error)
	}
	return result.Message.Content, nil
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

type Pool struct {
	clients chan *Client
	timeout time.Duration
}

func NewPool(cfg Config) *Pool {
	cfg = cfg.withDefaults()
	pool := &Pool{
		clients: make(chan *Client, cfg.MaxPoolSize),
		timeout: cfg.PoolTimeout,
	}
	for i := 0; i < cfg.MaxPoolSize; i++ {
		pool.clients <- NewClient(cfg)
	}
	return pool
}

func (p *Pool) Get(ctx context.Context) (*Client, error) {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case client := <-p.clients:
		return client, nil
	case <-timer.C:
		return nil, fmt.Errorf("timeout waiting for available client")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) Put(client *Client) {
	select {
	case p.clients <- client:
	default:
	}
}

// Chat borrows a client for one call.
func (p *Pool) Chat(ctx context.Context, msgs []Message, opts ChatOptions) (string, error) {
	client, err := p.Get(ctx)
	if err != nil {
		return "", err
	}
	defer p.Put(client)
	return client.Chat(ctx, msgs, opts)
}

func (p *Pool) Close() error {
	close(p.clients)
	for client := range p.clients {
		client.Close()
	}
	return nil
}
