package testcase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feichai0017/testcase-generator/internal/agent/llm"
	"github.com/feichai0017/testcase-generator/internal/agent/prompt"
	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/export"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

// DefaultGenerateTimeout bounds a single model call.
const DefaultGenerateTimeout = 120 * time.Second

// ContentAggregator turns uploaded documents into one ordered sequence.
type ContentAggregator interface {
	Aggregate(ctx context.Context, docs []models.Document) (models.ContentSequence, error)
}

// ReplyParser turns a model reply into records.
type ReplyParser interface {
	Parse(reply string) []models.TestCaseRecord
}

// Result is everything one pipeline run produces.
type Result struct {
	Reply    string
	Records  []models.TestCaseRecord
	Artifact []byte
}

// Pipeline runs walk, compile, generate, parse and export in that order.
type Pipeline struct {
	aggregator ContentAggregator
	compiler   *prompt.Compiler
	generator  llm.Generator
	parser     ReplyParser
	exporter   export.Exporter
	timeout    time.Duration
	logger     logger.ContextLogger
}

func NewPipeline(
	aggregator ContentAggregator,
	compiler *prompt.Compiler,
	generator llm.Generator,
	parser ReplyParser,
	exporter export.Exporter,
	timeout time.Duration,
	log logger.Logger,
) *Pipeline {
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}
	return &Pipeline{
		aggregator: aggregator,
		compiler:   compiler,
		generator:  generator,
		parser:     parser,
		exporter:   exporter,
		timeout:    timeout,
		logger:     logger.NewContextLogger(log),
	}
}

// Exporter is the sink artifacts are written with.
func (p *Pipeline) Exporter() export.Exporter {
	return p.exporter
}

// Run processes docs as one request. No partial result is returned on error.
func (p *Pipeline) Run(ctx context.Context, docs []models.Document) (*Result, error) {
	log := p.logger.FromContext(ctx)

	seq, err := p.aggregator.Aggregate(ctx, docs)
	if err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, models.ErrEmptyExtraction
	}

	req, err := p.compiler.Compile(seq)
	if err != nil {
		return nil, fmt.Errorf("failed to compile prompt: %w", err)
	}

	reply, err := p.generate(ctx, req)
	if err != nil {
		log.Error("Model call failed", logger.Error(err))
		return nil, err
	}

	records := p.parser.Parse(reply)
	if len(records) == 0 {
		log.Warn("Model reply produced no test cases", logger.Int("replyLength", len(reply)))
		return nil, models.ErrNoTestCasesGenerated
	}

	artifact, err := p.exporter.Export(records)
	if err != nil {
		return nil, fmt.Errorf("failed to export test cases: %w", err)
	}

	log.Info("Generated test cases",
		logger.Int("documents", len(docs)),
		logger.Int("units", len(seq)),
		logger.Int("records", len(records)),
	)
	return &Result{Reply: reply, Records: records, Artifact: artifact}, nil
}

func (p *Pipeline) generate(ctx context.Context, req llm.ChatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.generator.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: model call exceeded %s", models.ErrGenerationFailure, p.timeout)
		}
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailure, err)
	}
	return resp.Content, nil
}
