package testcase

import (
	"context"
	"fmt"

	"github.com/feichai0017/testcase-generator/config"
	"github.com/feichai0017/testcase-generator/internal/agent"
	"github.com/feichai0017/testcase-generator/internal/agent/document"
	"github.com/feichai0017/testcase-generator/internal/agent/llm"
	"github.com/feichai0017/testcase-generator/internal/agent/parser"
	"github.com/feichai0017/testcase-generator/internal/agent/prompt"
	"github.com/feichai0017/testcase-generator/internal/agent/vision"
	"github.com/feichai0017/testcase-generator/internal/utils/validator"
	"github.com/feichai0017/testcase-generator/pkg/export"
	"github.com/feichai0017/testcase-generator/pkg/logger"
	"github.com/feichai0017/testcase-generator/pkg/queue"
	"github.com/feichai0017/testcase-generator/pkg/storage"
)

// NewPipelineFromConfig builds the extraction and generation chain. The
// component detector is created here but loaded on first use.
func NewPipelineFromConfig(ctx context.Context, cfg *config.Config, log logger.Logger) (*Pipeline, error) {
	loader, err := vision.NewDetectorLoader(cfg.Detector, log.Named("detector"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize detector: %w", err)
	}
	detector := vision.NewSharedDetector(loader, log.Named("detector"))
	recognizer := vision.NewTesseractRecognizer(cfg.OCR, log.Named("ocr"))

	analyzer, err := vision.NewAnalyzer(recognizer, detector, log.Named("vision"), vision.WithCache(cfg.CacheSize))
	if err != nil {
		return nil, err
	}

	factory := agent.NewWalkerFactory(analyzer, document.Scratch{Dir: cfg.Scratch.Dir}, log.Named("walker"))
	aggregator := agent.NewAggregator(factory, log.Named("aggregator"))

	generator, err := llm.NewGenerator(ctx, cfg.LLM, log.Named("llm"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm: %w", err)
	}

	exporter, err := export.NewExporter(cfg.Export.Format)
	if err != nil {
		return nil, err
	}

	compiler := prompt.NewCompiler(
		prompt.WithModel(cfg.LLM.Model),
		prompt.WithTemperature(cfg.LLM.Temperature),
		prompt.WithMaxTokens(cfg.LLM.MaxTokens),
	)

	return NewPipeline(
		aggregator,
		compiler,
		generator,
		parser.NewResponseParser(log.Named("parser")),
		exporter,
		cfg.LLM.Timeout,
		log.Named("pipeline"),
	), nil
}

// GetService builds the full service. The returned close function releases
// the queue connections, if any.
func GetService(ctx context.Context, cfg *config.Config, log logger.Logger) (*TestCaseService, func() error, error) {
	pipeline, err := NewPipelineFromConfig(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	// 初始化存储
	store, err := storage.NewStorage(ctx, cfg.Storage, log.Named("storage"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// 初始化队列
	var q queue.Queue
	closeFn := func() error { return nil }
	if cfg.Queue.Enabled {
		aq, err := queue.NewAsynqQueue(cfg.Queue)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize queue: %w", err)
		}
		q, closeFn = aq, aq.Close
	}

	svc := NewService(
		validator.NewUploadValidator(cfg.Upload, log.Named("validator")),
		pipeline,
		store,
		q,
		log.Named("service"),
		Config{
			ScratchDir: cfg.Scratch.Dir,
			Retention:  cfg.Retention.Period,
		},
	)
	return svc, closeFn, nil
}
