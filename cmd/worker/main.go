package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/feichai0017/testcase-generator/config"
	"github.com/feichai0017/testcase-generator/internal/service/testcase"
	"github.com/feichai0017/testcase-generator/pkg/logger"
	"github.com/feichai0017/testcase-generator/pkg/worker"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		panic(err)
	}

	// 初始化日志
	log, err := logger.NewFromConfig(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if !cfg.Queue.Enabled {
		log.Error("Worker requires queue.enabled")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, closeQueue, err := testcase.GetService(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create test case service", logger.Error(err))
		os.Exit(1)
	}
	defer closeQueue()

	w := worker.NewGenerateWorker(cfg.Queue, svc, log.Named("worker"))

	log.Info("Worker starting", logger.Int("concurrency", cfg.Queue.Concurrency))
	if err := w.Start(ctx); err != nil {
		log.Error("Worker stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Worker stopped")
}
