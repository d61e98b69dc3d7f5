package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
	"github.com/feichai0017/testcase-generator/pkg/queue"
)

// JobHandler runs one decoded generation task.
type JobHandler interface {
	HandleJob(ctx context.Context, task *queue.Task) error
}

type GenerateWorker struct {
	BaseWorker
	handler JobHandler
}

func NewGenerateWorker(cfg queue.Config, handler JobHandler, log logger.Logger) *GenerateWorker {
	w := &GenerateWorker{
		BaseWorker: newBaseWorker(cfg, log),
		handler:    handler,
	}
	// 注册任务处理器
	w.mux.HandleFunc(queue.TaskTypeGenerate, w.handleGenerate)
	return w
}

func (w *GenerateWorker) handleGenerate(ctx context.Context, t *asynq.Task) error {
	task, err := queue.DecodeTask(t.Payload())
	if err != nil {
		w.logger.Error("Invalid generate task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("Processing generate task",
		logger.String("taskId", task.ID),
		logger.Int("uploads", len(task.Uploads)),
	)

	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write([]byte(`{"status":"running"}`)); err != nil {
			w.logger.Warn("Failed to write task status", logger.Error(err))
		}
	}

	if err := w.handler.HandleJob(ctx, task); err != nil {
		w.logger.Error("Generate task failed",
			logger.String("taskId", task.ID),
			logger.Error(err),
		)
		if !retryable(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	w.logger.Info("Generate task completed", logger.String("taskId", task.ID))
	return nil
}

// Only model-call failures are worth another attempt. Bad inputs and empty
// replies fail the same way every time.
func retryable(err error) bool {
	switch {
	case errors.Is(err, models.ErrInvalidUpload),
		errors.Is(err, models.ErrUnreadableDocument),
		errors.Is(err, models.ErrEmptyExtraction),
		errors.Is(err, models.ErrNoTestCasesGenerated):
		return false
	default:
		return true
	}
}
