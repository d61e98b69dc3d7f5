package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/testcase-generator/pkg/logger"
	"github.com/feichai0017/testcase-generator/pkg/queue"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

type BaseWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger logger.Logger
}

func newBaseWorker(cfg queue.Config, log logger.Logger) BaseWorker {
	server := asynq.NewServer(cfg.RedisOpt(), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      queue.Weights(),
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			if cfg.RetryDelay > 0 {
				return time.Duration(n) * cfg.RetryDelay
			}
			return asynq.DefaultRetryDelayFunc(n, err, task)
		},
	})
	return BaseWorker{server: server, mux: asynq.NewServeMux(), logger: log}
}

// Start runs the asynq server until ctx is done.
func (w *BaseWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}

func (w *BaseWorker) Stop() error {
	w.server.Shutdown()
	return nil
}
