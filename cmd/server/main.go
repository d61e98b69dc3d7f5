package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/testcase-generator/api/handlers"
	"github.com/feichai0017/testcase-generator/api/routes"
	"github.com/feichai0017/testcase-generator/config"
	"github.com/feichai0017/testcase-generator/internal/service/testcase"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		panic(err)
	}

	// init logger
	log, err := logger.NewFromConfig(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, closeQueue, err := testcase.GetService(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize test case service", logger.Error(err))
	}
	defer closeQueue()

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, handlers.NewHandlers(svc, log.Named("http")), log.Named("http"), cfg.Server.AllowOrigins)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return runJanitor(gctx, svc, cfg.Retention.Interval, log.Named("janitor"))
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// runJanitor removes expired artifacts every interval until ctx is done.
func runJanitor(ctx context.Context, svc *testcase.TestCaseService, interval time.Duration, log logger.Logger) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := svc.CleanupArtifacts(ctx); err != nil {
				log.Warn("Artifact cleanup failed", logger.Error(err))
			}
		}
	}
}
