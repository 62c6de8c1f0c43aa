// cmd/worker/main.go runs the scheduler without the HTTP API, for deployments
// that split due-campaign execution into its own process.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/unclebandit/bulksms-campaigns/internal/app"
	"github.com/unclebandit/bulksms-campaigns/internal/config"
	"github.com/unclebandit/bulksms-campaigns/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("worker requires DATABASE_URL: the in-memory store is not shared with the API")
	}

	l, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, l)
	if err != nil {
		l.Fatal("failed to initialise backends", zap.Error(err))
	}
	defer a.Close()

	if err := a.LogEvents(); err != nil {
		l.Fatal("failed to subscribe to campaign events", zap.Error(err))
	}

	a.Scheduler.Start()
	l.Info("worker started", zap.Duration("interval", cfg.Scheduler.Interval))

	<-ctx.Done()
	a.Scheduler.Stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := a.Scheduler.Drain(drainCtx); err != nil {
		l.Warn("scheduler runs still in flight at shutdown", zap.Error(err))
	}
	l.Info("worker stopped")
}
