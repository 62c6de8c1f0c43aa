// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/unclebandit/bulksms-campaigns/internal/app"
	"github.com/unclebandit/bulksms-campaigns/internal/config"
	"github.com/unclebandit/bulksms-campaigns/internal/controller"
	"github.com/unclebandit/bulksms-campaigns/internal/handler"
	"github.com/unclebandit/bulksms-campaigns/internal/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatalf("load config: %v", err)
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

	router := controller.NewRouter(
		controller.NewCampaignController(a.Service, l),
		handler.NewSystemHandler(a.Scheduler),
		[]byte(cfg.Auth.JWTSecret),
		l,
	)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.Scheduler.Start()

	go func() {
		l.Info("server listening", zap.String("addr", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server stopped unexpectedly", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	l.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.Scheduler.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("http shutdown", zap.Error(err))
	}
	if err := a.Scheduler.Drain(shutdownCtx); err != nil {
		l.Warn("scheduler runs still in flight at shutdown", zap.Error(err))
	}
}
