// cmd/migrate/main.go applies the campaigns schema, then executes any SQL
// files given as arguments in order (e.g. seed data).
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/unclebandit/bulksms-campaigns/internal/db"
	"github.com/unclebandit/bulksms-campaigns/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	l, err := logger.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer l.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		l.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, dsn)
	if err != nil {
		l.Fatal("failed to connect", zap.Error(err))
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		l.Fatal("migration failed", zap.Error(err))
	}
	l.Info("schema up to date")

	for _, file := range os.Args[1:] {
		content, err := os.ReadFile(file)
		if err != nil {
			l.Fatal("failed to read seed file", zap.String("file", file), zap.Error(err))
		}
		if err := db.ExecFile(ctx, conn, string(content)); err != nil {
			l.Fatal("failed to execute seed file", zap.String("file", file), zap.Error(err))
		}
		l.Info("seeded", zap.String("file", file))
	}
}
