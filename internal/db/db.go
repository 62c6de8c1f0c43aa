// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to Postgres through lib/pq and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS campaigns (
        id                  UUID PRIMARY KEY,
        user_id             TEXT NOT NULL,
        name                TEXT NOT NULL,
        message             TEXT NOT NULL,
        recipient_numbers   TEXT[] NOT NULL DEFAULT '{}',
        total_recipients    INTEGER NOT NULL DEFAULT 0,
        target_inventory    TEXT NOT NULL DEFAULT '',
        audience_type       TEXT NOT NULL DEFAULT '',
        campaign_purpose    TEXT NOT NULL DEFAULT '',
        selected_countries  TEXT[] NOT NULL DEFAULT '{}',
        tags                TEXT NOT NULL DEFAULT '',
        is_from_csv         BOOLEAN NOT NULL DEFAULT FALSE,
        csv_file_name       TEXT NOT NULL DEFAULT '',
        contact_source_info TEXT NOT NULL DEFAULT '',
        status              TEXT NOT NULL DEFAULT 'draft'
            CHECK (status IN ('draft','scheduled','sending','completed','failed','cancelled')),
        is_scheduled        BOOLEAN NOT NULL DEFAULT FALSE,
        scheduled_date_time TIMESTAMPTZ,
        started_at          TIMESTAMPTZ,
        completed_at        TIMESTAMPTZ,
        message_statuses    JSONB NOT NULL DEFAULT '[]',
        sent_count          INTEGER NOT NULL DEFAULT 0,
        delivered_count     INTEGER NOT NULL DEFAULT 0,
        failed_count        INTEGER NOT NULL DEFAULT 0,
        pending_count       INTEGER NOT NULL DEFAULT 0,
        created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_campaigns_user_created ON campaigns (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns (status)`,
	`CREATE INDEX IF NOT EXISTS idx_campaigns_scheduled ON campaigns (scheduled_date_time) WHERE status = 'scheduled'`,
}

// Migrate creates the campaigns table and its indexes. It is idempotent.
func Migrate(ctx context.Context, conn *sql.DB) error {
	for i, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}

// ExecFile runs the contents of a SQL file as a single statement batch.
func ExecFile(ctx context.Context, conn *sql.DB, contents string) error {
	if _, err := conn.ExecContext(ctx, contents); err != nil {
		return fmt.Errorf("exec sql: %w", err)
	}
	return nil
}
