package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/phrazzld/mailtriage/internal/redact"
)

// DBTX abstracts *sql.DB and *sql.Tx so stores work inside or outside a
// transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)

// pingTimeout bounds the connectivity check in Open.
const pingTimeout = 5 * time.Second

// Open connects to the database at url and verifies connectivity.
func Open(ctx context.Context, url string, logger *slog.Logger) (*sql.DB, error) {
	log := logger.With("component", "postgres")

	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrConnect, redact.Error(err))
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		log.ErrorContext(ctx, "database ping failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())

		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: ping timed out after %s", ErrConnect, pingTimeout)
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, fmt.Errorf("%w: network error: %v", ErrConnect, redact.Error(err))
		}
		return nil, fmt.Errorf("%w: %v", ErrConnect, redact.Error(err))
	}

	log.InfoContext(ctx, "database connection verified",
		"url", redact.String(url),
		"duration_ms", time.Since(start).Milliseconds())
	return db, nil
}
