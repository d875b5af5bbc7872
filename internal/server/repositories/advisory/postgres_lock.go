package advisory

import (
	"context"
	"fmt"

	"github.com/catforu/filestore/internal/dbx"
)

// PostgresLock implements Lock over Postgres advisory locks. Advisory locks
// are session-scoped, so the DBTX passed in must pin a single connection
// (a *sql.Conn, not a pooled *sql.DB) for the whole acquire/release span.
type PostgresLock struct {
	db dbx.DBTX
}

func NewPostgresLock(db dbx.DBTX) *PostgresLock {
	return &PostgresLock{db: db}
}

func (l *PostgresLock) TryAcquire(ctx context.Context, name string) (bool, error) {
	var got bool
	err := l.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, name).Scan(&got)
	if err != nil {
		return false, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	return got, nil
}

func (l *PostgresLock) Release(ctx context.Context, name string) error {
	var released bool
	err := l.db.QueryRowContext(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, name).Scan(&released)
	if err != nil {
		return fmt.Errorf("failed to release advisory lock: %w", err)
	}
	if !released {
		return fmt.Errorf("advisory lock %q was not held", name)
	}
	return nil
}
