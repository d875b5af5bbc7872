// Package sweeper reclaims file references held by soft-deleted documents
// once their grace period runs out, then purges the documents.
package sweeper

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/catforu/filestore/internal/dbx"
	"github.com/catforu/filestore/internal/logging"
	"github.com/catforu/filestore/internal/server/blocks"
	"github.com/catforu/filestore/internal/server/repositories/advisory"
	"github.com/catforu/filestore/internal/server/repositories/repomanager"
)

const (
	// lockName keys the cluster-wide advisory lock: one sweep run globally.
	lockName = "cron:purge_deleted_boards"

	pageSize = 100
)

// Sweeper periodically hard-deletes soft-deleted boards past the grace
// period and decrements the reference counts of the files they embedded.
type Sweeper struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	urlPrefix string
	grace     time.Duration
	interval  time.Duration
	logger    logging.Logger
}

func NewSweeper(db *sql.DB, repos repomanager.RepositoryManager, urlPrefix string, grace, interval time.Duration, logger logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Sweeper{
		db:        db,
		repos:     repos,
		urlPrefix: urlPrefix,
		grace:     grace,
		interval:  interval,
		logger:    logger.With("module", "retention_sweeper"),
	}
}

// Run fires SweepOnce on the configured schedule until the context is
// canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "retention sweeper scheduled", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Warn(ctx, "sweep run failed", "error", err.Error())
			}
		}
	}
}

// SweepOnce performs one full sweep. When another instance already holds the
// lock the run is a silent no-op, which is how horizontally scaled
// deployments avoid double sweeps. Returns the number of boards purged.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	// Advisory locks are session-scoped: pin one connection for the whole
	// acquire/work/release span.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	lock := advisory.NewPostgresLock(conn)
	got, err := lock.TryAcquire(ctx, lockName)
	if err != nil {
		return 0, err
	}
	if !got {
		return 0, nil
	}
	defer func() {
		if err := lock.Release(ctx, lockName); err != nil {
			s.logger.Warn(ctx, "lock release failed", "error", err.Error())
		}
	}()

	cutoff := time.Now().Add(-s.grace)
	purged := 0
	failed := 0

	for {
		page, err := s.repos.Boards(s.db).SelectPurgeable(ctx, cutoff, pageSize)
		if err != nil {
			return purged, err
		}
		if len(page) == 0 {
			break
		}

		progressed := false
		for _, board := range page {
			if err := s.purgeBoard(ctx, board.ID, board.Content); err != nil {
				// Partial progress is fine: a re-run only sees what is left.
				s.logger.Warn(ctx, "board purge failed, continuing", "board_id", board.ID, "error", err.Error())
				failed++
				continue
			}
			purged++
			progressed = true
		}
		if !progressed {
			break
		}
	}

	s.logger.Info(ctx, "sweep finished", "purged", purged, "failed", failed)
	return purged, nil
}

// purgeBoard decrements every file referenced by the board body and deletes
// the board row, atomically.
func (s *Sweeper) purgeBoard(ctx context.Context, id int64, content []byte) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		hashSet := blocks.CollectHashes(blocks.Normalize(content), s.urlPrefix)

		if len(hashSet) > 0 {
			hashes := make([]string, 0, len(hashSet))
			for hash := range hashSet {
				hashes = append(hashes, hash)
			}
			sort.Strings(hashes)

			if err := s.repos.Files(tx).DecrementRefCounts(ctx, hashes); err != nil {
				return err
			}
		}

		return s.repos.Boards(tx).Delete(ctx, id)
	})
}
