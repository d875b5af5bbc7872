package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/catforu/filestore/internal/common"
	"github.com/catforu/filestore/internal/dbx"
	"github.com/catforu/filestore/internal/server/models"
)

// PostgresRepository implements the file registry over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByHash(ctx context.Context, hash string) (*models.File, error) {
	query := `SELECT id, content_hash, original_name, extension, size, s3_key, status, need_optimize, ref_count, updated_at
		FROM files WHERE content_hash = $1`

	f := &models.File{}
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&f.ID, &f.ContentHash, &f.OriginalName, &f.Extension, &f.Size,
		&f.S3Key, &f.Status, &f.NeedOptimize, &f.RefCount, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// Upsert is first-writer-wins on create; on conflict it refreshes the volatile
// fields. The CASE guards keep status, key, extension and need_optimize frozen
// once the row has reached 'optimized', unless the incoming event is itself an
// optimized one.
func (r *PostgresRepository) Upsert(ctx context.Context, file *models.File) (int64, error) {
	query := `
		INSERT INTO files (content_hash, original_name, extension, size, s3_key, status, need_optimize, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (content_hash)
		DO UPDATE SET
			s3_key        = CASE WHEN files.status = 'optimized' AND EXCLUDED.status <> 'optimized' THEN files.s3_key ELSE EXCLUDED.s3_key END,
			status        = CASE WHEN files.status = 'optimized' THEN files.status ELSE EXCLUDED.status END,
			extension     = CASE WHEN files.status = 'optimized' AND EXCLUDED.status <> 'optimized' THEN files.extension ELSE EXCLUDED.extension END,
			need_optimize = CASE WHEN files.status = 'optimized' OR EXCLUDED.status = 'optimized' THEN false ELSE EXCLUDED.need_optimize END,
			updated_at    = now()
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		file.ContentHash, file.OriginalName, file.Extension, file.Size,
		file.S3Key, file.Status, file.NeedOptimize).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert file: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) SelectByHashes(ctx context.Context, hashes []string) ([]*models.File, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	query := `SELECT id, content_hash, original_name, extension, size, s3_key, status, need_optimize, ref_count, updated_at
		FROM files WHERE content_hash IN (` + placeholders(len(hashes), 1) + `)`

	rows, err := r.db.QueryContext(ctx, query, toAnySlice(hashes)...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f := &models.File{}
		if err := rows.Scan(&f.ID, &f.ContentHash, &f.OriginalName, &f.Extension, &f.Size,
			&f.S3Key, &f.Status, &f.NeedOptimize, &f.RefCount, &f.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) IncrementRefCounts(ctx context.Context, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}

	query := `UPDATE files SET ref_count = ref_count + 1, updated_at = now()
		WHERE content_hash IN (` + placeholders(len(hashes), 1) + `)`

	if _, err := r.db.ExecContext(ctx, query, toAnySlice(hashes)...); err != nil {
		return fmt.Errorf("failed to increment ref counts: %w", err)
	}
	return nil
}

// DecrementRefCounts floors at zero via GREATEST rather than trusting the
// caller; a decrement that would go negative settles at zero.
func (r *PostgresRepository) DecrementRefCounts(ctx context.Context, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}

	query := `UPDATE files SET ref_count = GREATEST(ref_count - 1, 0), updated_at = now()
		WHERE content_hash IN (` + placeholders(len(hashes), 1) + `)`

	if _, err := r.db.ExecContext(ctx, query, toAnySlice(hashes)...); err != nil {
		return fmt.Errorf("failed to decrement ref counts: %w", err)
	}
	return nil
}

// placeholders renders "$start, $start+1, ..." for n parameters.
func placeholders(n, start int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("$")
		b.WriteString(strconv.Itoa(start + i))
	}
	return b.String()
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
