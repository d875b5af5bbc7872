package uploadsessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/catforu/filestore/internal/common"
	"github.com/catforu/filestore/internal/dbx"
	"github.com/catforu/filestore/internal/server/models"
)

// PostgresRepository implements the session store over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, session *models.UploadSession) error {
	query := `INSERT INTO upload_sessions (id, content_hash, original_name, extension, size, s3_key, status, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`

	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.ContentHash, session.OriginalName, session.Extension,
		session.Size, session.S3Key, session.Status, session.UserID)
	if err != nil {
		return fmt.Errorf("failed to create upload session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetLatestByHash(ctx context.Context, hash string) (*models.UploadSession, error) {
	query := `SELECT id, content_hash, original_name, extension, size, s3_key, status, user_id, file_id, created_at
		FROM upload_sessions WHERE content_hash = $1
		ORDER BY created_at DESC LIMIT 1`

	s := &models.UploadSession{}
	var fileID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&s.ID, &s.ContentHash, &s.OriginalName, &s.Extension, &s.Size,
		&s.S3Key, &s.Status, &s.UserID, &fileID, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select upload session: %w", err)
	}
	if fileID.Valid {
		s.FileID = &fileID.Int64
	}
	return s, nil
}

func (r *PostgresRepository) CompletePending(ctx context.Context, hash string, fileID int64) (int64, error) {
	query := `UPDATE upload_sessions SET status = 'completed', file_id = $2
		WHERE content_hash = $1 AND status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, hash, fileID)
	if err != nil {
		return 0, fmt.Errorf("failed to complete upload sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
