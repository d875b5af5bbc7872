package uploadsessions

import (
	"context"

	"github.com/catforu/filestore/internal/server/models"
)

// Repository persists upload attempts. Sessions are append-only: they move
// from pending to completed and are never deleted.
type Repository interface {
	// Create inserts a new pending session.
	Create(ctx context.Context, session *models.UploadSession) error

	// GetLatestByHash returns the most recent session for a hash regardless
	// of status, or common.ErrorNotFound when no session exists.
	GetLatestByHash(ctx context.Context, hash string) (*models.UploadSession, error)

	// CompletePending marks every still-pending session for a hash as
	// completed, referencing the finalized file. Returns the number of
	// sessions completed.
	CompletePending(ctx context.Context, hash string, fileID int64) (int64, error)
}
