package files

import (
	"context"

	"github.com/catforu/filestore/internal/server/models"
)

// Repository is the file registry: one row per content hash, tracking the
// storage key, optimization status and reference count.
type Repository interface {
	// GetByHash returns the registry record for a hash, or
	// common.ErrorNotFound.
	GetByHash(ctx context.Context, hash string) (*models.File, error)

	// Upsert creates the record for a hash or refreshes it in place. The
	// update never regresses an already-optimized file back to uploaded,
	// so duplicate and out-of-order completion events are absorbed.
	// Returns the stored record's id.
	Upsert(ctx context.Context, file *models.File) (int64, error)

	// SelectByHashes returns the registry rows for all given hashes in one
	// query. Unknown hashes are simply absent from the result.
	SelectByHashes(ctx context.Context, hashes []string) ([]*models.File, error)

	// IncrementRefCounts adds one reference to each of the given hashes.
	IncrementRefCounts(ctx context.Context, hashes []string) error

	// DecrementRefCounts removes one reference from each of the given
	// hashes. The count is floored at zero in SQL so lost or duplicated
	// decrements can never drive it negative.
	DecrementRefCounts(ctx context.Context, hashes []string) error
}
