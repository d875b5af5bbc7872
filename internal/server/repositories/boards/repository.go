package boards

import (
	"context"
	"time"

	"github.com/catforu/filestore/internal/server/models"
)

// Repository is the narrow view of the board table this subsystem needs:
// finding soft-deleted documents past the grace period and purging them.
// Board lifecycle is otherwise owned by the board subsystem.
type Repository interface {
	// SelectPurgeable returns up to limit soft-deleted boards whose last
	// update is at or before cutoff, oldest first.
	SelectPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*models.Board, error)

	// Delete hard-deletes a board row.
	Delete(ctx context.Context, id int64) error
}
