package boards

import (
	"context"
	"fmt"
	"time"

	"github.com/catforu/filestore/internal/dbx"
	"github.com/catforu/filestore/internal/server/models"
)

// PostgresRepository implements the board view over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) SelectPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*models.Board, error) {
	query := `SELECT id, board_content, updated_at FROM boards
		WHERE is_deleted = true AND updated_at <= $1
		ORDER BY updated_at ASC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select purgeable boards: %w", err)
	}
	defer rows.Close()

	var result []*models.Board
	for rows.Next() {
		b := &models.Board{IsDeleted: true}
		if err := rows.Scan(&b.ID, &b.Content, &b.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM boards WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}
