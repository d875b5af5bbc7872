package models

import "time"

// Board is the slice of a document this subsystem needs: the body (a block
// tree serialized as JSON) and the soft-delete bookkeeping the retention
// sweeper works from. Document lifecycle is owned by the board subsystem.
type Board struct {
	ID        int64
	Content   []byte
	IsDeleted bool
	UpdatedAt time.Time
}
