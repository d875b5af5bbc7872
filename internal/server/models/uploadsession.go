package models

import "time"

// Upload session statuses.
const (
	UploadStatusPending   = "pending"
	UploadStatusCompleted = "completed"
)

// UploadSession is the durable record of one upload attempt. Multiple
// sessions may exist for the same content hash (client retries); they are
// all completed together when a matching completion event arrives. Sessions
// are never deleted and double as an audit trail.
type UploadSession struct {
	ID           string
	ContentHash  string
	OriginalName string
	Extension    string
	Size         int64
	S3Key        string
	Status       string
	UserID       string
	// FileID references the finalized File once the session completes.
	FileID    *int64
	CreatedAt time.Time
}
