package models

import "time"

// File statuses. A file is "uploaded" once its bytes are confirmed in the
// object store and "optimized" once the optimization pipeline has rewritten it.
const (
	FileStatusUploaded  = "uploaded"
	FileStatusOptimized = "optimized"
)

// File is the finalized registry record for one piece of content, keyed by
// its content hash. RefCount tracks how many live documents embed it.
type File struct {
	ID           int64
	ContentHash  string
	OriginalName string
	Extension    string
	Size         int64
	S3Key        string
	Status       string
	NeedOptimize bool
	RefCount     int64
	UpdatedAt    time.Time
}
