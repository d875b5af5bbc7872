// Package repomanager is the factory tying repositories together. Services
// hold a RepositoryManager plus a *sql.DB and bind repositories either to
// the DB or to a transaction handle, so a whole reconciliation can share one
// transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/catforu/filestore/internal/dbx"
	"github.com/catforu/filestore/internal/server/repositories/boards"
	"github.com/catforu/filestore/internal/server/repositories/files"
	"github.com/catforu/filestore/internal/server/repositories/uploadsessions"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Files(db dbx.DBTX) files.Repository
	UploadSessions(db dbx.DBTX) uploadsessions.Repository
	Boards(db dbx.DBTX) boards.Repository
}
