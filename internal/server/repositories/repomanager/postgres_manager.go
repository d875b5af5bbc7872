package repomanager

import (
	"context"
	"database/sql"

	"github.com/catforu/filestore/internal/dbx"
	"github.com/catforu/filestore/internal/server/migrations"
	"github.com/catforu/filestore/internal/server/repositories/boards"
	"github.com/catforu/filestore/internal/server/repositories/files"
	"github.com/catforu/filestore/internal/server/repositories/uploadsessions"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Files(db dbx.DBTX) files.Repository {
	return files.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) UploadSessions(db dbx.DBTX) uploadsessions.Repository {
	return uploadsessions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Boards(db dbx.DBTX) boards.Repository {
	return boards.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}
