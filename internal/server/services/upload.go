// Package services contains the application services of the file subsystem:
// presigned-upload issuance and document reference counting.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/catforu/filestore/internal/common"
	"github.com/catforu/filestore/internal/logging"
	"github.com/catforu/filestore/internal/s3x"
	"github.com/catforu/filestore/internal/server/models"
	"github.com/catforu/filestore/internal/server/repositories/repomanager"
)

// MaxFileSize is the advisory upload ceiling (1 GiB). The authoritative
// limit is the size constraint baked into the presigned credential and
// enforced by the object store itself.
const MaxFileSize = 1 << 30

// Presigner is the slice of the object-store client the issuer needs.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, size int64, expires time.Duration) (string, http.Header, error)
	FileURL(key string) string
}

// UploadRequest is a client's ask for an upload slot. Hash is the
// client-declared content hash used as the dedup key.
type UploadRequest struct {
	FileName string
	FileSize int64
	FileType string
	Hash     string
	UserID   string
}

// UploadGrant is the issuance result. On the dedup fast path UploadURL is
// empty and Reused is true: the content already exists and FileURL points at
// it.
type UploadGrant struct {
	UploadURL    string
	SignedHeader http.Header
	FileURL      string
	Reused       bool
	Status       string
}

// UploadService decides whether an upload is needed and, if so, grants a
// scoped write credential and records a pending session.
type UploadService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	s3     Presigner
	expiry time.Duration
	logger logging.Logger
}

func NewUploadService(db *sql.DB, repos repomanager.RepositoryManager, s3 Presigner, expiry time.Duration, logger logging.Logger) *UploadService {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &UploadService{
		db:     db,
		repos:  repos,
		s3:     s3,
		expiry: expiry,
		logger: logger.With("module", "upload_service"),
	}
}

// RequestUpload implements the issuance flow: validate, dedup against the
// file registry, then presign and record a pending session. The registry is
// never written here; that happens only when the completion event arrives.
func (s *UploadService) RequestUpload(ctx context.Context, req *UploadRequest) (*UploadGrant, error) {

	if req.FileName == "" || req.FileType == "" || req.Hash == "" || req.FileSize == 0 {
		return nil, fmt.Errorf("%w: fileName, fileSize, fileType and fileMd5 are all required", common.ErrorValidation)
	}
	if req.FileSize < 0 || req.FileSize > MaxFileSize {
		return nil, fmt.Errorf("%w: file size exceeds the 1 GiB limit", common.ErrorValidation)
	}

	// A malformed hash is logged but not rejected: the key constraint in the
	// credential still limits what the client can write, and hard-rejecting
	// here has historically broken buggy-but-honest clients.
	if !s3x.ValidHash(req.Hash) {
		s.logger.Error(ctx, "malformed content hash on upload request",
			"hash", req.Hash, "user_id", req.UserID, "file_name", req.FileName)
	}
	hash := s3x.NormalizeHash(req.Hash)

	existing, err := s.repos.Files(s.db).GetByHash(ctx, hash)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("registry lookup failed: %w", err)
	}
	if existing != nil {
		s.logger.Info(ctx, "duplicate upload deduplicated",
			"hash", hash, "user_id", req.UserID, "file_name", req.FileName)
		return &UploadGrant{
			FileURL: s.s3.FileURL(existing.S3Key),
			Reused:  true,
			Status:  existing.Status,
		}, nil
	}

	key := s3x.BuildKey(hash, req.FileName, req.FileType)

	uploadURL, header, err := s.s3.PresignPut(ctx, key, req.FileType, req.FileSize, s.expiry)
	if err != nil {
		return nil, fmt.Errorf("presign failed: %w", err)
	}

	session := &models.UploadSession{
		ID:           uuid.NewString(),
		ContentHash:  hash,
		OriginalName: req.FileName,
		Extension:    s3x.ExtensionFor(req.FileType, req.FileName),
		Size:         req.FileSize,
		S3Key:        key,
		Status:       models.UploadStatusPending,
		UserID:       req.UserID,
	}
	if err := s.repos.UploadSessions(s.db).Create(ctx, session); err != nil {
		return nil, fmt.Errorf("session create failed: %w", err)
	}

	s.logger.Info(ctx, "upload URL issued",
		"hash", hash, "key", key, "user_id", req.UserID, "file_name", req.FileName)

	return &UploadGrant{
		UploadURL:    uploadURL,
		SignedHeader: header,
		FileURL:      s.s3.FileURL(key),
		Reused:       false,
		Status:       models.UploadStatusPending,
	}, nil
}
