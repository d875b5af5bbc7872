package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catforu/filestore/internal/common"
	"github.com/catforu/filestore/internal/logging"
	"github.com/catforu/filestore/internal/server/repositories/repomanager"
)

var testHash = strings.Repeat("a", 32)

type fakePresigner struct {
	presignCalls int
	lastKey      string
	presignErr   error
}

func (f *fakePresigner) PresignPut(ctx context.Context, key, contentType string, size int64, expires time.Duration) (string, http.Header, error) {
	f.presignCalls++
	f.lastKey = key
	if f.presignErr != nil {
		return "", nil, f.presignErr
	}
	return "https://bucket.example.com/put/" + key, http.Header{"Content-Type": nil}, nil
}

func (f *fakePresigner) FileURL(key string) string {
	return "https://cdn.example.com/" + key
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func newServiceWithMock(t *testing.T) (*UploadService, *fakePresigner, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	presigner := &fakePresigner{}
	svc := NewUploadService(db, repomanager.NewPostgresRepositoryManager(), presigner, time.Hour, discardLogger())
	return svc, presigner, mock, db
}

func validRequest() *UploadRequest {
	return &UploadRequest{
		FileName: "cat.png",
		FileSize: 1000,
		FileType: "image/png",
		Hash:     testHash,
		UserID:   "u1",
	}
}

func TestRequestUpload_MissingFields(t *testing.T) {
	svc, presigner, _, _ := newServiceWithMock(t)

	for _, mutate := range []func(*UploadRequest){
		func(r *UploadRequest) { r.FileName = "" },
		func(r *UploadRequest) { r.FileSize = 0 },
		func(r *UploadRequest) { r.FileType = "" },
		func(r *UploadRequest) { r.Hash = "" },
	} {
		req := validRequest()
		mutate(req)
		_, err := svc.RequestUpload(context.Background(), req)
		require.ErrorIs(t, err, common.ErrorValidation)
	}
	assert.Zero(t, presigner.presignCalls)
}

func TestRequestUpload_TooLarge(t *testing.T) {
	svc, _, _, _ := newServiceWithMock(t)

	req := validRequest()
	req.FileSize = MaxFileSize + 1
	_, err := svc.RequestUpload(context.Background(), req)
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestRequestUpload_DedupFastPath(t *testing.T) {
	svc, presigner, mock, _ := newServiceWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM files WHERE content_hash = \$1`).
		WithArgs(testHash).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content_hash", "original_name", "extension", "size", "s3_key", "status", "need_optimize", "ref_count", "updated_at"}).
			AddRow(int64(1), testHash, "cat.png", "webp", int64(1000), "optimized/"+testHash+".webp", "optimized", false, int64(3), time.Now()))

	grant, err := svc.RequestUpload(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, grant.Reused)
	assert.Empty(t, grant.UploadURL, "no new credential on the dedup path")
	assert.Equal(t, "https://cdn.example.com/optimized/"+testHash+".webp", grant.FileURL)
	assert.Equal(t, "optimized", grant.Status)
	assert.Zero(t, presigner.presignCalls, "dedup must not presign")
	require.NoError(t, mock.ExpectationsWereMet(), "no session may be written on the dedup path")
}

func TestRequestUpload_NewContent(t *testing.T) {
	svc, presigner, mock, _ := newServiceWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM files WHERE content_hash = \$1`).
		WithArgs(testHash).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectExec(`INSERT INTO upload_sessions`).
		WithArgs(sqlmock.AnyArg(), testHash, "cat.png", "png", int64(1000), "incoming/"+testHash+".png", "pending", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	grant, err := svc.RequestUpload(context.Background(), validRequest())
	require.NoError(t, err)

	assert.False(t, grant.Reused)
	assert.Equal(t, "pending", grant.Status)
	assert.Equal(t, "https://bucket.example.com/put/incoming/"+testHash+".png", grant.UploadURL)
	assert.Equal(t, "https://cdn.example.com/incoming/"+testHash+".png", grant.FileURL)
	assert.Equal(t, 1, presigner.presignCalls)
	assert.Equal(t, "incoming/"+testHash+".png", presigner.lastKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

// A malformed declared hash is logged but still served; the lookup runs on
// the lowercased value as-is.
func TestRequestUpload_MalformedHashIsLenient(t *testing.T) {
	svc, _, mock, _ := newServiceWithMock(t)

	badHash := "NOT-A-REAL-HASH"
	mock.ExpectQuery(`(?s)SELECT .* FROM files WHERE content_hash = \$1`).
		WithArgs("not-a-real-hash").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO upload_sessions`).
		WithArgs(sqlmock.AnyArg(), "not-a-real-hash", "cat.png", "png", int64(1000), "incoming/not-a-real-hash.png", "pending", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := validRequest()
	req.Hash = badHash
	grant, err := svc.RequestUpload(context.Background(), req)
	require.NoError(t, err, "malformed hash must not block issuance")
	assert.False(t, grant.Reused)
}

func TestRequestUpload_PresignFailure(t *testing.T) {
	svc, presigner, mock, _ := newServiceWithMock(t)

	presigner.presignErr = errors.New("s3 down")
	mock.ExpectQuery(`(?s)SELECT .* FROM files WHERE content_hash = \$1`).
		WithArgs(testHash).
		WillReturnError(sql.ErrNoRows)

	_, err := svc.RequestUpload(context.Background(), validRequest())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet(), "no session row when presign fails")
}

func TestRequestUpload_RegistryLookupFailure(t *testing.T) {
	svc, _, mock, _ := newServiceWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM files WHERE content_hash = \$1`).
		WithArgs(testHash).
		WillReturnError(errors.New("db down"))

	_, err := svc.RequestUpload(context.Background(), validRequest())
	require.Error(t, err)
	require.NotErrorIs(t, err, common.ErrorValidation)
}
