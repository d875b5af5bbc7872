// Package httpapi exposes the upload-issuance endpoint over HTTP/JSON.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/catforu/filestore/internal/logging"
	"github.com/catforu/filestore/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// Server is the thin HTTP front of the file subsystem. Everything beyond
// decoding and auth lives in the services.
type Server struct {
	addr      string
	uploads   *services.UploadService
	jwtSecret []byte
	logger    logging.Logger
}

func NewServer(addr string, uploads *services.UploadService, secretKey string, logger logging.Logger) *Server {
	return &Server{
		addr:      addr,
		uploads:   uploads,
		jwtSecret: []byte(secretKey),
		logger:    logger.With("module", "http_server"),
	}
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("POST /api/s3/upload-url", s.withLogging(s.withAuth(http.HandlerFunc(s.handleUploadURL))))

	srv := &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "starting HTTP server", "address", s.addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
