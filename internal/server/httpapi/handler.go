package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/catforu/filestore/internal/common"
	"github.com/catforu/filestore/internal/server/services"
)

// uploadURLRequest mirrors the client contract. fileSize arrives as a JSON
// number or a numeric string; both are accepted.
type uploadURLRequest struct {
	FileName string   `json:"fileName"`
	FileSize flexSize `json:"fileSize"`
	FileType string   `json:"fileType"`
	FileMD5  string   `json:"fileMd5"`
}

// flexSize decodes an int64 from either a JSON number or a quoted numeric
// string.
type flexSize int64

func (n *flexSize) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*n = flexSize(v)
	return nil
}

type uploadURLResponse struct {
	UploadURL string   `json:"uploadUrl,omitempty"`
	FileURL   string   `json:"fileUrl"`
	Reused    bool     `json:"reused"`
	Status    string   `json:"status"`
	Headers   []string `json:"signedHeaders,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	grant, err := s.uploads.RequestUpload(r.Context(), &services.UploadRequest{
		FileName: req.FileName,
		FileSize: int64(req.FileSize),
		FileType: req.FileType,
		Hash:     req.FileMD5,
		UserID:   userID,
	})
	if err != nil {
		if errors.Is(err, common.ErrorValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error(r.Context(), "upload URL issuance failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to issue upload URL")
		return
	}

	resp := uploadURLResponse{
		UploadURL: grant.UploadURL,
		FileURL:   grant.FileURL,
		Reused:    grant.Reused,
		Status:    grant.Status,
	}
	for name := range grant.SignedHeader {
		resp.Headers = append(resp.Headers, name)
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
