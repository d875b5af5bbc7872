package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/catforu/filestore/internal/dbx"
	"github.com/catforu/filestore/internal/logging"
	"github.com/catforu/filestore/internal/s3x"
	"github.com/catforu/filestore/internal/server/blocks"
	"github.com/catforu/filestore/internal/server/models"
	"github.com/catforu/filestore/internal/server/repositories/repomanager"
)

// RefCountService keeps file reference counts in step with document bodies.
// Both operations run on a caller-supplied transaction handle so the count
// change and the document write commit or roll back together.
type RefCountService struct {
	repos     repomanager.RepositoryManager
	urlPrefix string
	logger    logging.Logger
}

func NewRefCountService(repos repomanager.RepositoryManager, urlPrefix string, logger logging.Logger) *RefCountService {
	return &RefCountService{
		repos:     repos,
		urlPrefix: urlPrefix,
		logger:    logger.With("module", "refcount_service"),
	}
}

// ApplyDelta diffs the file hashes embedded in prev and next bodies and
// applies +1/-1 to the registry on the given transaction. Pass prev=nil on
// document creation: every hash in next counts as added. Decrements are
// floored at zero by the repository.
func (s *RefCountService) ApplyDelta(ctx context.Context, tx dbx.DBTX, next, prev []byte) (added, removed []string, err error) {
	nextSet := blocks.CollectHashes(blocks.Normalize(next), s.urlPrefix)
	prevSet := map[string]struct{}{}
	if prev != nil {
		prevSet = blocks.CollectHashes(blocks.Normalize(prev), s.urlPrefix)
	}

	for hash := range nextSet {
		if _, ok := prevSet[hash]; !ok {
			added = append(added, hash)
		}
	}
	for hash := range prevSet {
		if _, ok := nextSet[hash]; !ok {
			removed = append(removed, hash)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	repo := s.repos.Files(tx)
	if len(added) > 0 {
		if err := repo.IncrementRefCounts(ctx, added); err != nil {
			return nil, nil, fmt.Errorf("increment failed: %w", err)
		}
	}
	if len(removed) > 0 {
		if err := repo.DecrementRefCounts(ctx, removed); err != nil {
			return nil, nil, fmt.Errorf("decrement failed: %w", err)
		}
	}

	return added, removed, nil
}

// ResolveDisplayURLs rewrites the media URLs of blocks whose file has
// reached optimized status so readers get the optimized object. Files that
// are still uploading, not yet optimized or unknown keep their original URL.
// Read-only: returns a new body and never touches document storage.
func (s *RefCountService) ResolveDisplayURLs(ctx context.Context, tx dbx.DBTX, body []byte) ([]byte, error) {
	blks := blocks.Normalize(body)
	hashSet := blocks.CollectHashes(blks, s.urlPrefix)
	if len(hashSet) == 0 {
		return body, nil
	}

	hashes := make([]string, 0, len(hashSet))
	for hash := range hashSet {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)

	rows, err := s.repos.Files(tx).SelectByHashes(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("status lookup failed: %w", err)
	}

	optimized := make(map[string]string, len(rows))
	for _, f := range rows {
		if f.Status != models.FileStatusOptimized || f.S3Key == "" {
			continue
		}
		optimized[s3x.NormalizeHash(f.ContentHash)] = s3x.KeyToURL(s.urlPrefix, f.S3Key)
	}
	if len(optimized) == 0 {
		return body, nil
	}

	mapped := blocks.MapMediaURLs(blks, func(u string) string {
		hash, ok := s3x.HashFromURL(u, s.urlPrefix)
		if !ok {
			return u
		}
		if target, ok := optimized[hash]; ok {
			return target
		}
		return u
	})

	out, err := json.Marshal(mapped)
	if err != nil {
		return nil, fmt.Errorf("body marshal failed: %w", err)
	}
	return out, nil
}
