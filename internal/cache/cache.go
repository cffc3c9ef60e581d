// Package cache persists the job handle of the last run so a debug rerun can
// reuse the job instead of resubmitting it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"splunk-log-downloader/internal/models"
)

// Store holds at most one JobHandle across runs. Load reports absent on a
// missing or malformed record; Save overwrites the record.
type Store interface {
	Load(ctx context.Context) (models.JobHandle, bool)
	Save(ctx context.Context, h models.JobHandle) error
}

// FileStore keeps the record as a single JSON file at a fixed path.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(_ context.Context) (models.JobHandle, bool) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return models.JobHandle{}, false
	}
	var h models.JobHandle
	if err := json.Unmarshal(data, &h); err != nil || h.SID == "" {
		return models.JobHandle{}, false
	}
	return h, true
}

// Save writes to a temp file in the same directory and renames it into place,
// so a concurrent run never reads a half-written record.
func (s *FileStore) Save(_ context.Context, h models.JobHandle) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("encode job handle: %w", err)
	}
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".job_cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
