// Package state persists the estimator's running record between runs.
package state

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/theluke/petsafe-smartfeed/internal/model"
)

// Store abstracts estimator state persistence so the estimator never touches
// the filesystem directly.
type Store interface {
	// Load returns the persisted state, or defaults when nothing usable is
	// on disk. It never fails the caller.
	Load() *model.EstimatorState
	// Save writes the state. Called exactly once per estimation run.
	Save(st *model.EstimatorState) error
	// Reset discards the persisted state entirely.
	Reset() error
}

// FileStore keeps the state as a single JSON file.
type FileStore struct {
	Path string
}

// NewFileStore creates a file-backed store, creating the parent directory if
// needed.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	return &FileStore{Path: path}, nil
}

// Load reads the state file. Missing or malformed content degrades to
// defaults with a log line; the run continues either way.
func (s *FileStore) Load() *model.EstimatorState {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[INFO] no state file at %s, starting fresh", s.Path)
		} else {
			log.Printf("[WARN] read state file %s: %v, using defaults", s.Path, err)
		}
		return model.DefaultEstimatorState()
	}

	var st model.EstimatorState
	if err := json.Unmarshal(data, &st); err != nil {
		log.Printf("[WARN] state file %s malformed: %v, using defaults", s.Path, err)
		return model.DefaultEstimatorState()
	}
	if st.RemainingGrams < 0 {
		st.RemainingGrams = model.UnknownGrams
	}
	return &st
}

// Save writes the state atomically via a temp file rename.
func (s *FileStore) Save(st *model.EstimatorState) error {
	st.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// Reset removes the state file. Missing file is not an error.
func (s *FileStore) Reset() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state: %w", err)
	}
	return nil
}
