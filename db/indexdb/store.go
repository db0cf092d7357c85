package indexdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/docmirror/docmirror/logger"
)

// Store holds the currently published Index and its durable JSON copy.
// Publication is by pointer replacement, so a reader either sees the old
// complete index or the new complete index, never a partially built one.
type Store struct {
	mu      sync.RWMutex
	path    string
	logger  logger.Logger
	current *Index
}

func NewStore(logger logger.Logger, path string) *Store {
	return &Store{
		path:    path,
		logger:  logger,
		current: NewIndex(),
	}
}

func (s *Store) Current() *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current
}

// Swap publishes a freshly built index.
func (s *Store) Swap(idx *Index) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = idx
}

// Save writes the index to disk as a token -> id-list JSON document. The
// write goes to a temp file first and is renamed into place so a crash
// mid-write cannot corrupt the previous copy.
func (s *Store) Save(idx *Index) error {
	data, err := json.Marshal(idx.serializable())
	if err != nil {
		s.logger.Error("failed to marshal index", "err", err.Error())
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		s.logger.Error("failed to create index directory", "err", err.Error(), "path", s.path)
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		s.logger.Error("failed to write index file", "err", err.Error(), "path", tempPath)
		return fmt.Errorf("failed to write index file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		s.logger.Error("failed to replace index file", "err", err.Error(), "path", s.path)
		return fmt.Errorf("failed to replace index file: %w", err)
	}

	return nil
}

// Load reads a previously saved index and publishes it. A missing file is
// not an error: the empty index stays published. The loaded index only
// restores postings, not document content, so lookups against it are
// provisional until a sync pass repopulates the document store.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read index file: %w", err)
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal index file: %w", err)
	}

	s.Swap(fromSerializable(raw))
	return nil
}
