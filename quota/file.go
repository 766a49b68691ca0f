package quota

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/ineyio/summarist"
)

const lockRetryDelay = 10 * time.Millisecond

// FileStore persists ledger state as a YAML file. Each Add holds an advisory
// lock on path+".lock" while it reads, updates and rewrites the file, so
// processes sharing the file serialize their updates. Writes go to a
// temporary file that is renamed over the target.
type FileStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

var _ summarist.LedgerStore = (*FileStore)(nil)

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, lock: flock.New(path + ".lock")}
}

func (s *FileStore) Load(context.Context) (summarist.LedgerState, error) {
	return s.read()
}

func (s *FileStore) Add(ctx context.Context, day, providerID string, delta, limit int64) (int64, bool, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return 0, false, fmt.Errorf("quota/file: mkdir: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return 0, false, fmt.Errorf("quota/file: lock: %w", err)
	}
	if !locked {
		return 0, false, fmt.Errorf("quota/file: lock %s not acquired", s.lock.Path())
	}
	defer s.lock.Unlock()

	state, err := s.read()
	if err != nil {
		return 0, false, err
	}

	used, ok := summarist.ApplyAdd(&state, day, providerID, delta, limit)
	if !ok {
		return used, false, nil
	}
	if err := s.write(state); err != nil {
		return 0, false, err
	}
	return used, ok, nil
}

func (s *FileStore) read() (summarist.LedgerState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return summarist.LedgerState{}, nil
	}
	if err != nil {
		return summarist.LedgerState{}, fmt.Errorf("quota/file: read: %w", err)
	}

	var state summarist.LedgerState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return summarist.LedgerState{}, fmt.Errorf("quota/file: parse %s: %w", s.path, err)
	}
	return state, nil
}

func (s *FileStore) write(state summarist.LedgerState) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("quota/file: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".quota-*.yaml")
	if err != nil {
		return fmt.Errorf("quota/file: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("quota/file: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("quota/file: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("quota/file: rename: %w", err)
	}
	return nil
}
