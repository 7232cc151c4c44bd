package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/deskrelay/widget/internal/infrastructure/logging"
	"github.com/deskrelay/widget/internal/shared/types"
)

// Store persists one session tuple per application identity, the durable
// analog of the browser's local storage slot the widget owns.
type Store struct {
	dir string
	mu  sync.Mutex
	log *logging.Logger
}

// NewStore creates a session store rooted at dir, creating it if needed.
func NewStore(dir string, log *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "sessions"), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

// Get returns the tuple stored for the application, or nil when absent.
// A corrupt tuple file is treated as absent and removed.
func (s *Store) Get(applicationID string) (*types.SessionTuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.tuplePath(applicationID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session tuple: %w", err)
	}

	var tuple types.SessionTuple
	if err := json.Unmarshal(data, &tuple); err != nil {
		s.log.Warn("Discarding corrupt session tuple",
			zap.String("app_id", applicationID), zap.Error(err))
		_ = os.Remove(path)
		return nil, nil
	}

	return &tuple, nil
}

// Put writes the tuple, overwriting any previous one for the application.
// The write goes through a temp file and rename so a crash never leaves a
// half-written tuple behind.
func (s *Store) Put(tuple *types.SessionTuple) error {
	if tuple == nil || tuple.ApplicationID == "" {
		return errors.New("session tuple requires an application id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.tuplePath(tuple.ApplicationID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(tuple)
	if err != nil {
		return fmt.Errorf("failed to marshal session tuple: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session tuple: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit session tuple: %w", err)
	}

	return nil
}

// Clear removes the tuple for the application. Clearing an absent tuple is
// not an error.
func (s *Store) Clear(applicationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.tuplePath(applicationID)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear session tuple: %w", err)
	}
	return nil
}

// tuplePath maps an application id to its tuple file.
func (s *Store) tuplePath(applicationID string) (string, error) {
	if applicationID == "" || strings.ContainsAny(applicationID, "/\\") {
		return "", fmt.Errorf("invalid application id %q", applicationID)
	}
	return filepath.Join(s.dir, "sessions", applicationID+".session"), nil
}
