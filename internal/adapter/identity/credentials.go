package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"bootcamp/internal/domain"
)

// CredentialStore persists the signed-in session as a JSON file readable
// by the owner only.
type CredentialStore struct {
	path string
}

// NewCredentialStore returns a store backed by the file at path.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// Path returns the backing file.
func (s *CredentialStore) Path() string { return s.path }

// Load returns the stored session, or nil if none is stored.
func (s *CredentialStore) Load() (*domain.AuthSession, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var sess domain.AuthSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if sess.AccessToken == "" {
		return nil, nil
	}
	return &sess, nil
}

// Save replaces the stored session.
func (s *CredentialStore) Save(sess *domain.AuthSession) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Clear removes the stored session. Clearing an empty store is not an
// error.
func (s *CredentialStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// Watch calls onRemoved whenever the credentials file disappears, until
// ctx is done. It returns nil on cancellation.
func (s *CredentialStore) Watch(ctx context.Context, onRemoved func()) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: the file itself is replaced on every save.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				continue
			}
			if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
				onRemoved()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch credentials: %w", err)
		}
	}
}
