package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store persists and loads the credential. Load returns (nil, nil) when no
// credential has been saved yet.
type Store interface {
	Load() (*Credential, error)
	Save(*Credential) error
	Delete() error
}

// FileStore persists the credential as a JSON file at a fixed path in the
// user configuration directory, so state survives across invocations.
//
// Saves are atomic: the credential is written to a temp file in the same
// directory and renamed into place, so a process killed mid-save never leaves
// a corrupted store behind.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed store at the given path. The parent
// directory is created with owner-only permissions.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("%w: failed to create token directory: %v", ErrStoreUnavailable, err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the token file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the credential from disk. A missing file means no credential.
// A corrupted file is treated as absent after logging, since the only
// recovery is re-authentication anyway.
func (s *FileStore) Load() (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		slog.Warn("Token file is corrupted, treating as absent",
			"path", s.path,
			"error", err.Error(),
		)
		return nil, nil
	}

	return &cred, nil
}

// Save writes the credential atomically with 0600 permissions.
func (s *FileStore) Save(cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tokens-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	slog.Info("Credential saved",
		"path", s.path,
		"expires_at", cred.ExpiresAt,
		"has_refresh_token", cred.RefreshToken != "",
	)
	return nil
}

// Delete removes the credential file. Deleting an absent file is a no-op.
func (s *FileStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	slog.Info("Credential deleted", "path", s.path)
	return nil
}

// MemStore is an in-memory Store for tests and ephemeral use.
type MemStore struct {
	mu   sync.Mutex
	cred *Credential
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Load() (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil, nil
	}
	c := *s.cred
	return &c, nil
}

func (s *MemStore) Save(cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cred
	s.cred = &c
	return nil
}

func (s *MemStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}
