package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// envelopeVersion is the on-disk format version. Files with a different
// version are ignored rather than migrated.
const envelopeVersion = 1

// Store persists a single credential record.
type Store interface {
	// Load returns the stored credential, or nil when none is usable.
	// An unreadable file, a wrong version tag, or a missing tokens field
	// all read as "no credential", never as a hard failure.
	Load() (*Credential, error)

	// Save persists the record, replacing any previous one.
	Save(*Credential) error

	// Clear removes the stored record.
	Clear() error
}

// fileEnvelope is the versioned JSON wrapper written to disk.
type fileEnvelope struct {
	Version int         `json:"version"`
	Tokens  *Credential `json:"tokens"`
}

// FileStore keeps the credential in a JSON file, created with mode 0600.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements Store.
func (s *FileStore) Load() (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil
	}

	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil
	}
	if env.Version != envelopeVersion || env.Tokens == nil {
		return nil, nil
	}
	if !env.Tokens.Valid() {
		return nil, nil
	}
	return env.Tokens, nil
}

// Save implements Store.
func (s *FileStore) Save(cred *Credential) error {
	if !cred.Valid() {
		return fmt.Errorf("refusing to persist credential without refresh token")
	}

	data, err := json.MarshalIndent(fileEnvelope{Version: envelopeVersion, Tokens: cred}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credential file: %w", err)
	}
	return nil
}
