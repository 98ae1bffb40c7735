package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists the credential as a JSON file with owner-only
// permissions. Writes go through a temp file and rename so a crash never
// leaves a truncated credential behind.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed credential store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type fileCredential struct {
	Token string `json:"token"`
}

// Load reads the persisted token. Returns ErrNotFound when the file does
// not exist.
func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read credentials: %w", err)
	}

	var cred fileCredential
	if err := json.Unmarshal(data, &cred); err != nil {
		return "", fmt.Errorf("decode credentials: %w", err)
	}
	if cred.Token == "" {
		return "", ErrNotFound
	}
	return cred.Token, nil
}

// Save writes the token to disk.
func (s *FileStore) Save(token string) error {
	data, err := json.Marshal(fileCredential{Token: token})
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Clear removes the persisted token. Clearing an absent credential is
// not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
