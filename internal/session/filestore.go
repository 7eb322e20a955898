package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileStore persists the credential fields as a JSON object on disk. The
// key names match the reference client's session file, so an existing
// session keeps working. A file lock guards against a second invocation
// mutating the same session.
type FileStore struct {
	path   string
	lock   *flock.Flock
	fields map[Field]string
}

// OpenFileStore loads the session file at path, taking the companion file
// lock. A missing file resolves to an empty session.
func OpenFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure session directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock session file: %w", err)
	}
	if !ok {
		return nil, errors.New("session file is locked by another invocation")
	}

	s := &FileStore{path: path, lock: lock, fields: make(map[Field]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		_ = lock.Unlock()
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	for _, f := range []Field{FieldDeviceID, FieldAccessToken, FieldRefreshToken, FieldUserID, FieldUserKey} {
		msg, ok := raw[string(f)]
		if !ok {
			continue
		}
		var v string
		// Non-string or empty values are treated as absent rather than
		// kept inconsistently.
		if json.Unmarshal(msg, &v) == nil && v != "" {
			s.fields[f] = v
		}
	}
	return s, nil
}

// Get returns the stored value, or "" when absent.
func (s *FileStore) Get(f Field) string {
	return s.fields[f]
}

// Set stores a value; an empty value removes the field.
func (s *FileStore) Set(f Field, v string) {
	if v == "" {
		delete(s.fields, f)
		return
	}
	s.fields[f] = v
}

// Persist writes the present fields back to disk with restricted
// permissions.
func (s *FileStore) Persist() error {
	out := make(map[string]string, len(s.fields))
	for f, v := range s.fields {
		out[string(f)] = v
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Close releases the session file lock.
func (s *FileStore) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}
