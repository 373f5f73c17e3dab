package credstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps one directory per session under a base directory,
// with one file per credential entry.
type FileStore struct {
	dir string
}

// NewFileStore ensures dir exists and returns a FileStore rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("credstore: empty directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("credstore: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the base directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) sessionDir(key string) string { return filepath.Join(s.dir, key) }

// OpenOrCreate implements Store.
func (s *FileStore) OpenOrCreate(ctx context.Context, key string) (*Context, SaveFunc, error) {
	if !ValidKey(key) {
		return nil, nil, ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	dir := s.sessionDir(key)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("credstore: create session dir: %w", err)
	}

	entries, err := readEntries(dir)
	if err != nil {
		return nil, nil, err
	}

	c := NewContext(key, entries)
	save := newSaveFunc(c, func(_ context.Context, u Update) error {
		for name, data := range u {
			path := filepath.Join(dir, name)
			if data == nil {
				if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("credstore: remove %s: %w", name, err)
				}
				continue
			}
			if err := writeFileAtomic(path, data); err != nil {
				return err
			}
		}
		return nil
	})
	return c, save, nil
}

// Discard implements Store.
func (s *FileStore) Discard(_ context.Context, key string) error {
	if !ValidKey(key) {
		return ErrInvalidKey
	}
	if err := os.RemoveAll(s.sessionDir(key)); err != nil {
		return fmt.Errorf("credstore: discard %s: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

func readEntries(dir string) (map[string][]byte, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("credstore: read session dir: %w", err)
	}

	out := make(map[string][]byte, len(des))
	for _, de := range des {
		if de.IsDir() || !validName(de.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, de.Name()))
		if err != nil {
			return nil, fmt.Errorf("credstore: read %s: %w", de.Name(), err)
		}
		out[de.Name()] = data
	}
	return out, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("credstore: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("credstore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credstore: close: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("credstore: chmod: %w", err)
	}
	return os.Rename(tmpName, path)
}
