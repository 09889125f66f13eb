package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileMedium keeps each document in <dir>/<key>.json.
type FileMedium struct {
	dir string
}

func NewFileMedium(dir string) *FileMedium {
	return &FileMedium{dir: dir}
}

func (f *FileMedium) path(key string) string {
	key = strings.ReplaceAll(key, string(filepath.Separator), "_")
	return filepath.Join(f.dir, key+".json")
}

func (f *FileMedium) Read(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read document %s: %w", key, err)
	}
	return data, nil
}

// Write replaces the whole document. The data goes to a temp file first and is
// renamed into place, so readers never see a half-written file.
func (f *FileMedium) Write(key string, data []byte) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}

	target := f.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename document: %w", err)
	}
	return nil
}

func (f *FileMedium) Close() error {
	return nil
}
