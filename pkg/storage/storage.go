// Package storage provides the persistence media the knowledge store writes its
// document to. Every medium stores opaque UTF-8 JSON blobs under a flat key.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Read when no document exists for the key.
var ErrNotFound = errors.New("storage: document not found")

// Medium reads and writes whole documents by key.
type Medium interface {
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Open creates the medium for backend rooted at dir (workspace/memory).
// An empty backend selects the file medium.
func Open(backend, dir string) (Medium, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFileMedium(dir), nil
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, "memory.db"))
	case BackendBadger:
		return OpenBadger(BadgerConfig{Path: filepath.Join(dir, "badger"), SyncWrites: true})
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
