package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File is a KeyValue driver that keeps one file per key inside a directory.
// Writes go through a temp file and rename so a crash mid-write cannot leave
// a half-written blob behind.
type File struct {
	mu  sync.Mutex
	dir string
}

// NewFile creates the backing directory if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, persistenceErr("init", dir, err)
	}
	return &File{dir: dir}, nil
}

func (f *File) Load(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, persistenceErr("load", key, err)
	}
	return data, true, nil
}

func (f *File) Store(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(key)
	tmp := path + ".tmp"
	// History blobs carry customer names and notes; keep them owner-only.
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return persistenceErr("store", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return persistenceErr("store", key, err)
	}
	return nil
}

func (f *File) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return persistenceErr("remove", key, err)
	}
	return nil
}

func (f *File) Close() {}

// path maps a namespaced key like "restaurant:order_history:v1" to a flat
// file name inside the store directory.
func (f *File) path(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(f.dir, safe+".json")
}
