package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps blobs as files in one local directory. Put writes the file
// in a single call; writing the same key twice overwrites it.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Put(_ context.Context, key string, content []byte, contentType string) (*Object, error) {
	if err := checkPut(key, content); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return s.object(key, info, contentType), nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, *Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, nil, err
	}
	path := filepath.Join(s.dir, key)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, s.object(key, info, ""), nil
}

// List returns the files in the directory whose names start with prefix. A
// missing directory lists as empty.
func (s *FileStore) List(_ context.Context, prefix string) ([]*Object, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []*Object{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", s.dir, err)
	}

	out := []*Object{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, s.object(e.Name(), info, ""))
	}
	sortByKey(out)
	return out, nil
}

func (s *FileStore) object(key string, info fs.FileInfo, contentType string) *Object {
	return &Object{
		Key:         key,
		Size:        info.Size(),
		ContentType: contentType,
		Location:    filepath.Join(s.dir, key),
		ModifiedAt:  info.ModTime().UTC(),
	}
}
