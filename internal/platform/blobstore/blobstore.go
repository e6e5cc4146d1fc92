// Package blobstore stores generated documents by key. It defines the Store
// interface with an in-memory implementation for tests, a local-directory
// implementation, and a MinIO/S3 implementation.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	ErrMissingKey   = errors.New("blob key is required")
	ErrInvalidKey   = errors.New("blob key must be a plain file name")
)

// MaxFileSize is the maximum allowed blob size in bytes (10 MB).
const MaxFileSize = 10 * 1024 * 1024

// Object describes a stored blob.
type Object struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Location    string    `json:"location"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// Store is the contract for blob storage backends. Keys are flat file names.
type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (*Object, error)
	Get(ctx context.Context, key string) ([]byte, *Object, error)
	List(ctx context.Context, prefix string) ([]*Object, error)
}

// ValidateKey rejects empty keys and keys that could escape the store root.
func ValidateKey(key string) error {
	if key == "" {
		return ErrMissingKey
	}
	if strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return ErrInvalidKey
	}
	return nil
}

func checkPut(key string, content []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if len(content) > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

func sortByKey(objs []*Object) {
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })
}

type storedBlob struct {
	object  Object
	content []byte
}

// InMemoryStore is a thread-safe Store for tests and development.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
	now   func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		blobs: make(map[string]*storedBlob),
		now:   time.Now,
	}
}

func (s *InMemoryStore) Put(_ context.Context, key string, content []byte, contentType string) (*Object, error) {
	if err := checkPut(key, content); err != nil {
		return nil, err
	}
	obj := Object{
		Key:         key,
		Size:        int64(len(content)),
		ContentType: contentType,
		Location:    "memory://" + key,
		ModifiedAt:  s.now().UTC(),
	}

	s.mu.Lock()
	s.blobs[key] = &storedBlob{object: obj, content: bytes.Clone(content)}
	s.mu.Unlock()

	out := obj
	return &out, nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, *Object, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	obj := blob.object
	return bytes.Clone(blob.content), &obj, nil
}

func (s *InMemoryStore) List(_ context.Context, prefix string) ([]*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Object{}
	for k, b := range s.blobs {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		obj := b.object
		out = append(out, &obj)
	}
	sortByKey(out)
	return out, nil
}
