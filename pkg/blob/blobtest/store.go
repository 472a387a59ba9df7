// Package blobtest provides an in-memory blob.Store for tests.
package blobtest

import (
	"context"
	"sync"

	"appointment-system/pkg/blob"
)

type object struct {
	contentType string
	data        []byte
}

type Store struct {
	mu      sync.Mutex
	objects map[string]object
	// Deletes records every deleted path in order, for teardown assertions.
	Deletes []string
}

var _ blob.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{objects: make(map[string]object)}
}

func (s *Store) Put(ctx context.Context, path string, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = object{contentType: contentType, data: append([]byte(nil), data...)}
	return nil
}

func (s *Store) DownloadURL(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; !ok {
		return "", &blob.TransferError{Op: "url", Path: path, Err: blob.ErrNotFound}
	}
	return "https://blobs.test/" + path, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; !ok {
		return &blob.TransferError{Op: "delete", Path: path, Err: blob.ErrNotFound}
	}
	delete(s.objects, path)
	s.Deletes = append(s.Deletes, path)
	return nil
}

// Object returns the stored bytes and content type at path.
func (s *Store) Object(path string) (string, []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[path]
	return o.contentType, o.data, ok
}
