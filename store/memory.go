package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

var _ Client = (*Memory)(nil)

// Memory is an in-memory store client. It backs tests and dry runs, where
// publishing must exercise the full key discipline without touching a
// shared store.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	tags    map[string]map[string]string
	uploads map[string]string // key -> local source path
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string][]byte),
		tags:    make(map[string]map[string]string),
		uploads: make(map[string]string),
	}
}

// Exists implements Client.
func (s *Memory) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

// ReadJSON implements Client.
func (s *Memory) ReadJSON(_ context.Context, key string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return true, nil
}

// WriteJSON implements Client.
func (s *Memory) WriteJSON(_ context.Context, key string, v any, tags map[string]string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	if len(tags) > 0 {
		s.tags[key] = tags
	}
	return nil
}

// UploadLogo implements Client.
func (s *Memory) UploadLogo(_ context.Context, localPath, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[key] = localPath
	return key, nil
}

// UploadPackages implements Client.
func (s *Memory) UploadPackages(_ context.Context, localDir, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[prefix+"/packages"] = localDir
	return nil
}

// UploadTestFiles implements Client.
func (s *Memory) UploadTestFiles(_ context.Context, localDir, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[prefix+"/test"] = localDir
	return nil
}

// Raw returns the stored bytes for key, for assertions in tests.
func (s *Memory) Raw(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// Tags returns the tags recorded for key.
func (s *Memory) Tags(key string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags[key]
}

// Uploads returns a copy of the recorded upload targets.
func (s *Memory) Uploads() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.uploads))
	for k, v := range s.uploads {
		out[k] = v
	}
	return out
}

// Keys returns all stored object keys.
func (s *Memory) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
