package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileRecord is a finished session file offered for download.
type FileRecord struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Created time.Time `json:"created"`
}

type FileStore struct {
	mu sync.RWMutex
	m  map[string]*FileRecord
}

func NewFileStore() *FileStore {
	return &FileStore{m: make(map[string]*FileRecord)}
}

func (s *FileStore) Put(path string) *FileRecord {
	rec := &FileRecord{ID: uuid.NewString(), Path: path, Created: time.Now()}
	s.mu.Lock()
	s.m[rec.ID] = rec
	s.mu.Unlock()
	return rec
}

func (s *FileStore) Get(id string) (*FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.m[id]
	return r, ok
}
