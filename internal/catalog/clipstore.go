package catalog

import (
	"sync"

	"github.com/heimdex/heimdex-shorts/internal/clips"
)

// ClipStore maps clip keys to their source records and produced artifacts.
// Nothing here survives a restart.
type ClipStore struct {
	mu        sync.RWMutex
	records   map[clips.Key]clips.Record
	artifacts map[clips.Key]clips.Artifact
}

func NewClipStore() *ClipStore {
	return &ClipStore{
		records:   make(map[clips.Key]clips.Record),
		artifacts: make(map[clips.Key]clips.Artifact),
	}
}

func (s *ClipStore) Put(key clips.Key, rec clips.Record) {
	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
}

// PutIfAbsent stores rec unless key already has a record, and reports
// whether it stored it.
func (s *ClipStore) PutIfAbsent(key clips.Key, rec clips.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		return false
	}
	s.records[key] = rec
	return true
}

func (s *ClipStore) Get(key clips.Key) (clips.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return clips.Record{}, ErrClipNotFound
	}
	return rec, nil
}

func (s *ClipStore) PutArtifact(key clips.Key, a clips.Artifact) {
	s.mu.Lock()
	s.artifacts[key] = a
	s.mu.Unlock()
}

// Artifact implements cloud.ArtifactLookup.
func (s *ClipStore) Artifact(key clips.Key) (clips.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[key]
	return a, ok
}
