package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/schemaflow/migration"
)

// MemoryStore keeps applied-migration state in process memory. Used by
// tests and dry runs; state vanishes with the process.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[string]map[migration.Version]time.Time // "ns|group" -> version -> applied at
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[string]map[migration.Version]time.Time),
	}
}

func pairKey(namespace, group string) string {
	return namespace + "|" + group
}

// CurrentVersion implements migration.History.
func (s *MemoryStore) CurrentVersion(ctx context.Context, namespace, group string) (migration.Version, error) {
	versions, err := s.AppliedVersions(ctx, namespace, group)
	if err != nil {
		return migration.Zero, err
	}
	if len(versions) == 0 {
		return migration.Zero, nil
	}
	return versions[len(versions)-1], nil
}

// AppliedVersions implements migration.History.
func (s *MemoryStore) AppliedVersions(ctx context.Context, namespace, group string) ([]migration.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	pair := s.rows[pairKey(namespace, group)]
	versions := make([]migration.Version, 0, len(pair))
	for v := range pair {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Before(versions[j])
	})
	return versions, nil
}

// AppliedAt implements migration.History.
func (s *MemoryStore) AppliedAt(ctx context.Context, namespace, group string, v migration.Version) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return time.Time{}, ErrStoreClosed
	}

	at, ok := s.rows[pairKey(namespace, group)][v]
	if !ok {
		return time.Time{}, fmt.Errorf("version %s: %w", v, ErrNotFound)
	}
	return at, nil
}

// RecordApplied implements migration.History.
func (s *MemoryStore) RecordApplied(ctx context.Context, namespace, group string, v migration.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	key := pairKey(namespace, group)
	pair, ok := s.rows[key]
	if !ok {
		pair = make(map[migration.Version]time.Time)
		s.rows[key] = pair
	}
	if _, exists := pair[v]; exists {
		return fmt.Errorf("version %s: %w", v, ErrDuplicateVersion)
	}
	pair[v] = time.Now()
	return nil
}

// RecordReverted implements migration.History.
func (s *MemoryStore) RecordReverted(ctx context.Context, namespace, group string, v migration.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	pair := s.rows[pairKey(namespace, group)]
	if _, ok := pair[v]; !ok {
		return fmt.Errorf("version %s: %w", v, ErrNotFound)
	}
	delete(pair, v)
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
