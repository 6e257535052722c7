// Package storage serves a key/value store as the "storage" messaging scope.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/morezero/scoped-messaging/pkg/db"
	"github.com/morezero/scoped-messaging/pkg/jsoncodec"
)

const storeLogPrefix = "storage:store"

// ErrNotFound is returned by a Store when a key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// Entry is one stored value.
type Entry struct {
	Key      string `json:"key"`
	Value    any    `json:"value"`
	Revision int64  `json:"revision"`
}

// Store is the backend of the storage scope. Values are JSON-shaped.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, value any, origin string) (*Entry, error)
	Remove(ctx context.Context, key string) (*Entry, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEntry(e)
}

func (s *MemoryStore) Set(_ context.Context, key string, value any, _ string) (*Entry, error) {
	cloned, err := jsoncodec.Clone(value)
	if err != nil {
		return nil, fmt.Errorf("%s - value for %s is not serializable: %w", storeLogPrefix, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := &Entry{Key: key, Value: cloned, Revision: 1}
	if prev, ok := s.entries[key]; ok {
		e.Revision = prev.Revision + 1
	}
	s.entries[key] = e
	return copyEntry(e)
}

func (s *MemoryStore) Remove(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, key)
	return e, nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func copyEntry(e *Entry) (*Entry, error) {
	v, err := jsoncodec.Clone(e.Value)
	if err != nil {
		return nil, err
	}
	return &Entry{Key: e.Key, Value: v, Revision: e.Revision}, nil
}

// PostgresStore is a Store backed by the kv_entries table.
type PostgresStore struct {
	repo *db.Repository
}

// NewPostgresStore wraps repo.
func NewPostgresStore(repo *db.Repository) *PostgresStore {
	return &PostgresStore{repo: repo}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*Entry, error) {
	row, err := s.repo.GetEntry(ctx, key)
	if err != nil {
		return nil, translateDBError(err)
	}
	return entryFromRow(row)
}

func (s *PostgresStore) Set(ctx context.Context, key string, value any, origin string) (*Entry, error) {
	data, err := jsoncodec.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%s - value for %s is not serializable: %w", storeLogPrefix, key, err)
	}
	row, err := s.repo.PutEntry(ctx, key, data, origin)
	if err != nil {
		return nil, err
	}
	return entryFromRow(row)
}

func (s *PostgresStore) Remove(ctx context.Context, key string) (*Entry, error) {
	row, err := s.repo.DeleteEntry(ctx, key)
	if err != nil {
		return nil, translateDBError(err)
	}
	return entryFromRow(row)
}

func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.repo.ListKeys(ctx, prefix)
}

func translateDBError(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func entryFromRow(row *db.KVEntry) (*Entry, error) {
	var value any
	if len(row.Value) > 0 {
		if err := jsoncodec.Unmarshal(row.Value, &value); err != nil {
			return nil, fmt.Errorf("%s - stored value for %s is not valid JSON: %w", storeLogPrefix, row.Key, err)
		}
	}
	return &Entry{Key: row.Key, Value: value, Revision: row.Revision}, nil
}
