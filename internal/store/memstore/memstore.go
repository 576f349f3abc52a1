// Package memstore is an in-process Store that keeps each tournament as its
// encoded document, so loads never alias live state.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/DoyleJ11/player-auction-backend/internal/engine"
	"github.com/DoyleJ11/player-auction-backend/internal/store"
)

type record struct {
	doc     []byte
	version int64
}

type Store struct {
	mu   sync.Mutex
	docs map[string]record
}

func New() *Store {
	return &Store{docs: make(map[string]record)}
}

func (s *Store) Load(_ context.Context, code string) (*engine.Tournament, int64, error) {
	s.mu.Lock()
	rec, ok := s.docs[code]
	s.mu.Unlock()
	if !ok {
		return nil, 0, store.ErrNotFound
	}
	var t engine.Tournament
	if err := json.Unmarshal(rec.doc, &t); err != nil {
		return nil, 0, fmt.Errorf("memstore: decode %s: %w", code, err)
	}
	t.Normalize()
	return &t, rec.version, nil
}

func (s *Store) Save(_ context.Context, t *engine.Tournament, expected int64) (int64, error) {
	doc, err := json.Marshal(t)
	if err != nil {
		return 0, fmt.Errorf("memstore: encode %s: %w", t.Code, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[t.Code]
	if !ok {
		return 0, store.ErrNotFound
	}
	if rec.version != expected {
		return 0, store.ErrConflict
	}
	s.docs[t.Code] = record{doc: doc, version: expected + 1}
	return expected + 1, nil
}

func (s *Store) Put(_ context.Context, t *engine.Tournament) (int64, error) {
	doc, err := json.Marshal(t)
	if err != nil {
		return 0, fmt.Errorf("memstore: encode %s: %w", t.Code, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	version := s.docs[t.Code].version + 1
	s.docs[t.Code] = record{doc: doc, version: version}
	return version, nil
}
