// Package store persists tournament aggregates between commands.
package store

import (
	"context"
	"errors"

	"github.com/DoyleJ11/player-auction-backend/internal/engine"
)

var (
	ErrNotFound = errors.New("store: tournament not found")
	// ErrConflict means the stored version moved since the caller loaded it.
	ErrConflict = errors.New("store: version conflict")
)

// Store loads and saves whole tournaments. Versions start at 1 and grow by one
// per accepted write.
type Store interface {
	Load(ctx context.Context, code string) (*engine.Tournament, int64, error)
	// Save writes t as version expected+1 if the stored version is still expected.
	Save(ctx context.Context, t *engine.Tournament, expected int64) (int64, error)
	// Put replaces t unconditionally, creating it when missing.
	Put(ctx context.Context, t *engine.Tournament) (int64, error)
}
