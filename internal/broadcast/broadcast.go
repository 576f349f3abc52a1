// Package broadcast pushes committed tournament events to the outside world.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/player-auction-backend/internal/engine"
	"github.com/DoyleJ11/player-auction-backend/pkg/types"
)

// Batch is every event produced by one committed command.
type Batch struct {
	Tournament string
	Version    int64
	At         time.Time
	Events     []engine.Event
}

// Broadcaster receives batches after they are persisted. Implementations must
// not block for long; the lobby calls them from its loop with a deadline.
type Broadcaster interface {
	Publish(ctx context.Context, b Batch) error
}

// Envelopes encodes a batch in the public wire format.
func Envelopes(b Batch) ([]types.Envelope, error) {
	out := make([]types.Envelope, 0, len(b.Events))
	for _, e := range b.Events {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("broadcast: encode %s: %w", e.Type, err)
		}
		out = append(out, types.Envelope{
			Type:       string(e.Type),
			Tournament: b.Tournament,
			Version:    b.Version,
			At:         b.At,
			Payload:    payload,
		})
	}
	return out, nil
}

type Nop struct{}

func (Nop) Publish(context.Context, Batch) error { return nil }

// Multi publishes to every broadcaster and joins their errors.
type Multi []Broadcaster

func (m Multi) Publish(ctx context.Context, b Batch) error {
	var errs []error
	for _, bc := range m {
		if err := bc.Publish(ctx, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes each event as a structured log line.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger.Named("events")}
}

func (l *Log) Publish(_ context.Context, b Batch) error {
	for _, e := range b.Events {
		l.logger.Info("event",
			zap.String("tournamentCode", b.Tournament),
			zap.Int64("version", b.Version),
			zap.String("type", string(e.Type)),
			zap.String("player", e.PlayerID),
			zap.String("team", e.TeamID),
			zap.Int64("amount", e.Amount),
		)
	}
	return nil
}
