package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/player-auction-backend/internal/engine"
	"github.com/DoyleJ11/player-auction-backend/internal/store"
)

func sample() *engine.Tournament {
	t := &engine.Tournament{
		Code:  "T1",
		Name:  "Cup",
		Rules: engine.Rules{FundPerTeam: 5000, MaxPlayersPerTeam: 2, BasePrice: 500},
		Teams: []engine.Team{{ID: "A", Name: "Alpha", Seats: []engine.Seat{{ID: "s1", IsVoter: true, Status: engine.SeatActive}}}},
		Players: []engine.Player{
			{ID: "p1", Name: "One", Status: engine.StatusAvailable},
		},
	}
	t.Normalize()
	return t
}

func TestStore_PutLoadSave(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, _, err := s.Load(ctx, "T1")
	require.ErrorIs(t, err, store.ErrNotFound)

	tr := sample()
	v, err := s.Put(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	tr.Auction.SeatConsensus.Cast(
		engine.ConsensusKey{TeamID: "A", PlayerID: "p1"},
		engine.Vote{SeatID: "s1", Action: engine.VoteCall, At: time.Unix(10, 0).UTC()},
	)
	tr.Auction.Logs.Append(engine.LogEntry{Message: "hello"})
	v, err = s.Save(ctx, tr, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	loaded, version, err := s.Load(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Len(t, loaded.Auction.SeatConsensus.Votes(engine.ConsensusKey{TeamID: "A", PlayerID: "p1"}), 1)
	assert.Equal(t, "hello", loaded.Auction.Logs.Entries()[0].Message)

	loaded.Name = "changed"
	again, _, err := s.Load(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "Cup", again.Name)
}

func TestStore_SaveConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	tr := sample()
	_, err := s.Put(ctx, tr)
	require.NoError(t, err)

	_, err = s.Save(ctx, tr, 7)
	assert.ErrorIs(t, err, store.ErrConflict)

	other := sample()
	other.Code = "T2"
	_, err = s.Save(ctx, other, 0)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
