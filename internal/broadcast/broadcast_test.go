package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DoyleJ11/player-auction-backend/internal/engine"
	"github.com/DoyleJ11/player-auction-backend/pkg/types"
)

func batch() Batch {
	return Batch{
		Tournament: "T1",
		Version:    4,
		At:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Events: []engine.Event{
			{Type: engine.EvtBidUpdate, PlayerID: "p1", TeamID: "A", Amount: 1100},
			{Type: engine.EvtUpdateBalance, TeamID: "A", Amount: 8900},
		},
	}
}

func TestEnvelopes(t *testing.T) {
	envs, err := Envelopes(batch())
	require.NoError(t, err)
	require.Len(t, envs, 2)

	assert.Equal(t, "bid:update", envs[0].Type)
	assert.Equal(t, "T1", envs[0].Tournament)
	assert.Equal(t, int64(4), envs[1].Version)

	var e engine.Event
	require.NoError(t, json.Unmarshal(envs[0].Payload, &e))
	assert.Equal(t, int64(1100), e.Amount)

	raw, err := json.Marshal(envs[0])
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, "T1", wire["tournamentCode"])
	assert.NotContains(t, wire, "tournament")
}

type recorder struct {
	got []Batch
	err error
}

func (r *recorder) Publish(_ context.Context, b Batch) error {
	r.got = append(r.got, b)
	return r.err
}

func TestMulti_PublishesToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recorder{}, &recorder{err: boom}
	err := Multi{a, b, Nop{}}.Publish(context.Background(), batch())

	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func TestLog_OneLinePerEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := NewLog(zap.New(core))
	require.NoError(t, l.Publish(context.Background(), batch()))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "bid:update", entries[0].ContextMap()["type"])
	assert.Equal(t, "T1", entries[1].ContextMap()["tournamentCode"])
}

func TestRedis_Channel(t *testing.T) {
	r := &Redis{prefix: "auction:"}
	assert.Equal(t, "auction:T1", r.Channel("T1"))
}

// The public names are what external consumers match on.
func TestPublicEventNames(t *testing.T) {
	pairs := map[string]engine.EventType{
		types.EventPlayerNext:        engine.EvtPlayerNext,
		types.EventBidUpdate:         engine.EvtBidUpdate,
		types.EventBidInvalid:        engine.EvtBidInvalid,
		types.EventBidUndone:         engine.EvtBidUndone,
		types.EventPlayerSold:        engine.EvtPlayerSold,
		types.EventPlayerUnsold:      engine.EvtPlayerUnsold,
		types.EventPlayerPending:     engine.EvtPlayerPending,
		types.EventPlayerWithdrawn:   engine.EvtPlayerWithdrawn,
		types.EventPlayerRecalled:    engine.EvtPlayerRecalled,
		types.EventAuctionStart:      engine.EvtAuctionStart,
		types.EventAuctionPause:      engine.EvtAuctionPause,
		types.EventAuctionResume:     engine.EvtAuctionResume,
		types.EventAuctionStop:       engine.EvtAuctionStop,
		types.EventAuctionEnd:        engine.EvtAuctionEnd,
		types.EventAuctionReset:      engine.EvtAuctionReset,
		types.EventAuctionUnlocked:   engine.EvtAuctionUnlocked,
		types.EventAuctionRound:      engine.EvtAuctionRound,
		types.EventLastCallStarted:   engine.EvtLastCallStarted,
		types.EventLastCallWithdrawn: engine.EvtLastCallWithdrawn,
		types.EventUpdateBalance:     engine.EvtUpdateBalance,
		types.EventConsensusUpdate:   engine.EvtConsensusUpdate,
		types.EventSeatUpdate:        engine.EvtSeatUpdate,
	}
	for name, evt := range pairs {
		assert.Equal(t, name, string(evt))
	}
}
