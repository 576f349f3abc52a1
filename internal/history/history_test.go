package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/player-auction-backend/internal/broadcast"
	"github.com/DoyleJ11/player-auction-backend/internal/engine"
)

var at = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func TestPlan_SaleAndBalance(t *testing.T) {
	cs, err := plan(broadcast.Batch{
		Tournament: "T1",
		Version:    9,
		At:         at,
		Events: []engine.Event{
			{Type: engine.EvtPlayerSold, PlayerID: "p1", TeamID: "A", Amount: 1500, Data: map[string]any{
				"name": "Kohli", "teamName": "Alpha", "transactionType": "Auction",
			}},
			{Type: engine.EvtUpdateBalance, TeamID: "A", Amount: 8500},
		},
	})
	require.NoError(t, err)
	require.Len(t, cs.sales, 1)
	assert.Equal(t, Sale{
		TournamentCode:  "T1",
		PlayerID:        "p1",
		PlayerName:      "Kohli",
		TeamID:          "A",
		TeamName:        "Alpha",
		Price:           1500,
		TransactionType: "Auction",
		Version:         9,
		SoldAt:          at,
	}, cs.sales[0])
	assert.Empty(t, cs.revocations)
	assert.Nil(t, cs.summary)
}

func TestPlan_Revocations(t *testing.T) {
	cs, err := plan(broadcast.Batch{
		Tournament: "T1",
		At:         at,
		Events: []engine.Event{
			{Type: engine.EvtPlayerWithdrawn, PlayerID: "p1", Data: map[string]any{"refunded": true, "reason": "injury"}},
			{Type: engine.EvtPlayerWithdrawn, PlayerID: "p2", Data: map[string]any{"refunded": false}},
			{Type: engine.EvtAuctionReset},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []revocation{
		{PlayerID: "p1", Reason: "injury"},
		{Reason: resetReason},
	}, cs.revocations)
}

func TestPlan_Summary(t *testing.T) {
	sum := &engine.Summary{
		CompletedAt: at,
		Round:       2,
		Sold:        5,
		Unsold:      1,
		TotalSpent:  9000,
		Teams:       []engine.LedgerSnapshot{{TeamID: "A", TotalSpent: 9000}},
	}
	cs, err := plan(broadcast.Batch{
		Tournament: "T1",
		Events:     []engine.Event{{Type: engine.EvtAuctionEnd, Data: map[string]any{"summary": sum}}},
	})
	require.NoError(t, err)
	require.NotNil(t, cs.summary)
	assert.Equal(t, 5, cs.summary.Sold)
	assert.Equal(t, int64(9000), cs.summary.TotalSpent)
	assert.JSONEq(t, `[{"teamId":"A","teamName":"","budget":0,"totalSpent":9000,"currentBalance":0,"playersBought":0,"remainingPlayers":0,"maxBid":0,"isQuotaFull":false}]`, cs.summary.Teams)
}

func TestPlan_SummaryFromDecodedJSON(t *testing.T) {
	cs, err := plan(broadcast.Batch{
		Tournament: "T1",
		Events: []engine.Event{{Type: engine.EvtAuctionEnd, Data: map[string]any{
			"summary": map[string]any{"round": float64(3), "sold": float64(2), "totalSpent": float64(400)},
		}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, cs.summary.Round)
	assert.Equal(t, int64(400), cs.summary.TotalSpent)
}

func TestPlan_IgnoresOtherEvents(t *testing.T) {
	cs, err := plan(broadcast.Batch{Events: []engine.Event{{Type: engine.EvtBidUpdate}}})
	require.NoError(t, err)
	assert.True(t, cs.empty())
}
