package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncrement(t *testing.T) {
	slabs := []Slab{
		{From: 5000, To: 0, Increment: 500},
		{From: 0, To: 1999, Increment: 100},
		{From: 2000, To: 4999, Increment: 250},
	}
	tests := []struct {
		name    string
		rules   Rules
		current int64
		want    int64
	}{
		{"default", Rules{}, 1000, DefaultIncrement},
		{"fixed", Rules{FixedIncrement: 50}, 1000, 50},
		{"first slab", Rules{Slabs: slabs, FixedIncrement: 50}, 1500, 100},
		{"slab boundary inclusive", Rules{Slabs: slabs}, 1999, 100},
		{"middle slab", Rules{Slabs: slabs}, 2000, 250},
		{"open ended slab", Rules{Slabs: slabs}, 90000, 500},
		{"gap falls back to fixed", Rules{Slabs: []Slab{{From: 0, To: 999, Increment: 20}}, FixedIncrement: 75}, 1000, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Increment(tt.rules, tt.current))
		})
	}
}

func TestNextBid(t *testing.T) {
	rules := Rules{BasePrice: 800, FixedIncrement: 100}
	assert.Equal(t, int64(800), NextBid(rules, &Player{}))
	assert.Equal(t, int64(1200), NextBid(rules, &Player{BasePrice: 1200}))
	assert.Equal(t, int64(1300), NextBid(rules, &Player{BasePrice: 1200, CurrentBid: 1200}))
}

func TestExecuteBid_InsufficientBalance(t *testing.T) {
	tr := newTournament()
	tr.Players[0].BasePrice = 2000
	tr.Auction.Started = true
	tr.Auction.Stage = StageBidding
	tr.Auction.CurrentPlayer = "p1"
	tr.Players[0].Status = StatusInAuction

	// Team C: budget 3000, three open slots, reserve 2000, max bid 1000.
	_, err := ExecuteBid(tr, BidRequest{TeamID: "C", Actor: admin})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	bid, err := ExecuteBid(tr, BidRequest{TeamID: "C", Actor: admin, BypassQuota: true})
	assert.NoError(t, err)
	assert.Equal(t, int64(2000), bid.Amount)
	assert.Equal(t, "operator", bid.Actor)
}

func TestExecuteBid_NoActivePlayer(t *testing.T) {
	tr := newTournament()
	_, err := ExecuteBid(tr, BidRequest{TeamID: "A"})
	assert.ErrorIs(t, err, ErrNoActivePlayer)
}
