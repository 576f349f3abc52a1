package engine

import (
	"cmp"
	"slices"
	"time"
)

// DefaultIncrement applies when neither a slab nor a fixed increment is configured.
const DefaultIncrement int64 = 100

// Increment returns the step above current: the first slab (ascending by From)
// containing current, else the fixed increment, else DefaultIncrement.
func Increment(rules Rules, current int64) int64 {
	slabs := slices.SortedFunc(slices.Values(rules.Slabs), func(a, b Slab) int {
		return cmp.Compare(a.From, b.From)
	})
	for _, s := range slabs {
		if current >= s.From && (s.To == 0 || current <= s.To) && s.Increment > 0 {
			return s.Increment
		}
	}
	if rules.FixedIncrement > 0 {
		return rules.FixedIncrement
	}
	return DefaultIncrement
}

// NextBid is the only amount a team may bid next on p.
func NextBid(rules Rules, p *Player) int64 {
	if p.CurrentBid == 0 {
		if p.BasePrice > 0 {
			return p.BasePrice
		}
		return rules.BasePrice
	}
	return p.CurrentBid + Increment(rules, p.CurrentBid)
}

type BidRequest struct {
	TeamID      string
	BypassQuota bool
	Actor       Actor
	At          time.Time
}

// ExecuteBid validates and applies one bid on the current player.
func ExecuteBid(t *Tournament, req BidRequest) (Bid, error) {
	st := &t.Auction
	p := t.CurrentPlayer()
	if p == nil {
		return Bid{}, ErrNoActivePlayer
	}
	team, ok := t.Team(req.TeamID)
	if !ok {
		return Bid{}, ErrTeamNotFound.Withf("team %q", req.TeamID)
	}
	if last, ok := p.lastBid(); ok && last.TeamID == team.ID {
		return Bid{}, ErrConsecutiveBid.Withf("%s placed the last bid of %d", team.Name, last.Amount)
	}

	next := NextBid(t.Rules, p)
	snap, err := t.Snapshot(team.ID)
	if err != nil {
		return Bid{}, err
	}
	bypass := req.BypassQuota || t.IsForceAuction(p.ID)
	ceiling := snap.MaxBid
	if bypass {
		ceiling = snap.CurrentBalance
	} else if snap.IsQuotaFull {
		return Bid{}, ErrQuotaFull.Withf("%s already bought %d players", team.Name, snap.PlayersBought)
	}
	if next > ceiling {
		return Bid{}, ErrInsufficientBalance.Withf("next bid %d exceeds limit %d", next, ceiling)
	}

	bid := Bid{
		TeamID: team.ID,
		Amount: next,
		At:     req.At,
		Actor:  req.Actor.label(),
		SeatID: req.Actor.SeatID,
	}
	p.BidHistory = append(p.BidHistory, bid)
	p.CurrentBid = next
	p.CurrentBidTeam = team.ID

	st.CurrentBid = next
	st.HighestBidder = team.ID
	st.LastBidTeamID = team.ID
	if st.LastCall.Active {
		if st.LastCall.ResumeSeconds > 0 {
			st.TimerSeconds = st.LastCall.ResumeSeconds
		}
		st.LastCall = LastCall{}
		st.Stage = StageBidding
	}
	st.SeatConsensus.Clear(ConsensusKey{TeamID: team.ID, PlayerID: p.ID})
	t.logf(req.At, LevelInfo, p.ID, team.ID, "%s bid %d for %s", team.Name, next, p.Name)
	return bid, nil
}
