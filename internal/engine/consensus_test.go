package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredVotes(t *testing.T) {
	tests := []struct {
		name     string
		policy   SeatPolicy
		eligible int
		want     int
	}{
		{"single", SeatPolicy{Mode: ModeSingle}, 4, 1},
		{"any", SeatPolicy{Mode: ModeAny}, 4, 1},
		{"majority odd", SeatPolicy{Mode: ModeMajority}, 5, 3},
		{"majority even", SeatPolicy{Mode: ModeMajority}, 4, 2},
		{"unanimous", SeatPolicy{Mode: ModeUnanimous}, 4, 4},
		{"unanimous ignores voters required", SeatPolicy{Mode: ModeUnanimous, VotersRequired: 2}, 4, 4},
		{"voters required capped", SeatPolicy{Mode: ModeMajority, VotersRequired: 9}, 3, 3},
		{"voters required", SeatPolicy{Mode: ModeAny, VotersRequired: 2}, 5, 2},
		{"floor of one", SeatPolicy{Mode: ModeUnanimous}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiredVotes(tt.policy, tt.eligible))
		})
	}
}

func TestEvaluate_MajorityOfFive(t *testing.T) {
	policy := SeatPolicy{Mode: ModeMajority}
	votes := []Vote{
		{SeatID: "s1", Action: VoteCall},
		{SeatID: "s2", Action: VoteCall},
		{SeatID: "s3", Action: VotePass},
	}
	tally := Evaluate(policy, votes, 5)
	assert.Equal(t, Tally{CallVotes: 2, PassVotes: 1, Required: 3}, tally)

	votes = append(votes, Vote{SeatID: "s4", Action: VoteCall})
	tally = Evaluate(policy, votes, 5)
	assert.True(t, tally.Resolved)
	assert.Equal(t, 3, tally.CallVotes)
}

func TestEvaluate_SingleNeverResolves(t *testing.T) {
	tally := Evaluate(SeatPolicy{Mode: ModeSingle}, []Vote{{SeatID: "s1", Action: VoteCall}}, 1)
	assert.False(t, tally.Resolved)
	assert.True(t, ShouldTrigger(SeatPolicy{Mode: ModeSingle}, Seat{ID: "s1"}, VoteCall, tally))
	assert.False(t, ShouldTrigger(SeatPolicy{Mode: ModeSingle}, Seat{ID: "s1"}, VotePass, tally))
}

func TestShouldTrigger_LeadOverride(t *testing.T) {
	lead := Seat{ID: "lead", IsLead: true, IsVoter: true}
	member := Seat{ID: "m", IsVoter: true}
	tally := Tally{CallVotes: 1, Required: 3}

	allowed := SeatPolicy{Mode: ModeUnanimous, AllowLeadOverride: true}
	assert.True(t, ShouldTrigger(allowed, lead, VoteOverrideCall, tally))
	assert.False(t, ShouldTrigger(allowed, member, VoteOverrideCall, tally))
	assert.False(t, ShouldTrigger(allowed, lead, VoteCall, tally))

	denied := SeatPolicy{Mode: ModeUnanimous}
	assert.False(t, ShouldTrigger(denied, lead, VoteOverrideCall, tally))
}

func TestEligibleVoters(t *testing.T) {
	team := Team{Seats: []Seat{
		{ID: "a", IsVoter: true, Status: SeatActive},
		{ID: "b", IsVoter: true, Status: SeatInvited},
		{ID: "c", IsVoter: true, Status: SeatDisabled},
		{ID: "d", IsVoter: false, Status: SeatActive},
	}}
	assert.Equal(t, 2, EligibleVoters(team))
	team.SeatPolicy.AllowDynamicQuorum = true
	assert.Equal(t, 1, EligibleVoters(team))
	assert.Equal(t, 1, ActiveVoterSeats(team))
}

func TestRequiredQuorumSeats_Baseline(t *testing.T) {
	assert.Equal(t, 2, RequiredQuorumSeats(SeatPolicy{Mode: ModeUnanimous}, 0, 0))
	assert.Equal(t, 3, RequiredQuorumSeats(SeatPolicy{Mode: ModeUnanimous}, 0, 3))
	assert.Equal(t, 1, RequiredQuorumSeats(SeatPolicy{Mode: ModeSingle}, 0, 2))
	assert.Equal(t, 4, RequiredQuorumSeats(SeatPolicy{Mode: ModeUnanimous}, 4, 2))
	assert.Equal(t, 2, RequiredQuorumSeats(SeatPolicy{Mode: ModeMajority}, 0, 3))
	assert.Equal(t, 1, RequiredQuorumSeats(SeatPolicy{Mode: ModeAny}, 0, 5))
	assert.Equal(t, 3, RequiredQuorumSeats(SeatPolicy{Mode: ModeAny, VotersRequired: 3}, 0, 5))
}

func TestConsensusTable_CastReplacesSeatVote(t *testing.T) {
	var table ConsensusTable
	key := ConsensusKey{TeamID: "A", PlayerID: "p1"}
	table.Cast(key, Vote{SeatID: "s1", Action: VoteCall})
	table.Cast(key, Vote{SeatID: "s2", Action: VoteCall})
	entry := table.Cast(key, Vote{SeatID: "s1", Action: VotePass})

	require.Len(t, entry.Votes, 2)
	assert.Equal(t, VotePass, entry.Votes[0].Action)

	table.Cast(ConsensusKey{TeamID: "B", PlayerID: "p1"}, Vote{SeatID: "x", Action: VoteCall})
	table.Cast(ConsensusKey{TeamID: "B", PlayerID: "p2"}, Vote{SeatID: "x", Action: VoteCall})
	table.ClearPlayer("p1")
	assert.Empty(t, table.Votes(key))
	assert.Len(t, table.Votes(ConsensusKey{TeamID: "B", PlayerID: "p2"}), 1)
}

func TestConsensusTable_JSONRoundTrip(t *testing.T) {
	table := ConsensusTable{}
	table.Cast(ConsensusKey{TeamID: "B", PlayerID: "p2"}, Vote{SeatID: "s1", Action: VoteCall})
	table.Cast(ConsensusKey{TeamID: "A", PlayerID: "p1"}, Vote{SeatID: "s2", Action: VotePass})

	raw, err := json.Marshal(table)
	require.NoError(t, err)

	var back ConsensusTable
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Len(t, back, 2)
	assert.Equal(t, VotePass, back.Votes(ConsensusKey{TeamID: "A", PlayerID: "p1"})[0].Action)
}

func seatTournament(policy SeatPolicy, seats int) *Tournament {
	tr := newTournament()
	team := &tr.Teams[0]
	team.SeatPolicy = policy
	for i := 1; i <= seats; i++ {
		team.Seats = append(team.Seats, Seat{
			ID:      fmt.Sprintf("s%d", i),
			Name:    fmt.Sprintf("Seat %d", i),
			IsVoter: true,
			IsLead:  i == 1,
			Status:  SeatActive,
		})
	}
	return tr
}

func seatActor(id string) Actor {
	return Actor{Role: RoleSeat, TeamID: "A", SeatID: id}
}

func TestVote_MajorityPlacesBidOnQuorum(t *testing.T) {
	tr := seatTournament(SeatPolicy{Mode: ModeMajority, AutoResetOnBid: true}, 5)
	mustApply(t, tr, Command{Type: CmdStart})
	mustApply(t, tr, Command{Type: CmdCallPlayer, PlayerID: "p1"})

	for _, id := range []string{"s1", "s2"} {
		res := mustApply(t, tr, Command{Type: CmdVote, Actor: seatActor(id), Vote: VoteCall})
		require.True(t, ContainsEvent(res.Events, EvtConsensusUpdate))
		require.False(t, ContainsEvent(res.Events, EvtBidUpdate))
	}
	res := mustApply(t, tr, Command{Type: CmdVote, Actor: seatActor("s3"), Vote: VoteCall})
	require.True(t, ContainsEvent(res.Events, EvtBidUpdate))
	assert.Equal(t, "A", tr.Auction.HighestBidder)
	assert.Equal(t, int64(1000), tr.Auction.CurrentBid)
	assert.Empty(t, tr.Auction.SeatConsensus.Votes(ConsensusKey{TeamID: "A", PlayerID: "p1"}))
}

func TestVote_LeadOverride(t *testing.T) {
	tr := seatTournament(SeatPolicy{Mode: ModeUnanimous, AllowLeadOverride: true}, 3)
	mustApply(t, tr, Command{Type: CmdStart})
	mustApply(t, tr, Command{Type: CmdCallPlayer, PlayerID: "p1"})

	res := mustApply(t, tr, Command{Type: CmdVote, Actor: seatActor("s2"), Vote: VoteOverrideCall})
	assert.False(t, ContainsEvent(res.Events, EvtBidUpdate), "non-lead override counts as a call")

	res = mustApply(t, tr, Command{Type: CmdVote, Actor: seatActor("s1"), Vote: VoteOverrideCall})
	assert.True(t, ContainsEvent(res.Events, EvtBidUpdate))
}

func TestVote_RejectedBidKeepsVote(t *testing.T) {
	tr := seatTournament(SeatPolicy{Mode: ModeSingle}, 1)
	mustApply(t, tr, Command{Type: CmdStart})
	mustApply(t, tr, Command{Type: CmdCallPlayer, PlayerID: "p1"})
	mustApply(t, tr, Command{Type: CmdBid, TeamID: "A"})

	res := mustApply(t, tr, Command{Type: CmdVote, Actor: seatActor("s1"), Vote: VoteCall})
	require.Error(t, res.Rejected)
	assert.True(t, errors.Is(res.Rejected, ErrConsecutiveBid))
	assert.True(t, ContainsEvent(res.Events, EvtBidInvalid))
	assert.Len(t, tr.Auction.SeatConsensus.Votes(ConsensusKey{TeamID: "A", PlayerID: "p1"}), 1)
}

func TestVote_SeatChecks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Team)
		cmd    Command
		want   error
	}{
		{
			name: "disabled seat",
			mutate: func(team *Team) {
				team.Seats[0].Status = SeatDisabled
			},
			cmd:  Command{Type: CmdVote, Actor: seatActor("s1"), Vote: VoteCall},
			want: ErrSeatInactive,
		},
		{
			name: "non voter",
			mutate: func(team *Team) {
				team.Seats[0].IsVoter = false
			},
			cmd:  Command{Type: CmdVote, Actor: seatActor("s1"), Vote: VoteCall},
			want: ErrSeatNotVoter,
		},
		{
			name: "unknown seat",
			cmd:  Command{Type: CmdVote, Actor: seatActor("nope"), Vote: VoteCall},
			want: ErrSeatNotFound,
		},
		{
			name: "bad action",
			cmd:  Command{Type: CmdVote, Actor: seatActor("s1"), Vote: "raise"},
			want: ErrInvalidVote,
		},
		{
			name: "admin cannot vote",
			cmd:  Command{Type: CmdVote, Actor: admin, Vote: VoteCall},
			want: ErrForbidden,
		},
		{
			name: "stale player",
			cmd:  Command{Type: CmdVote, Actor: seatActor("s1"), Vote: VoteCall, PlayerID: "p2"},
			want: ErrStalePlayer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := seatTournament(SeatPolicy{Mode: ModeSingle}, 2)
			mustApply(t, tr, Command{Type: CmdStart})
			mustApply(t, tr, Command{Type: CmdCallPlayer, PlayerID: "p1"})
			if tt.mutate != nil {
				tt.mutate(&tr.Teams[0])
			}
			_, err := Apply(tr, tt.cmd, fixedEnv())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResetSeat_BumpsVersionAndDropsVotes(t *testing.T) {
	tr := seatTournament(SeatPolicy{Mode: ModeUnanimous}, 3)
	mustApply(t, tr, Command{Type: CmdStart})
	mustApply(t, tr, Command{Type: CmdCallPlayer, PlayerID: "p1"})
	mustApply(t, tr, Command{Type: CmdVote, Actor: seatActor("s2"), Vote: VoteCall})
	mustApply(t, tr, Command{Type: CmdVote, Actor: seatActor("s3"), Vote: VoteCall})

	res := mustApply(t, tr, Command{Type: CmdResetSeat, TeamID: "A", SeatID: "s2"})
	require.True(t, ContainsEvent(res.Events, EvtSeatUpdate))
	assert.Equal(t, 1, tr.Teams[0].Seats[1].AuthVersion)

	votes := tr.Auction.SeatConsensus.Votes(ConsensusKey{TeamID: "A", PlayerID: "p1"})
	require.Len(t, votes, 1)
	assert.Equal(t, "s3", votes[0].SeatID)
}

func TestReadiness_MultiSeatQuorum(t *testing.T) {
	tr := seatTournament(SeatPolicy{Mode: ModeUnanimous}, 0)
	tr.Settings.MultiSeatVoting = true
	issues := CheckReadiness(tr)
	// Team A (unanimous, baseline 2) plus B and C which default to single mode.
	assert.Len(t, issues, 3)

	for i := range tr.Teams {
		tr.Teams[i].Seats = []Seat{
			{ID: "x", IsVoter: true, Status: SeatActive},
			{ID: "y", IsVoter: true, Status: SeatActive},
		}
	}
	assert.Empty(t, CheckReadiness(tr))
}

func TestVote_InactiveSeatVotesDoNotCount(t *testing.T) {
	for _, status := range []SeatStatus{SeatDisabled, SeatInvited} {
		t.Run(string(status), func(t *testing.T) {
			tr := seatTournament(SeatPolicy{Mode: ModeMajority}, 3)
			mustApply(t, tr, Command{Type: CmdStart})
			mustApply(t, tr, Command{Type: CmdCallPlayer, PlayerID: "p1"})
			key := ConsensusKey{TeamID: "A", PlayerID: "p1"}

			mustApply(t, tr, Command{Type: CmdVote, Actor: seatActor("s1"), Vote: VoteCall})
			mustApply(t, tr, Command{Type: CmdSetSeatStatus, TeamID: "A", SeatID: "s1", SeatStatus: status})
			assert.Empty(t, tr.Auction.SeatConsensus.Votes(key))

			res := mustApply(t, tr, Command{Type: CmdVote, Actor: seatActor("s2"), Vote: VotePass})
			assert.False(t, ContainsEvent(res.Events, EvtBidUpdate))
			assert.Equal(t, 0, consensusData(t, res)["callVotes"])
			assert.Empty(t, tr.Auction.HighestBidder)
			assert.Zero(t, tr.Auction.CurrentBid)
		})
	}
}

func TestVote_CountsOnlyActiveVoters(t *testing.T) {
	tr := seatTournament(SeatPolicy{Mode: ModeUnanimous}, 3)
	mustApply(t, tr, Command{Type: CmdStart})
	mustApply(t, tr, Command{Type: CmdCallPlayer, PlayerID: "p1"})
	key := ConsensusKey{TeamID: "A", PlayerID: "p1"}

	// A vote left behind by a seat that has since gone inactive.
	tr.Auction.SeatConsensus.Cast(key, Vote{SeatID: "s1", Action: VoteCall})
	tr.Teams[0].Seats[0].Status = SeatDisabled

	res := mustApply(t, tr, Command{Type: CmdVote, Actor: seatActor("s2"), Vote: VoteCall})
	assert.False(t, ContainsEvent(res.Events, EvtBidUpdate), "a disabled seat's call must not complete the quorum")
	assert.Equal(t, 1, consensusData(t, res)["callVotes"])
}

func TestVote_PassNeverPlacesBid(t *testing.T) {
	tr := seatTournament(SeatPolicy{Mode: ModeAny}, 2)
	mustApply(t, tr, Command{Type: CmdStart})
	mustApply(t, tr, Command{Type: CmdCallPlayer, PlayerID: "p1"})
	mustApply(t, tr, Command{Type: CmdBid, TeamID: "A"})

	res := mustApply(t, tr, Command{Type: CmdVote, Actor: seatActor("s1"), Vote: VoteCall})
	require.ErrorIs(t, res.Rejected, ErrConsecutiveBid)

	mustApply(t, tr, Command{Type: CmdBid, TeamID: "B"})
	res = mustApply(t, tr, Command{Type: CmdVote, Actor: seatActor("s2"), Vote: VotePass})
	assert.NoError(t, res.Rejected)
	assert.False(t, ContainsEvent(res.Events, EvtBidUpdate))
	assert.Equal(t, "B", tr.Auction.HighestBidder)
}

func TestVote_RevokedCredentials(t *testing.T) {
	tr := seatTournament(SeatPolicy{Mode: ModeSingle}, 2)
	mustApply(t, tr, Command{Type: CmdStart})
	mustApply(t, tr, Command{Type: CmdCallPlayer, PlayerID: "p1"})
	mustApply(t, tr, Command{Type: CmdResetSeat, TeamID: "A", SeatID: "s1"})

	_, err := Apply(tr, Command{Type: CmdVote, Actor: seatActor("s1"), Vote: VoteCall}, fixedEnv())
	assert.ErrorIs(t, err, ErrForbidden)

	fresh := seatActor("s1")
	fresh.AuthVersion = 1
	res := mustApply(t, tr, Command{Type: CmdVote, Actor: fresh, Vote: VoteCall})
	assert.True(t, ContainsEvent(res.Events, EvtBidUpdate))
}

func consensusData(t *testing.T, res Result) map[string]any {
	t.Helper()
	for _, e := range res.Events {
		if e.Type == EvtConsensusUpdate {
			return e.Data
		}
	}
	t.Fatalf("no %s event in %+v", EvtConsensusUpdate, res.Events)
	return nil
}
