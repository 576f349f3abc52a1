package engine

import (
	"cmp"
	"encoding/json"
	"slices"
	"time"
)

type VoteAction string

const (
	VoteCall         VoteAction = "call"
	VotePass         VoteAction = "pass"
	VoteOverrideCall VoteAction = "override_call"
)

func (a VoteAction) Valid() bool {
	switch a {
	case VoteCall, VotePass, VoteOverrideCall:
		return true
	}
	return false
}

type Vote struct {
	SeatID string     `json:"seatId"`
	Action VoteAction `json:"action"`
	At     time.Time  `json:"at"`
}

// ConsensusKey identifies the votes of one team on one player.
type ConsensusKey struct {
	TeamID   string `json:"teamId"`
	PlayerID string `json:"playerId"`
}

type ConsensusEntry struct {
	Votes []Vote `json:"votes"`
}

// ConsensusTable holds at most one active vote per seat per (team, player).
type ConsensusTable map[ConsensusKey]*ConsensusEntry

// Cast upserts the seat's vote, replacing any earlier vote from the same seat in place.
func (c *ConsensusTable) Cast(key ConsensusKey, v Vote) *ConsensusEntry {
	if *c == nil {
		*c = make(ConsensusTable)
	}
	entry, ok := (*c)[key]
	if !ok {
		entry = &ConsensusEntry{}
		(*c)[key] = entry
	}
	for i := range entry.Votes {
		if entry.Votes[i].SeatID == v.SeatID {
			entry.Votes[i] = v
			return entry
		}
	}
	entry.Votes = append(entry.Votes, v)
	return entry
}

func (c ConsensusTable) Votes(key ConsensusKey) []Vote {
	if e, ok := c[key]; ok {
		return e.Votes
	}
	return nil
}

func (c ConsensusTable) Clear(key ConsensusKey) {
	delete(c, key)
}

// DropSeat removes a seat's votes from every entry of its team.
func (c ConsensusTable) DropSeat(teamID, seatID string) {
	for key, entry := range c {
		if key.TeamID != teamID {
			continue
		}
		entry.Votes = slices.DeleteFunc(entry.Votes, func(v Vote) bool { return v.SeatID == seatID })
	}
}

// ClearPlayer drops every team's votes on a player.
func (c ConsensusTable) ClearPlayer(playerID string) {
	for k := range c {
		if k.PlayerID == playerID {
			delete(c, k)
		}
	}
}

func (c ConsensusTable) clone() ConsensusTable {
	if c == nil {
		return nil
	}
	out := make(ConsensusTable, len(c))
	for k, e := range c {
		out[k] = &ConsensusEntry{Votes: slices.Clone(e.Votes)}
	}
	return out
}

type consensusRow struct {
	ConsensusKey
	Votes []Vote `json:"votes"`
}

func (c ConsensusTable) MarshalJSON() ([]byte, error) {
	rows := make([]consensusRow, 0, len(c))
	for k, e := range c {
		rows = append(rows, consensusRow{ConsensusKey: k, Votes: e.Votes})
	}
	slices.SortFunc(rows, func(a, b consensusRow) int {
		return cmp.Or(cmp.Compare(a.TeamID, b.TeamID), cmp.Compare(a.PlayerID, b.PlayerID))
	})
	return json.Marshal(rows)
}

func (c *ConsensusTable) UnmarshalJSON(data []byte) error {
	var rows []consensusRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	*c = make(ConsensusTable, len(rows))
	for _, r := range rows {
		(*c)[r.ConsensusKey] = &ConsensusEntry{Votes: r.Votes}
	}
	return nil
}

// Tally is the outcome of evaluating a team's votes against its policy.
type Tally struct {
	Resolved  bool `json:"resolved"`
	CallVotes int  `json:"callVotes"`
	PassVotes int  `json:"passVotes"`
	Required  int  `json:"required"`
}

// RequiredVotes is the quorum for a policy given the number of eligible voters.
// It is never below one.
func RequiredVotes(policy SeatPolicy, eligible int) int {
	var required int
	switch {
	case policy.Mode == ModeUnanimous:
		required = eligible
	case policy.VotersRequired > 0:
		required = min(policy.VotersRequired, eligible)
	case policy.Mode == ModeMajority:
		required = (eligible + 1) / 2
	default:
		required = 1
	}
	return max(1, required)
}

func Evaluate(policy SeatPolicy, votes []Vote, eligible int) Tally {
	var t Tally
	for _, v := range votes {
		switch v.Action {
		case VoteCall, VoteOverrideCall:
			t.CallVotes++
		case VotePass:
			t.PassVotes++
		}
	}
	t.Required = RequiredVotes(policy, eligible)
	// single mode fires on the vote itself, never on quorum math.
	t.Resolved = policy.Mode != ModeSingle && t.CallVotes >= t.Required
	return t
}

// ShouldTrigger reports whether a just-cast vote places the team's bid. A pass
// never places a bid, even when the team's earlier calls already resolved.
func ShouldTrigger(policy SeatPolicy, seat Seat, action VoteAction, tally Tally) bool {
	if action == VotePass {
		return false
	}
	if policy.Mode == ModeSingle {
		return true
	}
	if seat.IsLead && action == VoteOverrideCall && policy.AllowLeadOverride {
		return true
	}
	return tally.Resolved
}

// CountedVotes keeps the votes of seats that are currently Active voters.
func CountedVotes(team Team, votes []Vote) []Vote {
	out := make([]Vote, 0, len(votes))
	for _, v := range votes {
		if s, ok := team.Seat(v.SeatID); ok && s.IsVoter && s.Status == SeatActive {
			out = append(out, v)
		}
	}
	return out
}

// ActiveVoterSeats counts Active seats that may vote.
func ActiveVoterSeats(team Team) int {
	n := 0
	for _, s := range team.Seats {
		if s.IsVoter && s.Status == SeatActive {
			n++
		}
	}
	return n
}

// EligibleVoters is the denominator for quorum: Active voters under a dynamic
// quorum, otherwise every voter seat that is not Disabled.
func EligibleVoters(team Team) int {
	if team.SeatPolicy.AllowDynamicQuorum {
		return ActiveVoterSeats(team)
	}
	n := 0
	for _, s := range team.Seats {
		if s.IsVoter && s.Status != SeatDisabled {
			n++
		}
	}
	return n
}

// DefaultQuorumBaseline is the voter count assumed when a team has no active voters yet.
const DefaultQuorumBaseline = 2

// RequiredQuorumSeats is the pre-start requirement for a team, evaluated with
// zero votes cast. The baseline stands in for an empty roster in every mode,
// not only majority.
func RequiredQuorumSeats(policy SeatPolicy, activeVoters, baseline int) int {
	if baseline <= 0 {
		baseline = DefaultQuorumBaseline
	}
	n := activeVoters
	if n == 0 {
		n = baseline
	}
	return Evaluate(policy, nil, n).Required
}
