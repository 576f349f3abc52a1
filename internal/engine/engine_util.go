package engine

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NewAuctionState is the state of a tournament whose auction never ran.
func NewAuctionState() AuctionState {
	return AuctionState{
		Stage:         StageIdle,
		CurrentRound:  1,
		SeatConsensus: ConsensusTable{},
	}
}

// Normalize fills defaults on an imported tournament and rebuilds team caches.
func (t *Tournament) Normalize() {
	if t.Auction.Stage == "" {
		t.Auction = NewAuctionState()
	}
	if t.Auction.CurrentRound == 0 {
		t.Auction.CurrentRound = 1
	}
	if t.Auction.SeatConsensus == nil {
		t.Auction.SeatConsensus = ConsensusTable{}
	}
	for i := range t.Teams {
		if t.Teams[i].SeatPolicy.Mode == "" {
			t.Teams[i].SeatPolicy.Mode = ModeSingle
		}
	}
	t.RecalculateAll()
}

// Clone deep-copies the aggregate so a failed command can be discarded.
func (t *Tournament) Clone() *Tournament {
	cp := *t
	cp.Rules.Slabs = slices.Clone(t.Rules.Slabs)
	cp.Teams = make([]Team, len(t.Teams))
	for i, team := range t.Teams {
		team.PurchasedPlayers = slices.Clone(team.PurchasedPlayers)
		team.Seats = slices.Clone(team.Seats)
		cp.Teams[i] = team
	}
	cp.Players = make([]Player, len(t.Players))
	for i, p := range t.Players {
		p.BidHistory = slices.Clone(p.BidHistory)
		cp.Players[i] = p
	}
	a := t.Auction
	a.SeatConsensus = t.Auction.SeatConsensus.clone()
	a.ForceAuctionPlayers = slices.Clone(t.Auction.ForceAuctionPlayers)
	a.PendingPlayers = slices.Clone(t.Auction.PendingPlayers)
	a.Logs = t.Auction.Logs.clone()
	if t.Auction.Summary != nil {
		s := *t.Auction.Summary
		s.Teams = slices.Clone(s.Teams)
		a.Summary = &s
	}
	cp.Auction = a
	return &cp
}

func (t *Tournament) Player(id string) (*Player, bool) {
	for i := range t.Players {
		if t.Players[i].ID == id {
			return &t.Players[i], true
		}
	}
	return nil, false
}

func (t *Tournament) Team(id string) (*Team, bool) {
	for i := range t.Teams {
		if t.Teams[i].ID == id {
			return &t.Teams[i], true
		}
	}
	return nil, false
}

// CurrentPlayer is the tracked player, only while it is actually InAuction.
func (t *Tournament) CurrentPlayer() *Player {
	if t.Auction.CurrentPlayer == "" {
		return nil
	}
	p, ok := t.Player(t.Auction.CurrentPlayer)
	if !ok || p.Status != StatusInAuction {
		return nil
	}
	return p
}

func (t *Tournament) IsForceAuction(playerID string) bool {
	return slices.Contains(t.Auction.ForceAuctionPlayers, playerID)
}

func (t *Tournament) teamName(id string) string {
	if team, ok := t.Team(id); ok && team.Name != "" {
		return team.Name
	}
	return id
}

func (t *Tournament) printer() *message.Printer {
	tag := language.English
	if t.Settings.Locale != "" {
		if parsed, err := language.Parse(t.Settings.Locale); err == nil {
			tag = parsed
		}
	}
	return message.NewPrinter(tag)
}

// logf appends to the auction's bounded log; amounts print with locale grouping.
func (t *Tournament) logf(at time.Time, level LogLevel, playerID, teamID, format string, args ...any) {
	t.Auction.Logs.Append(LogEntry{
		At:       at,
		Level:    level,
		Message:  t.printer().Sprintf(format, args...),
		PlayerID: playerID,
		TeamID:   teamID,
	})
}

func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(s string) bool { return s == id })
}

func addID(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// Env supplies the clock and randomness to Apply.
type Env struct {
	Now  func() time.Time
	Intn func(n int) int
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e Env) intn(n int) int {
	if e.Intn != nil {
		return e.Intn(n)
	}
	return rand.IntN(n)
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func (a Actor) label() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.SeatID != "":
		return fmt.Sprintf("seat:%s", a.SeatID)
	case a.Role != "":
		return string(a.Role)
	}
	return "unknown"
}
