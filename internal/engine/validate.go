package engine

import (
	"fmt"
	"strings"
)

// ValidateRoster checks an imported tournament before it is stored. Every
// problem is reported in Details.
func ValidateRoster(t *Tournament) error {
	var issues []string
	add := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(t.Code) == "" {
		add("code is required")
	}
	r := t.Rules
	if r.MaxPlayersPerTeam <= 0 {
		add("rules.maxPlayersPerTeam must be positive")
	}
	if r.BasePrice < 0 || r.FundPerTeam < 0 || r.FixedIncrement < 0 {
		add("rules amounts must not be negative")
	}
	for i, s := range r.Slabs {
		if s.Increment <= 0 {
			add("rules.slabs[%d].increment must be positive", i)
		}
		if s.To != 0 && s.To < s.From {
			add("rules.slabs[%d] ends before it starts", i)
		}
	}

	teamIDs := map[string]bool{}
	for _, team := range t.Teams {
		if team.ID == "" {
			add("team %q has no id", team.Name)
			continue
		}
		if teamIDs[team.ID] {
			add("duplicate team id %q", team.ID)
		}
		teamIDs[team.ID] = true
		if team.Budget < 0 {
			add("team %s budget must not be negative", team.ID)
		}
		switch team.SeatPolicy.Mode {
		case "", ModeSingle, ModeAny, ModeMajority, ModeUnanimous:
		default:
			add("team %s has unknown seat policy %q", team.ID, team.SeatPolicy.Mode)
		}
		seatIDs := map[string]bool{}
		for _, seat := range team.Seats {
			if seat.ID == "" || seatIDs[seat.ID] {
				add("team %s has a missing or duplicate seat id %q", team.ID, seat.ID)
			}
			seatIDs[seat.ID] = true
		}
	}

	playerIDs := map[string]bool{}
	for _, p := range t.Players {
		if p.ID == "" || playerIDs[p.ID] {
			add("missing or duplicate player id %q", p.ID)
		}
		playerIDs[p.ID] = true
		if p.BasePrice < 0 {
			add("player %s base price must not be negative", p.ID)
		}
		if p.SoldTo != "" && !teamIDs[p.SoldTo] {
			add("player %s sold to unknown team %q", p.ID, p.SoldTo)
		}
	}

	if len(issues) > 0 {
		return ErrInvalidCommand.With(issues...)
	}
	return nil
}
