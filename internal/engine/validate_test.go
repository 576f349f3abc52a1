package engine

import (
	"errors"
	"testing"
)

func TestValidateRoster(t *testing.T) {
	if err := ValidateRoster(newTournament()); err != nil {
		t.Fatalf("valid roster rejected: %v", err)
	}

	tr := newTournament()
	tr.Code = ""
	tr.Rules.MaxPlayersPerTeam = 0
	tr.Teams = append(tr.Teams, Team{ID: "A", Name: "Again"})
	tr.Players = append(tr.Players, Player{ID: "p1"})
	tr.Rules.Slabs = []Slab{{From: 500, To: 100, Increment: 0}}

	err := ValidateRoster(tr)
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindValidation {
		t.Fatalf("want validation error, got %v", err)
	}
	// code, max players, slab increment, slab order, duplicate team, duplicate player
	if len(e.Details) != 6 {
		t.Fatalf("want 6 issues, got %d: %v", len(e.Details), e.Details)
	}
}
