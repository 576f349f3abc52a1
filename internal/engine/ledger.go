package engine

// SoldAggregate is the ground truth for a team's spend: the sum over its Sold players.
type SoldAggregate struct {
	TotalSpent    int64
	PlayersBought int
	PlayerIDs     []string
}

// LedgerSnapshot is the derived financial view of one team.
type LedgerSnapshot struct {
	TeamID           string `json:"teamId"`
	TeamName         string `json:"teamName"`
	Budget           int64  `json:"budget"`
	TotalSpent       int64  `json:"totalSpent"`
	CurrentBalance   int64  `json:"currentBalance"`
	PlayersBought    int    `json:"playersBought"`
	RemainingPlayers int    `json:"remainingPlayers"`
	MaxBid           int64  `json:"maxBid"`
	IsQuotaFull      bool   `json:"isQuotaFull"`
}

func SoldAggregateFor(players []Player, teamID string) SoldAggregate {
	var agg SoldAggregate
	for i := range players {
		p := &players[i]
		if p.Status != StatusSold || p.SoldTo != teamID {
			continue
		}
		agg.TotalSpent += p.SoldPrice
		agg.PlayersBought++
		agg.PlayerIDs = append(agg.PlayerIDs, p.ID)
	}
	return agg
}

// EffectiveBudget is the team's own budget, falling back to the tournament fund.
func EffectiveBudget(team Team, rules Rules) int64 {
	if team.Budget > 0 {
		return team.Budget
	}
	return rules.FundPerTeam
}

// ComputeSnapshot derives balance and the maximum legal bid. The max bid keeps
// enough in reserve to fill every remaining roster slot but the current one at
// the base price.
func ComputeSnapshot(team Team, rules Rules, agg SoldAggregate) LedgerSnapshot {
	budget := EffectiveBudget(team, rules)
	s := LedgerSnapshot{
		TeamID:         team.ID,
		TeamName:       team.Name,
		Budget:         budget,
		TotalSpent:     agg.TotalSpent,
		CurrentBalance: max(0, budget-agg.TotalSpent),
		PlayersBought:  agg.PlayersBought,
	}
	s.RemainingPlayers = max(0, rules.MaxPlayersPerTeam-agg.PlayersBought)
	if s.RemainingPlayers == 0 {
		s.IsQuotaFull = true
		return s
	}
	reserve := int64(s.RemainingPlayers-1) * rules.BasePrice
	s.MaxBid = max(0, s.CurrentBalance-reserve)
	return s
}

// Snapshot recomputes a team's ledger from the player records without touching the cache.
func (t *Tournament) Snapshot(teamID string) (LedgerSnapshot, error) {
	team, ok := t.Team(teamID)
	if !ok {
		return LedgerSnapshot{}, ErrTeamNotFound.Withf("team %q", teamID)
	}
	return ComputeSnapshot(*team, t.Rules, SoldAggregateFor(t.Players, teamID)), nil
}

// Snapshots returns every team's ledger in roster order.
func (t *Tournament) Snapshots() []LedgerSnapshot {
	out := make([]LedgerSnapshot, 0, len(t.Teams))
	for i := range t.Teams {
		team := &t.Teams[i]
		out = append(out, ComputeSnapshot(*team, t.Rules, SoldAggregateFor(t.Players, team.ID)))
	}
	return out
}

// Recalculate re-derives the cached balance and purchased list of a team.
func (t *Tournament) Recalculate(teamID string) (LedgerSnapshot, error) {
	team, ok := t.Team(teamID)
	if !ok {
		return LedgerSnapshot{}, ErrTeamNotFound.Withf("team %q", teamID)
	}
	agg := SoldAggregateFor(t.Players, teamID)
	snap := ComputeSnapshot(*team, t.Rules, agg)
	team.CurrentBalance = snap.CurrentBalance
	team.PurchasedPlayers = agg.PlayerIDs
	return snap, nil
}

func (t *Tournament) RecalculateAll() {
	for i := range t.Teams {
		_, _ = t.Recalculate(t.Teams[i].ID)
	}
}
