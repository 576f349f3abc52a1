package engine

import "fmt"

// TeamQuorum is the pre-start quorum check of one team.
type TeamQuorum struct {
	TeamID       string `json:"teamId"`
	ActiveVoters int    `json:"activeVoters"`
	Required     int    `json:"required"`
	Complete     bool   `json:"complete"`
}

func QuorumStatus(team Team, baseline int) TeamQuorum {
	active := ActiveVoterSeats(team)
	required := RequiredQuorumSeats(team.SeatPolicy, active, baseline)
	return TeamQuorum{
		TeamID:       team.ID,
		ActiveVoters: active,
		Required:     required,
		Complete:     active >= required,
	}
}

// CheckReadiness lists every condition blocking the start of the auction.
func CheckReadiness(t *Tournament) []string {
	var issues []string
	s := t.Settings
	if !s.RegistrationClosed {
		issues = append(issues, "registration is still open")
	}
	if len(t.Players) < s.MinPlayers {
		issues = append(issues, fmt.Sprintf("%d players registered, %d required", len(t.Players), s.MinPlayers))
	}
	if len(t.Teams) < s.MinTeams {
		issues = append(issues, fmt.Sprintf("%d teams registered, %d required", len(t.Teams), s.MinTeams))
	}
	if s.MultiSeatVoting {
		for _, team := range t.Teams {
			q := QuorumStatus(team, s.QuorumBaseline)
			if !q.Complete {
				issues = append(issues, fmt.Sprintf("team %s has %d active voter seats, %d required", team.Name, q.ActiveVoters, q.Required))
			}
		}
	}
	return issues
}
