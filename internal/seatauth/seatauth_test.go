package seatauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/DoyleJ11/player-auction-backend/internal/engine"
)

func tournament() *engine.Tournament {
	return &engine.Tournament{
		Code: "T1",
		Teams: []engine.Team{{
			ID:   "A",
			Name: "Alpha",
			Seats: []engine.Seat{
				{ID: "s1", Name: "Lead", IsVoter: true, IsLead: true, Status: engine.SeatActive},
				{ID: "s2", Name: "Scout", IsVoter: true, Status: engine.SeatDisabled},
			},
		}},
	}
}

func clock(at time.Time) func() time.Time { return func() time.Time { return at } }

func TestIssueVerifyAuthorize(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss, err := NewIssuer("secret", time.Hour, clock(now))
	require.NoError(t, err)

	tr := tournament()
	token, exp, err := iss.Issue("T1", "A", tr.Teams[0].Seats[0])
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	claims, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "s1", claims.SeatID)
	assert.NotEmpty(t, claims.ID)

	actor, err := Authorize(tr, claims)
	require.NoError(t, err)
	assert.Equal(t, engine.Actor{Role: engine.RoleSeat, Name: "Lead", TeamID: "A", SeatID: "s1"}, actor)

	tr.Teams[0].Seats[0].AuthVersion++
	_, err = Authorize(tr, claims)
	assert.ErrorIs(t, err, engine.ErrForbidden)
}

func TestVerify_Rejects(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss, err := NewIssuer("secret", time.Minute, clock(now))
	require.NoError(t, err)
	token, _, err := iss.Issue("T1", "A", engine.Seat{ID: "s1"})
	require.NoError(t, err)

	later, _ := NewIssuer("secret", time.Minute, clock(now.Add(2*time.Minute)))
	_, err = later.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)

	other, _ := NewIssuer("other", time.Minute, clock(now))
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorize_Checks(t *testing.T) {
	tr := tournament()
	tests := []struct {
		name   string
		claims Claims
		want   error
	}{
		{"other tournament", Claims{TournamentCode: "T2", TeamID: "A", SeatID: "s1"}, engine.ErrForbidden},
		{"unknown team", Claims{TournamentCode: "T1", TeamID: "Z", SeatID: "s1"}, engine.ErrTeamNotFound},
		{"unknown seat", Claims{TournamentCode: "T1", TeamID: "A", SeatID: "s9"}, engine.ErrSeatNotFound},
		{"disabled seat", Claims{TournamentCode: "T1", TeamID: "A", SeatID: "s2"}, engine.ErrSeatInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Authorize(tr, &tt.claims)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer("  ", time.Hour, nil)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)

	k := NewAdminKey(string(hash))
	assert.True(t, k.Check("letmein"))
	assert.False(t, k.Check("nope"))
	assert.False(t, k.Check(""))
	assert.False(t, NewAdminKey("").Check("letmein"))
}
