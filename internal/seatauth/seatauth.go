// Package seatauth issues and checks the credentials of seats and operators.
package seatauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/DoyleJ11/player-auction-backend/internal/engine"
)

const issuer = "player-auction"

var (
	ErrInvalidToken = errors.New("seatauth: invalid token")
	ErrExpiredToken = errors.New("seatauth: token expired")
	ErrNoSecret     = errors.New("seatauth: seat token secret is not configured")
)

// Claims bind a token to one seat of one team in one tournament at a given
// authVersion. Bumping the seat's authVersion revokes every earlier token.
type Claims struct {
	jwt.RegisteredClaims
	TournamentCode string `json:"tournament_code"`
	TeamID         string `json:"team_id"`
	SeatID         string `json:"seat_id"`
	AuthVersion    int    `json:"auth_version"`
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, now func() time.Time) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// Issue signs a token for the seat as it currently stands.
func (i *Issuer) Issue(code, teamID string, seat engine.Seat) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   seat.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		TournamentCode: code,
		TeamID:         teamID,
		SeatID:         seat.ID,
		AuthVersion:    seat.AuthVersion,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("seatauth: sign: %w", err)
	}
	return token, exp, nil
}

// Verify checks signature and lifetime. It does not check the seat's live state;
// see Authorize.
func (i *Issuer) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TournamentCode == "" || claims.TeamID == "" || claims.SeatID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// Authorize resolves verified claims against the live tournament and returns
// the seat actor the engine accepts.
func Authorize(t *engine.Tournament, c *Claims) (engine.Actor, error) {
	if c.TournamentCode != t.Code {
		return engine.Actor{}, engine.ErrForbidden.With("token belongs to another tournament")
	}
	team, ok := t.Team(c.TeamID)
	if !ok {
		return engine.Actor{}, engine.ErrTeamNotFound.Withf("team %q", c.TeamID)
	}
	seat, ok := team.Seat(c.SeatID)
	if !ok {
		return engine.Actor{}, engine.ErrSeatNotFound.Withf("seat %q", c.SeatID)
	}
	if seat.AuthVersion != c.AuthVersion {
		return engine.Actor{}, engine.ErrForbidden.With("seat credentials were reset")
	}
	if seat.Status == engine.SeatDisabled {
		return engine.Actor{}, engine.ErrSeatInactive.Withf("seat %s is disabled", seat.Name)
	}
	return engine.Actor{Role: engine.RoleSeat, Name: seat.Name, TeamID: team.ID, SeatID: seat.ID, AuthVersion: seat.AuthVersion}, nil
}

// AdminKey checks operator keys against a bcrypt hash.
type AdminKey struct {
	hash []byte
}

func NewAdminKey(hash string) *AdminKey {
	return &AdminKey{hash: []byte(strings.TrimSpace(hash))}
}

func (k *AdminKey) Enabled() bool { return len(k.hash) > 0 }

func (k *AdminKey) Check(key string) bool {
	if !k.Enabled() || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(k.hash, []byte(key)) == nil
}

// HashAdminKey produces the value stored in auth.admin_key_hash.
func HashAdminKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("seatauth: hash admin key: %w", err)
	}
	return string(hash), nil
}
