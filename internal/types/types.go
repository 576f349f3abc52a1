package types

import (
	"github.com/DoyleJ11/player-auction-backend/internal/engine"
)

const (
	ClientVote = "vote"
	ClientPing = "ping"

	ServerSnapshot = "snapshot"
	ServerEvent    = "event"
	ServerError    = "error"
	ServerPong     = "pong"
)

type ClientMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId,omitempty"`
	Action   string `json:"action,omitempty"`
}

type ServerMessage struct {
	Type           string             `json:"type"`
	TournamentCode string             `json:"tournamentCode,omitempty"`
	Version        int64              `json:"version,omitempty"`
	State          *engine.Tournament `json:"state,omitempty"`
	Event          *engine.Event      `json:"event,omitempty"`
	Error          *engine.Error      `json:"error,omitempty"`
}

// CommandRequest is the body of an operator command; which fields matter
// depends on the command.
type CommandRequest struct {
	PlayerID        string            `json:"playerId,omitempty"`
	TeamID          string            `json:"teamId,omitempty"`
	SeatID          string            `json:"seatId,omitempty"`
	Amount          int64             `json:"amount,omitempty"`
	BypassQuota     bool              `json:"bypassQuota,omitempty"`
	BypassReadiness bool              `json:"bypassReadiness,omitempty"`
	DurationSeconds int               `json:"durationSeconds,omitempty"`
	ResumeSeconds   int               `json:"resumeSeconds,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	SeatStatus      engine.SeatStatus `json:"seatStatus,omitempty"`
	Operator        string            `json:"operator,omitempty"`
}

type VoteRequest struct {
	PlayerID string `json:"playerId,omitempty"`
	Action   string `json:"action"`
}

type CommandResponse struct {
	Version  int64          `json:"version"`
	Events   []engine.Event `json:"events"`
	Warnings []string       `json:"warnings,omitempty"`
	Rejected *engine.Error  `json:"rejected,omitempty"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

type StatusResponse struct {
	Version    int64                   `json:"version"`
	Tournament *engine.Tournament      `json:"tournament"`
	NextBid    int64                   `json:"nextBid,omitempty"`
	Teams      []engine.LedgerSnapshot `json:"teams"`
	Readiness  []string                `json:"readiness,omitempty"`
	Viewers    int                     `json:"viewers"`
}
