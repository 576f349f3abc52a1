// Package types holds the public event contract: the envelope published on
// the push channel and the event names a client may receive.
package types

import (
	"encoding/json"
	"time"
)

// Event names. Clients must ignore names they do not know.
const (
	EventPlayerNext        = "player:next"
	EventBidUpdate         = "bid:update"
	EventBidInvalid        = "bid:invalid"
	EventBidUndone         = "bid:undone"
	EventPlayerSold        = "player:sold"
	EventPlayerUnsold      = "player:unsold"
	EventPlayerPending     = "player:pending"
	EventPlayerWithdrawn   = "player:withdrawn"
	EventPlayerRecalled    = "player:recalled"
	EventAuctionStart      = "auction:start"
	EventAuctionPause      = "auction:pause"
	EventAuctionResume     = "auction:resume"
	EventAuctionStop       = "auction:stop"
	EventAuctionEnd        = "auction:end"
	EventAuctionReset      = "auction:reset"
	EventAuctionUnlocked   = "auction:unlocked"
	EventAuctionRound      = "auction:round"
	EventLastCallStarted   = "auction:last-call-started"
	EventLastCallWithdrawn = "auction:last-call-withdrawn"
	EventUpdateBalance     = "auction:update-balance"
	EventConsensusUpdate   = "consensus:update"
	EventSeatUpdate        = "seat:update"
)

// Envelope wraps one event for a tournament. Version is the aggregate version
// the event was committed at; events sharing a version came from one command.
type Envelope struct {
	Type       string          `json:"type"`
	Tournament string          `json:"tournamentCode"`
	Version    int64           `json:"version"`
	At         time.Time       `json:"at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Client -> Server (websocket)
// vote:
//   playerId: string   // optional guard against voting on a stale player
//   action: "call" | "pass" | "override_call"
//
// ping: {}

// Server -> Client (websocket)
// snapshot:
//   version: number
//   state: tournament document
//
// event:
//   version: number
//   event: { type, playerId, teamId, amount, stage, data }
//
// error:
//   error: { kind, code, message, details }
