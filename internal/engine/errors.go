package engine

import (
	"fmt"
	"slices"
)

// Kind classifies a rejection so the transport can map it without knowing codes.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindDisabled   Kind = "disabled"
)

// Error is a rejected command. Conflicts carry Details listing each unmet condition.
type Error struct {
	Kind    Kind     `json:"kind"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Details)
}

// Is matches on Code so derived copies still satisfy errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// With returns a copy of e carrying details.
func (e *Error) With(details ...string) *Error {
	cp := *e
	cp.Details = append(slices.Clone(e.Details), details...)
	return &cp
}

// Withf returns a copy of e with a formatted detail line appended.
func (e *Error) Withf(format string, args ...any) *Error {
	return e.With(fmt.Sprintf(format, args...))
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrInvalidCommand  = newError(KindValidation, "INVALID_COMMAND", "invalid command")
	ErrUnsupported     = newError(KindValidation, "UNSUPPORTED_COMMAND", "unsupported command")
	ErrInvalidAmount   = newError(KindValidation, "INVALID_AMOUNT", "amount must be positive")
	ErrInvalidVote     = newError(KindValidation, "INVALID_VOTE", "unknown vote action")
	ErrInvalidTimer    = newError(KindValidation, "INVALID_TIMER", "invalid timer value")
	ErrMissingTeam     = newError(KindValidation, "TEAM_REQUIRED", "team id is required")
	ErrMissingPlayer   = newError(KindValidation, "PLAYER_REQUIRED", "player id is required")
	ErrInvalidSeatStat = newError(KindValidation, "INVALID_SEAT_STATUS", "unknown seat status")

	ErrConsecutiveBid      = newError(KindConflict, "CONSECUTIVE_BID_BLOCKED", "team already holds the highest bid")
	ErrQuotaFull           = newError(KindConflict, "QUOTA_FULL", "team squad quota is full")
	ErrInsufficientBalance = newError(KindConflict, "INSUFFICIENT_BALANCE", "bid exceeds the team's allowed limit")
	ErrCurrentPlayerActive = newError(KindConflict, "CURRENT_PLAYER_ACTIVE", "another player is already in auction")
	ErrAuctionNotReady     = newError(KindConflict, "AUCTION_NOT_READY", "auction is not ready to start")
	ErrNoAvailablePlayers  = newError(KindConflict, "NO_AVAILABLE_PLAYERS", "no available players left")
	ErrPlayerNotAvailable  = newError(KindConflict, "PLAYER_NOT_AVAILABLE", "player is not available for this action")
	ErrNoActivePlayer      = newError(KindConflict, "NO_ACTIVE_PLAYER", "no player is currently in auction")
	ErrNoBids              = newError(KindConflict, "NO_BIDS", "no bid has been placed")
	ErrBidsPlaced          = newError(KindConflict, "BIDS_PLACED", "player already has bids")
	ErrNotStarted          = newError(KindConflict, "AUCTION_NOT_STARTED", "auction has not been started")
	ErrAlreadyStarted      = newError(KindConflict, "AUCTION_ALREADY_STARTED", "auction is already running")
	ErrPaused              = newError(KindConflict, "AUCTION_PAUSED", "auction is paused")
	ErrNotPaused           = newError(KindConflict, "AUCTION_NOT_PAUSED", "auction is not paused")
	ErrLocked              = newError(KindConflict, "AUCTION_LOCKED", "auction is locked")
	ErrNotLocked           = newError(KindConflict, "AUCTION_NOT_LOCKED", "auction is not locked")
	ErrLastCallInactive    = newError(KindConflict, "LAST_CALL_INACTIVE", "no last call is active")
	ErrWrongStage          = newError(KindConflict, "WRONG_STAGE", "action not allowed in the current stage")
	ErrAlreadyWithdrawn    = newError(KindConflict, "ALREADY_WITHDRAWN", "player is already withdrawn")
	ErrPlayerNotSold       = newError(KindConflict, "PLAYER_NOT_SOLD", "player has not been sold")
	ErrStalePlayer         = newError(KindConflict, "STALE_PLAYER", "vote targets a player that is no longer in auction")

	ErrPlayerNotFound     = newError(KindNotFound, "PLAYER_NOT_FOUND", "player not found")
	ErrTeamNotFound       = newError(KindNotFound, "TEAM_NOT_FOUND", "team not found")
	ErrSeatNotFound       = newError(KindNotFound, "SEAT_NOT_FOUND", "seat not found")
	ErrTournamentNotFound = newError(KindNotFound, "TOURNAMENT_NOT_FOUND", "tournament not found")

	ErrForbidden    = newError(KindForbidden, "FORBIDDEN", "admin access required")
	ErrSeatInactive = newError(KindForbidden, "SEAT_INACTIVE", "seat is not active")
	ErrSeatNotVoter = newError(KindForbidden, "SEAT_NOT_VOTER", "seat is not allowed to vote")

	ErrAuctionDisabled = newError(KindDisabled, "AUCTION_DISABLED", "auction is disabled for this tournament")
)
