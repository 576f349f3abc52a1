package engine

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleSeat   Role = "seat"
	RoleSystem Role = "system"
)

// Actor is the verified originator of a command. Seat actors always carry
// TeamID and SeatID; verification happens before the engine sees them.
type Actor struct {
	Role   Role   `json:"role"`
	Name   string `json:"name,omitempty"`
	TeamID string `json:"teamId,omitempty"`
	SeatID string `json:"seatId,omitempty"`
	// AuthVersion is the seat credential generation the token was issued for.
	AuthVersion int `json:"authVersion,omitempty"`
}

type CommandType string

const (
	CmdStart            CommandType = "start"
	CmdPause            CommandType = "pause"
	CmdResume           CommandType = "resume"
	CmdStop             CommandType = "stop"
	CmdUnlock           CommandType = "unlock"
	CmdCallNext         CommandType = "call-next"
	CmdCallPlayer       CommandType = "call-player"
	CmdBid              CommandType = "bid"
	CmdVote             CommandType = "vote"
	CmdLastCallStart    CommandType = "last-call-start"
	CmdLastCallWithdraw CommandType = "last-call-withdraw"
	CmdLastCallExpire   CommandType = "last-call-expire"
	CmdUndoBid          CommandType = "undo-bid"
	CmdMarkUnsold       CommandType = "mark-unsold"
	CmdSold             CommandType = "sold"
	CmdPending          CommandType = "pending"
	CmdWithdraw         CommandType = "withdraw"
	CmdRevokeSale       CommandType = "revoke-sale"
	CmdRecall           CommandType = "recall"
	CmdForceAuction     CommandType = "force-auction"
	CmdDirectAssign     CommandType = "direct-assign"
	CmdNextRound        CommandType = "next-round"
	CmdRestart          CommandType = "restart"
	CmdEnd              CommandType = "end"
	CmdAutoAdvance      CommandType = "auto-advance"
	CmdSetSeatStatus    CommandType = "set-seat-status"
	CmdResetSeat        CommandType = "reset-seat"
)

/*
	call-next / call-player -> player:next
	bid / vote (resolved)   -> bid:update        (vote always -> consensus:update)
	last-call-start         -> auction:last-call-started -> (expiry, opt-in) sold
	sold / direct-assign    -> player:sold -> auction:update-balance
	mark-unsold             -> player:unsold -> (delay) auto-advance -> player:next
	withdraw (active)       -> player:withdrawn -> (delay) auto-advance
*/

type Command struct {
	Type            CommandType `json:"type"`
	Actor           Actor       `json:"actor"`
	PlayerID        string      `json:"playerId,omitempty"`
	TeamID          string      `json:"teamId,omitempty"`
	SeatID          string      `json:"seatId,omitempty"`
	Amount          int64       `json:"amount,omitempty"`
	BypassQuota     bool        `json:"bypassQuota,omitempty"`
	BypassReadiness bool        `json:"bypassReadiness,omitempty"`
	DurationSeconds int         `json:"durationSeconds,omitempty"`
	ResumeSeconds   int         `json:"resumeSeconds,omitempty"`
	Reason          string      `json:"reason,omitempty"`
	Vote            VoteAction  `json:"vote,omitempty"`
	SeatStatus      SeatStatus  `json:"seatStatus,omitempty"`
	Turn            int         `json:"turn,omitempty"`
}

type EventType string

const (
	EvtPlayerNext        EventType = "player:next"
	EvtBidUpdate         EventType = "bid:update"
	EvtBidInvalid        EventType = "bid:invalid"
	EvtBidUndone         EventType = "bid:undone"
	EvtPlayerSold        EventType = "player:sold"
	EvtPlayerUnsold      EventType = "player:unsold"
	EvtPlayerPending     EventType = "player:pending"
	EvtPlayerWithdrawn   EventType = "player:withdrawn"
	EvtPlayerRecalled    EventType = "player:recalled"
	EvtAuctionStart      EventType = "auction:start"
	EvtAuctionPause      EventType = "auction:pause"
	EvtAuctionResume     EventType = "auction:resume"
	EvtAuctionStop       EventType = "auction:stop"
	EvtAuctionEnd        EventType = "auction:end"
	EvtAuctionReset      EventType = "auction:reset"
	EvtAuctionUnlocked   EventType = "auction:unlocked"
	EvtAuctionRound      EventType = "auction:round"
	EvtLastCallStarted   EventType = "auction:last-call-started"
	EvtLastCallWithdrawn EventType = "auction:last-call-withdrawn"
	EvtUpdateBalance     EventType = "auction:update-balance"
	EvtConsensusUpdate   EventType = "consensus:update"
	EvtSeatUpdate        EventType = "seat:update"
)

type Event struct {
	Type     EventType      `json:"type"`
	PlayerID string         `json:"playerId,omitempty"`
	TeamID   string         `json:"teamId,omitempty"`
	Amount   int64          `json:"amount,omitempty"`
	Stage    Stage          `json:"stage,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Result is what a committed command produced. Rejected is set when the state
// must still be committed but the caller's intent failed, e.g. a vote was
// recorded but the bid it triggered was refused.
type Result struct {
	Events        []Event
	AutoAdvance   bool
	LastCallTimer int
	Warnings      []string
	Rejected      error
}

func (r *Result) emit(e Event) {
	r.Events = append(r.Events, e)
}

// Apply runs one command against t, mutating it in place. On error t may be
// partially modified; callers that need rollback apply to a Clone.
func Apply(t *Tournament, cmd Command, env Env) (Result, error) {
	if t.Settings.AuctionDisabled && cmd.Type != CmdRestart {
		return Result{}, ErrAuctionDisabled
	}
	if cmd.Type != CmdVote && cmd.Actor.Role != RoleAdmin && cmd.Actor.Role != RoleSystem {
		return Result{}, ErrForbidden
	}

	a := &applier{t: t, cmd: cmd, now: env.now(), env: env}
	var err error
	switch cmd.Type {
	case CmdStart:
		err = a.start()
	case CmdPause:
		err = a.pause()
	case CmdResume:
		err = a.resume()
	case CmdStop:
		err = a.stop()
	case CmdUnlock:
		err = a.unlock()
	case CmdCallNext:
		err = a.callNext()
	case CmdCallPlayer:
		err = a.callPlayer()
	case CmdBid:
		err = a.adminBid()
	case CmdVote:
		err = a.vote()
	case CmdLastCallStart:
		err = a.lastCallStart()
	case CmdLastCallWithdraw:
		err = a.lastCallWithdraw()
	case CmdLastCallExpire:
		err = a.lastCallExpire()
	case CmdUndoBid:
		err = a.undoBid()
	case CmdMarkUnsold:
		err = a.markUnsold()
	case CmdSold:
		err = a.sold()
	case CmdPending:
		err = a.pending()
	case CmdWithdraw:
		err = a.withdraw()
	case CmdRevokeSale:
		err = a.revokeSale()
	case CmdRecall:
		err = a.recall()
	case CmdForceAuction:
		err = a.forceAuction()
	case CmdDirectAssign:
		err = a.directAssign()
	case CmdNextRound:
		err = a.nextRound()
	case CmdRestart:
		err = a.restart()
	case CmdEnd:
		err = a.end()
	case CmdAutoAdvance:
		err = a.autoAdvance()
	case CmdSetSeatStatus:
		err = a.setSeatStatus()
	case CmdResetSeat:
		err = a.resetSeat()
	default:
		err = ErrUnsupported.Withf("command %q", cmd.Type)
	}
	if err != nil {
		return Result{}, err
	}
	return a.res, nil
}
