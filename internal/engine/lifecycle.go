package engine

import (
	"errors"
	"strings"
	"time"
)

// Last-call countdown bounds in seconds.
const (
	MinLastCallSeconds     = 5
	MaxLastCallSeconds     = 180
	DefaultLastCallSeconds = 15
)

type applier struct {
	t   *Tournament
	cmd Command
	now time.Time
	env Env
	res Result
}

func (a *applier) state() *AuctionState { return &a.t.Auction }

func (a *applier) emit(e Event) {
	if e.Stage == "" {
		e.Stage = a.t.Auction.Stage
	}
	a.res.emit(e)
}

func (a *applier) requireNotLocked() error {
	if a.t.Auction.IsLocked {
		return ErrLocked
	}
	return nil
}

// requireLive gates everything that touches the live bidding floor.
func (a *applier) requireLive() error {
	st := a.state()
	switch {
	case st.IsLocked:
		return ErrLocked
	case !st.Started:
		return ErrNotStarted
	case st.Paused:
		return ErrPaused
	}
	return nil
}

func (a *applier) requireCurrent() (*Player, error) {
	p := a.t.CurrentPlayer()
	if p == nil {
		return nil, ErrNoActivePlayer
	}
	return p, nil
}

func (a *applier) player(id string) (*Player, error) {
	if id == "" {
		return nil, ErrMissingPlayer
	}
	p, ok := a.t.Player(id)
	if !ok {
		return nil, ErrPlayerNotFound.Withf("player %q", id)
	}
	return p, nil
}

func (a *applier) team(id string) (*Team, error) {
	if id == "" {
		return nil, ErrMissingTeam
	}
	team, ok := a.t.Team(id)
	if !ok {
		return nil, ErrTeamNotFound.Withf("team %q", id)
	}
	return team, nil
}

func (a *applier) logf(level LogLevel, playerID, teamID, format string, args ...any) {
	a.t.logf(a.now, level, playerID, teamID, format, args...)
}

// clearFloor resets the live-auction pointer and everything hanging off it.
func (a *applier) clearFloor() {
	st := a.state()
	st.CurrentPlayer = ""
	st.CurrentBid = 0
	st.HighestBidder = ""
	st.LastBidTeamID = ""
	st.LastCall = LastCall{}
	st.Stage = StageIdle
}

func (a *applier) emitBalance(teamID string) error {
	snap, err := a.t.Recalculate(teamID)
	if err != nil {
		return err
	}
	a.emit(Event{
		Type:   EvtUpdateBalance,
		TeamID: teamID,
		Amount: snap.CurrentBalance,
		Data: map[string]any{
			"balance":          snap.CurrentBalance,
			"maxBid":           snap.MaxBid,
			"playersBought":    snap.PlayersBought,
			"remainingPlayers": snap.RemainingPlayers,
		},
	})
	return nil
}

func (a *applier) start() error {
	st := a.state()
	if err := a.requireNotLocked(); err != nil {
		return err
	}
	if st.Started {
		return ErrAlreadyStarted
	}
	if issues := CheckReadiness(a.t); len(issues) > 0 {
		if !a.cmd.BypassReadiness {
			return ErrAuctionNotReady.With(issues...)
		}
		a.res.Warnings = append(a.res.Warnings, issues...)
		a.logf(LevelWarn, "", "", "readiness bypassed: %s", strings.Join(issues, "; "))
	}
	st.Started = true
	st.Paused = false
	st.Stage = StageInitialize
	st.CurrentRound = max(1, st.CurrentRound)
	a.logf(LevelInfo, "", "", "auction started")
	a.emit(Event{Type: EvtAuctionStart, Data: map[string]any{"round": st.CurrentRound, "bypassed": len(a.res.Warnings) > 0}})
	return nil
}

func (a *applier) pause() error {
	st := a.state()
	if err := a.requireLive(); err != nil {
		return err
	}
	st.Paused = true
	a.logf(LevelInfo, "", "", "auction paused")
	a.emit(Event{Type: EvtAuctionPause})
	return nil
}

func (a *applier) resume() error {
	st := a.state()
	if err := a.requireNotLocked(); err != nil {
		return err
	}
	if !st.Started {
		return ErrNotStarted
	}
	if !st.Paused {
		return ErrNotPaused
	}
	st.Paused = false
	a.logf(LevelInfo, "", "", "auction resumed")
	a.emit(Event{Type: EvtAuctionResume})
	return nil
}

func (a *applier) stop() error {
	st := a.state()
	if err := a.requireNotLocked(); err != nil {
		return err
	}
	if !st.Started {
		return ErrNotStarted
	}
	if p := a.t.CurrentPlayer(); p != nil {
		p.Status = StatusAvailable
		p.clearBids()
		st.SeatConsensus.ClearPlayer(p.ID)
	}
	a.clearFloor()
	st.Started = false
	st.Paused = false
	a.logf(LevelInfo, "", "", "auction stopped")
	a.emit(Event{Type: EvtAuctionStop})
	return nil
}

func (a *applier) unlock() error {
	st := a.state()
	if !st.IsLocked {
		return ErrNotLocked
	}
	st.IsLocked = false
	st.Stage = StageIdle
	a.logf(LevelInfo, "", "", "auction unlocked")
	a.emit(Event{Type: EvtAuctionUnlocked})
	return nil
}

// heal puts back players left InAuction by an interrupted transition and
// fills missing statuses.
func (a *applier) heal() {
	st := a.state()
	for i := range a.t.Players {
		p := &a.t.Players[i]
		switch {
		case p.Status == "":
			p.Status = StatusAvailable
		case p.Status == StatusInAuction && p.ID != st.CurrentPlayer:
			p.Status = StatusAvailable
			p.clearBids()
			a.logf(LevelWarn, p.ID, "", "recovered orphaned player %s", p.Name)
		}
	}
	if st.CurrentPlayer != "" && a.t.CurrentPlayer() == nil {
		a.clearFloor()
	}
}

func (a *applier) requireFloorFree() error {
	a.heal()
	if p := a.t.CurrentPlayer(); p != nil {
		return ErrCurrentPlayerActive.Withf("%s is in auction", p.Name)
	}
	return nil
}

func (a *applier) callNext() error {
	if err := a.requireLive(); err != nil {
		return err
	}
	if err := a.requireFloorFree(); err != nil {
		return err
	}
	var pool []int
	for i := range a.t.Players {
		if a.t.Players[i].Status == StatusAvailable {
			pool = append(pool, i)
		}
	}
	if len(pool) == 0 {
		return ErrNoAvailablePlayers
	}
	a.begin(&a.t.Players[pool[a.env.intn(len(pool))]], false)
	return nil
}

func (a *applier) callPlayer() error {
	if err := a.requireLive(); err != nil {
		return err
	}
	if err := a.requireFloorFree(); err != nil {
		return err
	}
	p, err := a.player(a.cmd.PlayerID)
	if err != nil {
		return err
	}
	if p.Status != StatusAvailable {
		return ErrPlayerNotAvailable.Withf("%s is %s", p.Name, p.Status)
	}
	a.begin(p, false)
	return nil
}

func (a *applier) begin(p *Player, forced bool) {
	st := a.state()
	p.Status = StatusInAuction
	p.clearBids()
	st.CurrentPlayer = p.ID
	st.Turn++
	st.CurrentBid = 0
	st.HighestBidder = ""
	st.LastBidTeamID = ""
	st.LastCall = LastCall{}
	st.TimerSeconds = a.t.Rules.BidTimerSeconds
	st.Stage = StageBidding
	a.logf(LevelInfo, p.ID, "", "%s called at base price %d", p.Name, NextBid(a.t.Rules, p))
	a.emit(Event{
		Type:     EvtPlayerNext,
		PlayerID: p.ID,
		Amount:   NextBid(a.t.Rules, p),
		Data:     map[string]any{"name": p.Name, "role": p.Role, "forceAuction": forced},
	})
}

func (a *applier) requireBiddingStage() error {
	switch a.state().Stage {
	case StageBidding, StageLastCall:
		return nil
	}
	return ErrWrongStage.Withf("stage is %s", a.state().Stage)
}

func (a *applier) placeBid(teamID string, actor Actor) (Bid, error) {
	bid, err := ExecuteBid(a.t, BidRequest{
		TeamID:      teamID,
		BypassQuota: a.cmd.BypassQuota && actor.Role != RoleSeat,
		Actor:       actor,
		At:          a.now,
	})
	if err != nil {
		return Bid{}, err
	}
	a.emit(Event{
		Type:     EvtBidUpdate,
		PlayerID: a.t.Auction.CurrentPlayer,
		TeamID:   bid.TeamID,
		Amount:   bid.Amount,
		Data: map[string]any{
			"teamName": a.t.teamName(bid.TeamID),
			"actor":    bid.Actor,
			"seatId":   bid.SeatID,
			"nextBid":  NextBid(a.t.Rules, a.t.CurrentPlayer()),
		},
	})
	return bid, nil
}

func (a *applier) adminBid() error {
	if err := a.requireLive(); err != nil {
		return err
	}
	if _, err := a.requireCurrent(); err != nil {
		return err
	}
	if err := a.requireBiddingStage(); err != nil {
		return err
	}
	_, err := a.placeBid(a.cmd.TeamID, a.cmd.Actor)
	return err
}

func (a *applier) vote() error {
	actor := a.cmd.Actor
	if actor.Role != RoleSeat || actor.TeamID == "" || actor.SeatID == "" {
		return ErrForbidden.With("vote requires a verified seat")
	}
	if !a.cmd.Vote.Valid() {
		return ErrInvalidVote.Withf("action %q", a.cmd.Vote)
	}
	if err := a.requireLive(); err != nil {
		return err
	}
	team, err := a.team(actor.TeamID)
	if err != nil {
		return err
	}
	seat, ok := team.Seat(actor.SeatID)
	if !ok {
		return ErrSeatNotFound.Withf("seat %q", actor.SeatID)
	}
	if seat.AuthVersion != actor.AuthVersion {
		return ErrForbidden.With("seat credentials were reset")
	}
	if seat.Status != SeatActive {
		return ErrSeatInactive.Withf("seat %s is %s", seat.Name, seat.Status)
	}
	if !seat.IsVoter {
		return ErrSeatNotVoter
	}
	p, err := a.requireCurrent()
	if err != nil {
		return err
	}
	if a.cmd.PlayerID != "" && a.cmd.PlayerID != p.ID {
		return ErrStalePlayer.Withf("current player is %s", p.ID)
	}
	if err := a.requireBiddingStage(); err != nil {
		return err
	}

	st := a.state()
	key := ConsensusKey{TeamID: team.ID, PlayerID: p.ID}
	entry := st.SeatConsensus.Cast(key, Vote{SeatID: seat.ID, Action: a.cmd.Vote, At: a.now})
	policy := team.SeatPolicy
	tally := Evaluate(policy, CountedVotes(*team, entry.Votes), EligibleVoters(*team))
	a.emit(Event{
		Type:     EvtConsensusUpdate,
		PlayerID: p.ID,
		TeamID:   team.ID,
		Data: map[string]any{
			"seatId":    seat.ID,
			"action":    string(a.cmd.Vote),
			"callVotes": tally.CallVotes,
			"passVotes": tally.PassVotes,
			"required":  tally.Required,
			"resolved":  tally.Resolved,
		},
	})
	if !ShouldTrigger(policy, *seat, a.cmd.Vote, tally) {
		return nil
	}

	seatActor := actor
	if seatActor.Name == "" {
		seatActor.Name = seat.Name
	}
	if _, err := a.placeBid(team.ID, seatActor); err != nil {
		a.res.Rejected = err
		data := map[string]any{"message": err.Error()}
		var e *Error
		if errors.As(err, &e) {
			data["code"] = e.Code
		}
		a.emit(Event{Type: EvtBidInvalid, PlayerID: p.ID, TeamID: team.ID, Data: data})
		return nil
	}
	if policy.AutoResetOnBid {
		st.SeatConsensus.Clear(key)
	}
	return nil
}

func (a *applier) lastCallStart() error {
	st := a.state()
	if err := a.requireLive(); err != nil {
		return err
	}
	p, err := a.requireCurrent()
	if err != nil {
		return err
	}
	if st.Stage != StageBidding {
		return ErrWrongStage.Withf("stage is %s", st.Stage)
	}
	if st.CurrentBid <= 0 || st.HighestBidder == "" {
		return ErrNoBids.With("last call requires a highest bid")
	}
	d := a.cmd.DurationSeconds
	if d == 0 {
		d = a.t.Rules.LastCallSeconds
	}
	if d == 0 {
		d = DefaultLastCallSeconds
	}
	d = min(max(d, MinLastCallSeconds), MaxLastCallSeconds)
	resume := a.cmd.ResumeSeconds
	if resume < 0 {
		return ErrInvalidTimer.Withf("resumeSeconds %d", resume)
	}
	if resume == 0 {
		resume = st.TimerSeconds
	}
	st.LastCall = LastCall{
		Active:        true,
		TeamID:        st.HighestBidder,
		TimerSeconds:  d,
		ResumeSeconds: resume,
		StartedAt:     a.now,
	}
	st.Stage = StageLastCall
	a.res.LastCallTimer = d
	a.logf(LevelInfo, p.ID, st.HighestBidder, "last call for %s at %d (%ds)", p.Name, st.CurrentBid, d)
	a.emit(Event{
		Type:     EvtLastCallStarted,
		PlayerID: p.ID,
		TeamID:   st.HighestBidder,
		Amount:   st.CurrentBid,
		Data:     map[string]any{"durationSeconds": d, "resumeSeconds": resume},
	})
	return nil
}

func (a *applier) lastCallWithdraw() error {
	st := a.state()
	if err := a.requireNotLocked(); err != nil {
		return err
	}
	if st.Stage != StageLastCall || !st.LastCall.Active {
		return ErrLastCallInactive
	}
	resume := st.LastCall.ResumeSeconds
	if a.cmd.ResumeSeconds > 0 {
		resume = a.cmd.ResumeSeconds
	}
	st.TimerSeconds = resume
	st.LastCall = LastCall{}
	st.Stage = StageBidding
	a.logf(LevelInfo, st.CurrentPlayer, "", "last call withdrawn")
	a.emit(Event{
		Type:     EvtLastCallWithdrawn,
		PlayerID: st.CurrentPlayer,
		Data:     map[string]any{"timerSeconds": resume},
	})
	return nil
}

// lastCallExpire sells only if nothing moved since the countdown was armed.
func (a *applier) lastCallExpire() error {
	st := a.state()
	if st.Stage != StageLastCall || !st.LastCall.Active || st.Paused || st.IsLocked {
		return nil
	}
	if st.CurrentPlayer != a.cmd.PlayerID || st.CurrentBid != a.cmd.Amount {
		return nil
	}
	return a.sold()
}

func (a *applier) undoBid() error {
	st := a.state()
	if err := a.requireNotLocked(); err != nil {
		return err
	}
	p, err := a.requireCurrent()
	if err != nil {
		return err
	}
	if len(p.BidHistory) == 0 {
		return ErrNoBids
	}
	undone := p.BidHistory[len(p.BidHistory)-1]
	p.BidHistory = p.BidHistory[:len(p.BidHistory)-1]
	if last, ok := p.lastBid(); ok {
		p.CurrentBid = last.Amount
		p.CurrentBidTeam = last.TeamID
	} else {
		p.CurrentBid = 0
		p.CurrentBidTeam = ""
	}
	st.CurrentBid = p.CurrentBid
	st.HighestBidder = p.CurrentBidTeam
	st.LastBidTeamID = p.CurrentBidTeam
	if st.LastCall.Active {
		if st.LastCall.ResumeSeconds > 0 {
			st.TimerSeconds = st.LastCall.ResumeSeconds
		}
		st.LastCall = LastCall{}
		st.Stage = StageBidding
	}
	a.logf(LevelInfo, p.ID, undone.TeamID, "undid bid %d by %s", undone.Amount, a.t.teamName(undone.TeamID))
	a.emit(Event{
		Type:     EvtBidUndone,
		PlayerID: p.ID,
		TeamID:   p.CurrentBidTeam,
		Amount:   p.CurrentBid,
		Data:     map[string]any{"undoneTeamId": undone.TeamID, "undoneAmount": undone.Amount},
	})
	return nil
}

func (a *applier) markUnsold() error {
	st := a.state()
	if err := a.requireNotLocked(); err != nil {
		return err
	}
	p, err := a.requireCurrent()
	if err != nil {
		return err
	}
	if len(p.BidHistory) > 0 {
		return ErrBidsPlaced.Withf("%d bids on %s", len(p.BidHistory), p.Name)
	}
	p.Status = StatusUnsold
	p.clearBids()
	st.SeatConsensus.ClearPlayer(p.ID)
	st.ForceAuctionPlayers = removeID(st.ForceAuctionPlayers, p.ID)
	a.clearFloor()
	a.res.AutoAdvance = true
	a.logf(LevelInfo, p.ID, "", "%s unsold", p.Name)
	a.emit(Event{Type: EvtPlayerUnsold, PlayerID: p.ID})
	return nil
}

func (a *applier) sold() error {
	st := a.state()
	if err := a.requireNotLocked(); err != nil {
		return err
	}
	p, err := a.requireCurrent()
	if err != nil {
		return err
	}
	if st.HighestBidder == "" || p.CurrentBid <= 0 {
		return ErrNoBids.With("sale requires a highest bidder")
	}
	team, err := a.team(st.HighestBidder)
	if err != nil {
		return err
	}
	forced := a.t.IsForceAuction(p.ID)
	snap, err := a.t.Snapshot(team.ID)
	if err != nil {
		return err
	}
	if !(a.cmd.BypassQuota || forced) && snap.IsQuotaFull {
		return ErrQuotaFull.Withf("%s already bought %d players", team.Name, snap.PlayersBought)
	}
	if p.CurrentBid > snap.CurrentBalance {
		return ErrInsufficientBalance.Withf("price %d exceeds balance %d", p.CurrentBid, snap.CurrentBalance)
	}

	p.Status = StatusSold
	p.SoldPrice = p.CurrentBid
	p.SoldTo = team.ID
	p.TransactionType = TxAuction
	if forced {
		p.TransactionType = TxForceAuction
	}
	st.ForceAuctionPlayers = removeID(st.ForceAuctionPlayers, p.ID)
	st.PendingPlayers = removeID(st.PendingPlayers, p.ID)
	st.SeatConsensus.ClearPlayer(p.ID)
	a.clearFloor()
	a.logf(LevelInfo, p.ID, team.ID, "%s sold to %s for %d", p.Name, team.Name, p.SoldPrice)
	a.emit(Event{
		Type:     EvtPlayerSold,
		PlayerID: p.ID,
		TeamID:   team.ID,
		Amount:   p.SoldPrice,
		Data:     map[string]any{"transactionType": string(p.TransactionType), "teamName": team.Name, "name": p.Name},
	})
	return a.emitBalance(team.ID)
}

func (a *applier) pending() error {
	st := a.state()
	if err := a.requireNotLocked(); err != nil {
		return err
	}
	p, err := a.requireCurrent()
	if err != nil {
		return err
	}
	p.Status = StatusPending
	p.clearBids()
	st.PendingPlayers = addID(st.PendingPlayers, p.ID)
	st.ForceAuctionPlayers = removeID(st.ForceAuctionPlayers, p.ID)
	st.SeatConsensus.ClearPlayer(p.ID)
	a.clearFloor()
	a.logf(LevelInfo, p.ID, "", "%s moved to pending", p.Name)
	a.emit(Event{Type: EvtPlayerPending, PlayerID: p.ID})
	return nil
}

// refund reverses a sale and rebuilds the former owner's ledger.
func (a *applier) refund(p *Player) (string, error) {
	teamID := p.SoldTo
	p.clearSale()
	p.Status = StatusWithdrawn
	if teamID == "" {
		return "", nil
	}
	if _, ok := a.t.Team(teamID); !ok {
		return "", nil
	}
	return teamID, a.emitBalance(teamID)
}

func (a *applier) withdraw() error {
	st := a.state()
	if err := a.requireNotLocked(); err != nil {
		return err
	}
	p, err := a.player(a.cmd.PlayerID)
	if err != nil {
		return err
	}
	if p.Status == StatusWithdrawn {
		return ErrAlreadyWithdrawn
	}
	wasActive := p.Status == StatusInAuction && st.CurrentPlayer == p.ID
	refundedTeam := ""
	if p.Status == StatusSold {
		refundedTeam = p.SoldTo
	}
	a.emit(Event{
		Type:     EvtPlayerWithdrawn,
		PlayerID: p.ID,
		TeamID:   refundedTeam,
		Data:     map[string]any{"reason": a.cmd.Reason, "refunded": refundedTeam != "", "wasActive": wasActive},
	})
	if refundedTeam != "" {
		if _, err := a.refund(p); err != nil {
			return err
		}
	}
	p.Status = StatusWithdrawn
	p.WithdrawalReason = a.cmd.Reason
	p.clearBids()
	st.PendingPlayers = removeID(st.PendingPlayers, p.ID)
	st.ForceAuctionPlayers = removeID(st.ForceAuctionPlayers, p.ID)
	st.SeatConsensus.ClearPlayer(p.ID)
	if wasActive {
		a.clearFloor()
		a.res.AutoAdvance = true
	}
	a.logf(LevelInfo, p.ID, refundedTeam, "%s withdrawn", p.Name)
	return nil
}

func (a *applier) revokeSale() error {
	if err := a.requireNotLocked(); err != nil {
		return err
	}
	p, err := a.player(a.cmd.PlayerID)
	if err != nil {
		return err
	}
	if p.Status != StatusSold {
		return ErrPlayerNotSold.Withf("%s is %s", p.Name, p.Status)
	}
	teamID := p.SoldTo
	price := p.SoldPrice
	p.WithdrawalReason = a.cmd.Reason
	a.emit(Event{
		Type:     EvtPlayerWithdrawn,
		PlayerID: p.ID,
		TeamID:   teamID,
		Amount:   price,
		Data:     map[string]any{"reason": a.cmd.Reason, "refunded": true, "revoked": true},
	})
	if _, err := a.refund(p); err != nil {
		return err
	}
	a.logf(LevelInfo, p.ID, teamID, "sale of %s to %s revoked, %d refunded", p.Name, a.t.teamName(teamID), price)
	return nil
}

func (a *applier) recall() error {
	st := a.state()
	if err := a.requireNotLocked(); err != nil {
		return err
	}
	p, err := a.player(a.cmd.PlayerID)
	if err != nil {
		return err
	}
	switch p.Status {
	case StatusUnsold, StatusPending, StatusWithdrawn:
	default:
		return ErrPlayerNotAvailable.Withf("%s is %s", p.Name, p.Status)
	}
	prev := p.Status
	p.Status = StatusAvailable
	p.WithdrawalReason = ""
	p.clearBids()
	st.PendingPlayers = removeID(st.PendingPlayers, p.ID)
	st.ForceAuctionPlayers = removeID(st.ForceAuctionPlayers, p.ID)
	a.logf(LevelInfo, p.ID, "", "%s recalled from %s", p.Name, prev)
	a.emit(Event{Type: EvtPlayerRecalled, PlayerID: p.ID, Data: map[string]any{"from": string(prev)}})
	return nil
}

func (a *applier) forceAuction() error {
	st := a.state()
	if err := a.requireLive(); err != nil {
		return err
	}
	if err := a.requireFloorFree(); err != nil {
		return err
	}
	p, err := a.player(a.cmd.PlayerID)
	if err != nil {
		return err
	}
	if p.Status != StatusPending {
		return ErrPlayerNotAvailable.Withf("%s is %s, force auction needs Pending", p.Name, p.Status)
	}
	st.ForceAuctionPlayers = addID(st.ForceAuctionPlayers, p.ID)
	st.PendingPlayers = removeID(st.PendingPlayers, p.ID)
	a.logf(LevelInfo, p.ID, "", "force auction for %s", p.Name)
	a.begin(p, true)
	return nil
}

func (a *applier) directAssign() error {
	st := a.state()
	if err := a.requireNotLocked(); err != nil {
		return err
	}
	p, err := a.player(a.cmd.PlayerID)
	if err != nil {
		return err
	}
	if p.Status != StatusPending {
		return ErrPlayerNotAvailable.Withf("%s is %s, direct assign needs Pending", p.Name, p.Status)
	}
	team, err := a.team(a.cmd.TeamID)
	if err != nil {
		return err
	}
	price := a.cmd.Amount
	if price <= 0 {
		return ErrInvalidAmount
	}
	snap, err := a.t.Snapshot(team.ID)
	if err != nil {
		return err
	}
	if !a.cmd.BypassQuota {
		if snap.IsQuotaFull {
			return ErrQuotaFull.Withf("%s already bought %d players", team.Name, snap.PlayersBought)
		}
		if price > snap.MaxBid {
			return ErrInsufficientBalance.Withf("price %d exceeds limit %d", price, snap.MaxBid)
		}
	}
	if price > snap.CurrentBalance {
		return ErrInsufficientBalance.Withf("price %d exceeds balance %d", price, snap.CurrentBalance)
	}

	p.Status = StatusSold
	p.clearBids()
	p.SoldPrice = price
	p.SoldTo = team.ID
	p.TransactionType = TxDirectAssign
	st.PendingPlayers = removeID(st.PendingPlayers, p.ID)
	st.ForceAuctionPlayers = removeID(st.ForceAuctionPlayers, p.ID)
	a.logf(LevelInfo, p.ID, team.ID, "%s assigned to %s for %d", p.Name, team.Name, price)
	a.emit(Event{
		Type:     EvtPlayerSold,
		PlayerID: p.ID,
		TeamID:   team.ID,
		Amount:   price,
		Data:     map[string]any{"transactionType": string(TxDirectAssign), "teamName": team.Name, "name": p.Name},
	})
	return a.emitBalance(team.ID)
}

func (a *applier) nextRound() error {
	st := a.state()
	if err := a.requireLive(); err != nil {
		return err
	}
	if err := a.requireFloorFree(); err != nil {
		return err
	}
	st.Stage = StageFinalizing
	recycled := 0
	for i := range a.t.Players {
		p := &a.t.Players[i]
		if p.Status == StatusUnsold {
			p.Status = StatusAvailable
			p.clearBids()
			recycled++
		}
	}
	st.CurrentRound++
	st.Stage = StageIdle
	a.logf(LevelInfo, "", "", "round %d started, %d players recycled", st.CurrentRound, recycled)
	a.emit(Event{Type: EvtAuctionRound, Data: map[string]any{"round": st.CurrentRound, "recycled": recycled}})
	return nil
}

func (a *applier) restart() error {
	for i := range a.t.Players {
		p := &a.t.Players[i]
		p.Status = StatusAvailable
		p.clearBids()
		p.clearSale()
		p.WithdrawalReason = ""
	}
	for i := range a.t.Teams {
		team := &a.t.Teams[i]
		team.CurrentBalance = EffectiveBudget(*team, a.t.Rules)
		team.PurchasedPlayers = nil
	}
	a.t.Auction = NewAuctionState()
	a.logf(LevelWarn, "", "", "auction restarted")
	a.emit(Event{Type: EvtAuctionReset})
	return nil
}

func (a *applier) end() error {
	st := a.state()
	if err := a.requireNotLocked(); err != nil {
		return err
	}
	if err := a.requireFloorFree(); err != nil {
		return err
	}
	st.Stage = StageFinalizing
	for i := range a.t.Players {
		if a.t.Players[i].Status == StatusPending {
			a.t.Players[i].Status = StatusUnsold
		}
	}
	st.PendingPlayers = nil
	st.ForceAuctionPlayers = nil
	st.SeatConsensus = ConsensusTable{}
	a.t.RecalculateAll()

	sum := &Summary{CompletedAt: a.now, Round: st.CurrentRound, Teams: a.t.Snapshots()}
	for i := range a.t.Players {
		switch p := &a.t.Players[i]; p.Status {
		case StatusSold:
			sum.Sold++
			sum.TotalSpent += p.SoldPrice
		case StatusUnsold:
			sum.Unsold++
		case StatusWithdrawn:
			sum.Withdrawn++
		}
	}
	st.Summary = sum
	st.Stage = StageCompleted
	st.IsLocked = true
	st.Paused = false
	a.logf(LevelInfo, "", "", "auction completed: %d sold for %d", sum.Sold, sum.TotalSpent)
	a.emit(Event{Type: EvtAuctionEnd, Amount: sum.TotalSpent, Data: map[string]any{"summary": sum}})
	return nil
}

// autoAdvance is the delayed follow-up to unsold/withdraw. It is a no-op
// whenever the floor moved on since it was scheduled, which the stamped Turn
// detects even when the floor is empty again.
func (a *applier) autoAdvance() error {
	st := a.state()
	if !st.Started || st.Paused || st.IsLocked {
		return nil
	}
	if a.cmd.Turn != st.Turn {
		return nil
	}
	if st.Stage != StageIdle && st.Stage != StageInitialize {
		return nil
	}
	if a.t.CurrentPlayer() != nil {
		return nil
	}
	err := a.callNext()
	if errors.Is(err, ErrNoAvailablePlayers) || errors.Is(err, ErrCurrentPlayerActive) {
		return nil
	}
	return err
}

func (a *applier) setSeatStatus() error {
	team, err := a.team(a.cmd.TeamID)
	if err != nil {
		return err
	}
	seat, ok := team.Seat(a.cmd.SeatID)
	if !ok {
		return ErrSeatNotFound.Withf("seat %q", a.cmd.SeatID)
	}
	switch a.cmd.SeatStatus {
	case SeatInvited, SeatActive, SeatDisabled:
	default:
		return ErrInvalidSeatStat.Withf("status %q", a.cmd.SeatStatus)
	}
	seat.Status = a.cmd.SeatStatus
	if seat.Status != SeatActive {
		a.state().SeatConsensus.DropSeat(team.ID, seat.ID)
	}
	a.logf(LevelInfo, "", team.ID, "seat %s of %s is now %s", seat.Name, team.Name, seat.Status)
	a.emit(Event{Type: EvtSeatUpdate, TeamID: team.ID, Data: map[string]any{"seatId": seat.ID, "status": string(seat.Status), "authVersion": seat.AuthVersion}})
	return nil
}

func (a *applier) resetSeat() error {
	team, err := a.team(a.cmd.TeamID)
	if err != nil {
		return err
	}
	seat, ok := team.Seat(a.cmd.SeatID)
	if !ok {
		return ErrSeatNotFound.Withf("seat %q", a.cmd.SeatID)
	}
	seat.AuthVersion++
	a.state().SeatConsensus.DropSeat(team.ID, seat.ID)
	a.logf(LevelWarn, "", team.ID, "seat %s of %s reset", seat.Name, team.Name)
	a.emit(Event{Type: EvtSeatUpdate, TeamID: team.ID, Data: map[string]any{"seatId": seat.ID, "status": string(seat.Status), "authVersion": seat.AuthVersion}})
	return nil
}
