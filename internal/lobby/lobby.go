package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/player-auction-backend/internal/broadcast"
	"github.com/DoyleJ11/player-auction-backend/internal/engine"
	"github.com/DoyleJ11/player-auction-backend/internal/store"
)

var ErrClosed = errors.New("lobby: closed")

type Msg interface{ isLobbyMsg() }

// Submit applies one command. Reply may be nil.
type Submit struct {
	Cmd   engine.Command
	Reply chan Outcome
}

func (Submit) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Update // where this client wants to receive updates
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

// Replace swaps in a freshly imported roster. Refused once the auction runs.
type Replace struct {
	Tournament *engine.Tournament
	Reply      chan Outcome
}

func (Replace) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type timerFired struct {
	key timerKey
	seq uint64
	cmd engine.Command
}

func (timerFired) isLobbyMsg() {}

// Update is what clients receive. The join update carries no events.
type Update struct {
	Version int64
	Events  []engine.Event
	State   *engine.Tournament // shared between clients, read only
}

type View struct {
	Version    int64
	NumClients int
	State      *engine.Tournament
}

type Outcome struct {
	Version int64
	Result  engine.Result
	Err     error
}

type Options struct {
	AutoAdvanceDelay   time.Duration
	SaveTimeout        time.Duration
	AutoSellOnLastCall bool
	// TimerUnit scales last-call seconds; zero means time.Second.
	TimerUnit time.Duration
	Env       engine.Env
}

type Deps struct {
	Store       store.Store
	Broadcaster broadcast.Broadcaster
	Logger      *zap.Logger
	Options     Options
}

type timerKind string

const (
	timerAdvance  timerKind = "advance"
	timerLastCall timerKind = "last-call"
)

type timerKey struct {
	kind     timerKind
	playerID string
}

type armed struct {
	timer *time.Timer
	seq   uint64
}

type Lobby struct {
	code     string
	inbox    chan Msg
	t        *engine.Tournament
	version  int64
	clients  map[string]chan Update
	timers   map[timerKey]armed
	timerSeq uint64

	store store.Store
	bc    broadcast.Broadcaster
	log   *zap.Logger
	opts  Options

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLobby starts the actor for a tournament already present in the store at
// version.
func NewLobby(parent context.Context, t *engine.Tournament, version int64, deps Deps) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if deps.Broadcaster == nil {
		deps.Broadcaster = broadcast.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Options.SaveTimeout <= 0 {
		deps.Options.SaveTimeout = 5 * time.Second
	}
	if deps.Options.TimerUnit <= 0 {
		deps.Options.TimerUnit = time.Second
	}

	l := &Lobby{
		code:    t.Code,
		inbox:   make(chan Msg, 64),
		t:       t,
		version: version,
		clients: make(map[string]chan Update),
		timers:  make(map[timerKey]armed),
		store:   deps.Store,
		bc:      deps.Broadcaster,
		log:     deps.Logger.Named("lobby").With(zap.String("tournament", t.Code)),
		opts:    deps.Options,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.clients[msg.ClientID] = msg.Outbox
				l.send(msg.ClientID, msg.Outbox, Update{Version: l.version, State: l.t.Clone()})

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
				}

			case Submit:
				out := l.apply(msg.Cmd)
				if msg.Reply != nil {
					msg.Reply <- out
				}

			case Replace:
				msg.Reply <- l.replace(msg.Tournament)

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					State:      l.t.Clone(),
				}

			case timerFired:
				if cur, ok := l.timers[msg.key]; !ok || cur.seq != msg.seq {
					break // superseded
				}
				delete(l.timers, msg.key)
				if out := l.apply(msg.cmd); out.Err != nil {
					l.log.Warn("timer command failed",
						zap.String("command", string(msg.cmd.Type)),
						zap.Error(out.Err),
					)
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// apply runs cmd against a copy and commits it only once persisted.
func (l *Lobby) apply(cmd engine.Command) Outcome {
	next := l.t.Clone()
	res, err := engine.Apply(next, cmd, l.opts.Env)
	if err != nil {
		return Outcome{Version: l.version, Err: err}
	}
	if len(res.Events) == 0 {
		return Outcome{Version: l.version, Result: res}
	}

	ctx, cancel := context.WithTimeout(l.ctx, l.opts.SaveTimeout)
	version, err := l.store.Save(ctx, next, l.version)
	cancel()
	if err != nil {
		l.log.Error("persist failed",
			zap.String("command", string(cmd.Type)),
			zap.Int64("version", l.version),
			zap.Error(err),
		)
		if errors.Is(err, store.ErrConflict) {
			l.reload()
		}
		return Outcome{Version: l.version, Err: fmt.Errorf("lobby: save: %w", err)}
	}

	l.t = next
	l.version = version
	for _, w := range res.Warnings {
		l.log.Warn("readiness bypassed", zap.String("issue", w), zap.String("actor", cmd.Actor.Name))
	}
	if res.Rejected != nil {
		l.log.Info("vote recorded, bid rejected",
			zap.String("team", cmd.Actor.TeamID),
			zap.String("seat", cmd.Actor.SeatID),
			zap.Error(res.Rejected),
		)
	}
	l.reconcileTimers(cmd, res)
	l.publish(res.Events)
	return Outcome{Version: version, Result: res}
}

func (l *Lobby) replace(t *engine.Tournament) Outcome {
	st := l.t.Auction
	if st.Started && !st.IsLocked {
		return Outcome{Version: l.version, Err: engine.ErrAlreadyStarted.With("stop or end the auction before importing")}
	}
	t.Normalize()
	ctx, cancel := context.WithTimeout(l.ctx, l.opts.SaveTimeout)
	version, err := l.store.Put(ctx, t)
	cancel()
	if err != nil {
		return Outcome{Version: l.version, Err: fmt.Errorf("lobby: put: %w", err)}
	}
	l.t = t
	l.version = version
	l.cancelTimers(func(timerKey) bool { return true })
	l.fanOut(Update{Version: l.version, State: l.t.Clone()})
	l.log.Info("roster replaced", zap.Int64("version", version), zap.Int("players", len(t.Players)))
	return Outcome{Version: version}
}

// reload resynchronizes with the store after a version conflict.
func (l *Lobby) reload() {
	ctx, cancel := context.WithTimeout(l.ctx, l.opts.SaveTimeout)
	defer cancel()
	t, version, err := l.store.Load(ctx, l.code)
	if err != nil {
		l.log.Error("reload failed", zap.Error(err))
		return
	}
	l.t = t
	l.version = version
	l.fanOut(Update{Version: l.version, State: l.t.Clone()})
}

func (l *Lobby) reconcileTimers(cmd engine.Command, res engine.Result) {
	st := l.t.Auction
	if !st.Started || st.Paused || st.IsLocked {
		l.cancelTimers(func(timerKey) bool { return true })
	}
	if st.Stage != engine.StageLastCall || !st.LastCall.Active {
		l.cancelTimers(func(k timerKey) bool { return k.kind == timerLastCall })
	}

	// The floor moved by hand, so any pending auto-advance is stale.
	for _, typ := range []engine.EventType{engine.EvtPlayerNext, engine.EvtPlayerSold, engine.EvtAuctionReset, engine.EvtAuctionStop} {
		if engine.ContainsEvent(res.Events, typ) {
			l.cancelTimers(func(k timerKey) bool { return k.kind == timerAdvance })
			break
		}
	}

	if res.AutoAdvance {
		playerID := cmd.PlayerID
		if playerID == "" && len(res.Events) > 0 {
			playerID = res.Events[0].PlayerID
		}
		l.arm(timerKey{kind: timerAdvance, playerID: playerID}, l.opts.AutoAdvanceDelay,
			engine.Command{
				Type:  engine.CmdAutoAdvance,
				Actor: engine.Actor{Role: engine.RoleSystem, Name: "auto-advance"},
				Turn:  st.Turn,
			})
	}

	if !l.opts.AutoSellOnLastCall {
		return
	}
	seconds := res.LastCallTimer
	if seconds == 0 && engine.ContainsEvent(res.Events, engine.EvtAuctionResume) && st.LastCall.Active {
		seconds = st.LastCall.TimerSeconds
	}
	if seconds > 0 {
		l.arm(timerKey{kind: timerLastCall, playerID: st.CurrentPlayer}, time.Duration(seconds)*l.opts.TimerUnit,
			engine.Command{
				Type:     engine.CmdLastCallExpire,
				Actor:    engine.Actor{Role: engine.RoleSystem, Name: "last-call"},
				PlayerID: st.CurrentPlayer,
				Amount:   st.CurrentBid,
			})
	}
}

func (l *Lobby) arm(key timerKey, d time.Duration, cmd engine.Command) {
	if prev, ok := l.timers[key]; ok {
		prev.timer.Stop()
	}
	l.timerSeq++
	seq := l.timerSeq
	tm := time.AfterFunc(d, func() {
		select {
		case l.inbox <- timerFired{key: key, seq: seq, cmd: cmd}:
		case <-l.ctx.Done():
		}
	})
	l.timers[key] = armed{timer: tm, seq: seq}
}

func (l *Lobby) cancelTimers(match func(timerKey) bool) {
	for key, a := range l.timers {
		if match(key) {
			a.timer.Stop()
			delete(l.timers, key)
		}
	}
}

func (l *Lobby) publish(events []engine.Event) {
	l.fanOut(Update{Version: l.version, Events: events, State: l.t.Clone()})

	ctx, cancel := context.WithTimeout(l.ctx, l.opts.SaveTimeout)
	defer cancel()
	err := l.bc.Publish(ctx, broadcast.Batch{
		Tournament: l.code,
		Version:    l.version,
		At:         time.Now().UTC(),
		Events:     events,
	})
	if err != nil {
		l.log.Warn("broadcast failed", zap.Int64("version", l.version), zap.Error(err))
	}
}

func (l *Lobby) fanOut(up Update) {
	for id, ch := range l.clients {
		l.send(id, ch, up)
	}
}

func (l *Lobby) send(id string, ch chan Update, up Update) {
	select {
	case ch <- up:
	default:
		// Client is slow/full - drop them.
		l.log.Warn("dropping slow client", zap.String("client", id))
		close(ch)
		delete(l.clients, id)
	}
}

func (l *Lobby) shutdown() {
	l.cancelTimers(func(timerKey) bool { return true })
	for id, ch := range l.clients {
		close(ch) // Tell client no more updates
		delete(l.clients, id)
	}
	l.cancel()
}

// Inbox exposes the inbox so tests or the WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Code() string { return l.code }

// Done is closed once the actor has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) deliver(ctx context.Context, m Msg) error {
	select {
	case l.inbox <- m:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop asks the actor to exit. If the inbox does not take the request before
// ctx ends, the actor is cancelled outright.
func (l *Lobby) Stop(ctx context.Context) {
	if err := l.deliver(ctx, Shutdown{}); err != nil {
		l.cancel()
	}
}

// Submit applies cmd and waits for the outcome.
func (l *Lobby) Submit(ctx context.Context, cmd engine.Command) (Outcome, error) {
	reply := make(chan Outcome, 1)
	if err := l.deliver(ctx, Submit{Cmd: cmd, Reply: reply}); err != nil {
		return Outcome{}, err
	}
	return await(ctx, l.done, reply)
}

func (l *Lobby) Replace(ctx context.Context, t *engine.Tournament) (Outcome, error) {
	reply := make(chan Outcome, 1)
	if err := l.deliver(ctx, Replace{Tournament: t, Reply: reply}); err != nil {
		return Outcome{}, err
	}
	return await(ctx, l.done, reply)
}

func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.deliver(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	return await(ctx, l.done, reply)
}

func (l *Lobby) Join(ctx context.Context, clientID string, outbox chan Update) error {
	return l.deliver(ctx, Join{ClientID: clientID, Outbox: outbox})
}

func (l *Lobby) Leave(ctx context.Context, clientID string) error {
	return l.deliver(ctx, Leave{ClientID: clientID})
}

func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-done:
		// The actor may have answered just before exiting.
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
