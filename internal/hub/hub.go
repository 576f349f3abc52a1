package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/player-auction-backend/internal/broadcast"
	"github.com/DoyleJ11/player-auction-backend/internal/engine"
	"github.com/DoyleJ11/player-auction-backend/internal/lobby"
	"github.com/DoyleJ11/player-auction-backend/internal/store"
)

var ErrStopped = errors.New("hub: stopped")

// stopTimeout bounds how long the registry waits on a busy lobby's inbox.
const stopTimeout = 250 * time.Millisecond

type HubMsg interface{ isHubMsg() }

// CreateLobby starts a lobby for an already stored tournament unless one is
// running. Created reports which happened.
type CreateLobby struct {
	Code       string
	Tournament *engine.Tournament
	Version    int64
	Reply      chan Created
}

type Created struct {
	Lobby   *lobby.Lobby
	Created bool
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type RemoveLobby struct {
	Code string
}

type CountLobbies struct {
	Reply chan int
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg()  {}
func (GetLobby) isHubMsg()     {}
func (RemoveLobby) isHubMsg()  {}
func (CountLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg()  {}

type Config struct {
	Store       store.Store
	Broadcaster broadcast.Broadcaster
	Logger      *zap.Logger
	Lobby       lobby.Options

	// Applied to tournaments that leave these settings unset.
	QuorumBaseline int
	Locale         string
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	cfg     Config
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = broadcast.Nop{}
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		cfg:     cfg,
		log:     cfg.Logger.Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				if lb := h.lobbies[msg.Code]; lb != nil {
					msg.Reply <- Created{Lobby: lb}
					break
				}
				lb := lobby.NewLobby(h.ctx, msg.Tournament, msg.Version, lobby.Deps{
					Store:       h.cfg.Store,
					Broadcaster: h.cfg.Broadcaster,
					Logger:      h.cfg.Logger,
					Options:     h.cfg.Lobby,
				})
				h.lobbies[msg.Code] = lb
				h.log.Info("lobby started", zap.String("tournament", msg.Code), zap.Int64("version", msg.Version))
				msg.Reply <- Created{Lobby: lb, Created: true}

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case RemoveLobby:
				if lb := h.lobbies[msg.Code]; lb != nil {
					ctx, cancel := context.WithTimeout(h.ctx, stopTimeout)
					lb.Stop(ctx)
					cancel()
					delete(h.lobbies, msg.Code)
					h.log.Info("lobby removed", zap.String("tournament", msg.Code))
				}

			case CountLobbies:
				msg.Reply <- len(h.lobbies)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		select {
		case lb.Inbox() <- lobby.Shutdown{}:
		default:
			// inbox full; the cancel below still stops it
		}
	}
	clear(h.lobbies)
	h.cancel()
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recv[T any](ctx context.Context, done <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Get returns the running lobby for code, or nil.
func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	return recv(ctx, h.done, reply)
}

func (h *Hub) Count(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	if err := h.send(ctx, CountLobbies{Reply: reply}); err != nil {
		return 0, err
	}
	return recv(ctx, h.done, reply)
}

// Ensure returns the lobby for code, loading the tournament from the store
// when it is not running yet. Unknown codes yield store.ErrNotFound.
func (h *Hub) Ensure(ctx context.Context, code string) (*lobby.Lobby, error) {
	if lb, err := h.Get(ctx, code); err != nil || lb != nil {
		return lb, err
	}
	t, version, err := h.cfg.Store.Load(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("hub: load %s: %w", code, err)
	}
	h.applyDefaults(t)
	c, err := h.create(ctx, code, t, version)
	return c.Lobby, err
}

// Exists reports whether code is running or stored.
func (h *Hub) Exists(ctx context.Context, code string) (bool, error) {
	if lb, err := h.Get(ctx, code); err != nil || lb != nil {
		return lb != nil, err
	}
	_, _, err := h.cfg.Store.Load(ctx, code)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("hub: load %s: %w", code, err)
	}
}

// Import validates and stores a roster, then points the lobby at it. A
// running auction cannot be replaced.
func (h *Hub) Import(ctx context.Context, t *engine.Tournament) (*lobby.Lobby, int64, error) {
	if err := engine.ValidateRoster(t); err != nil {
		return nil, 0, err
	}
	t = t.Clone()
	t.Normalize()
	h.applyDefaults(t)

	lb, err := h.Get(ctx, t.Code)
	if err != nil {
		return nil, 0, err
	}
	if lb != nil {
		return replace(ctx, lb, t)
	}

	existing, _, err := h.cfg.Store.Load(ctx, t.Code)
	switch {
	case err == nil:
		if existing.Auction.Started && !existing.Auction.IsLocked {
			return nil, 0, engine.ErrAlreadyStarted.With("stop or end the auction before importing")
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, 0, fmt.Errorf("hub: load %s: %w", t.Code, err)
	}

	version, err := h.cfg.Store.Put(ctx, t)
	if err != nil {
		return nil, 0, fmt.Errorf("hub: put %s: %w", t.Code, err)
	}
	c, err := h.create(ctx, t.Code, t.Clone(), version)
	if err != nil {
		return nil, 0, err
	}
	if !c.Created {
		// Someone loaded the old document meanwhile.
		return replace(ctx, c.Lobby, t)
	}
	return c.Lobby, version, nil
}

func replace(ctx context.Context, lb *lobby.Lobby, t *engine.Tournament) (*lobby.Lobby, int64, error) {
	out, err := lb.Replace(ctx, t)
	if err != nil {
		return nil, 0, err
	}
	if out.Err != nil {
		return nil, 0, out.Err
	}
	return lb, out.Version, nil
}

func (h *Hub) create(ctx context.Context, code string, t *engine.Tournament, version int64) (Created, error) {
	reply := make(chan Created, 1)
	if err := h.send(ctx, CreateLobby{Code: code, Tournament: t, Version: version, Reply: reply}); err != nil {
		return Created{}, err
	}
	return recv(ctx, h.done, reply)
}

func (h *Hub) applyDefaults(t *engine.Tournament) {
	if t.Settings.QuorumBaseline == 0 {
		t.Settings.QuorumBaseline = h.cfg.QuorumBaseline
	}
	if t.Settings.Locale == "" {
		t.Settings.Locale = h.cfg.Locale
	}
}
