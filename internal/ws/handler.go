package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/player-auction-backend/internal/engine"
	"github.com/DoyleJ11/player-auction-backend/internal/hub"
	"github.com/DoyleJ11/player-auction-backend/internal/lobby"
	"github.com/DoyleJ11/player-auction-backend/internal/seatauth"
	"github.com/DoyleJ11/player-auction-backend/internal/store"
	"github.com/DoyleJ11/player-auction-backend/internal/types"
)

const (
	outboxSize   = 16
	writeTimeout = 3 * time.Second
)

type Config struct {
	Issuer *seatauth.Issuer // nil means viewers only
	Logger *zap.Logger
	// OriginPatterns loosens the same-origin check, e.g. "localhost:*" in dev.
	OriginPatterns []string
}

// Handler serves /ws?code=XXX[&token=...]. Every connection watches the
// tournament; a valid seat token additionally allows votes.
func Handler(h *hub.Hub, cfg Config) http.HandlerFunc {
	log := zap.NewNop()
	if cfg.Logger != nil {
		log = cfg.Logger.Named("ws")
	}

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		lb, err := h.Ensure(r.Context(), code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "tournament not found", http.StatusNotFound)
				return
			}
			http.Error(w, "tournament unavailable", http.StatusServiceUnavailable)
			return
		}

		var claims *seatauth.Claims
		if token := r.URL.Query().Get("token"); token != "" {
			if cfg.Issuer == nil {
				http.Error(w, "seat tokens disabled", http.StatusUnauthorized)
				return
			}
			claims, err = cfg.Issuer.Verify(token)
			if err != nil || claims.TournamentCode != code {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: cfg.OriginPatterns})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		c := &client{
			id:     uuid.NewString(),
			conn:   conn,
			lobby:  lb,
			claims: claims,
			log:    log.With(zap.String("tournament", code)),
		}
		c.serve(r.Context())
	}
}

type client struct {
	id     string
	conn   *websocket.Conn
	lobby  *lobby.Lobby
	claims *seatauth.Claims
	log    *zap.Logger
}

func (c *client) serve(ctx context.Context) {
	out := make(chan lobby.Update, outboxSize)
	if err := c.lobby.Join(ctx, c.id, out); err != nil {
		return
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = c.lobby.Leave(leaveCtx, c.id)
		cancel()
	}()

	// Writer goroutine
	writeCtx, writeCancel := context.WithCancel(ctx)
	defer writeCancel()
	go func() {
		for up := range out {
			if err := c.writeUpdate(writeCtx, up); err != nil {
				return
			}
		}
		// The lobby closed our outbox: we were too slow or it stopped.
		_ = c.conn.Close(websocket.StatusTryAgainLater, "lagging or lobby closed")
	}()

	// Reader loop
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				c.log.Debug("connection ended", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			c.writeError(ctx, &engine.Error{Kind: engine.KindValidation, Code: "BAD_JSON", Message: "bad json"})
			continue
		}

		switch cm.Type {
		case types.ClientPing:
			c.write(ctx, types.ServerMessage{Type: types.ServerPong})
		case types.ClientVote:
			c.vote(ctx, cm)
		default:
			c.writeError(ctx, engine.ErrUnsupported.Withf("message type %q", cm.Type))
		}
	}
}

func (c *client) vote(ctx context.Context, cm types.ClientMessage) {
	if c.claims == nil {
		c.writeError(ctx, engine.ErrForbidden.With("viewers cannot vote"))
		return
	}
	// Re-check the seat on every vote so resets and disables apply at once.
	v, err := c.lobby.View(ctx)
	if err != nil {
		return
	}
	actor, err := seatauth.Authorize(v.State, c.claims)
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	out, err := c.lobby.Submit(ctx, engine.Command{
		Type:     engine.CmdVote,
		Actor:    actor,
		PlayerID: cm.PlayerID,
		Vote:     engine.VoteAction(cm.Action),
	})
	switch {
	case err != nil:
		return
	case out.Err != nil:
		c.writeError(ctx, out.Err)
	case out.Result.Rejected != nil:
		c.writeError(ctx, out.Result.Rejected)
	}
}

// writeUpdate sends each event, then the resulting state.
func (c *client) writeUpdate(ctx context.Context, up lobby.Update) error {
	for i := range up.Events {
		msg := types.ServerMessage{
			Type:           types.ServerEvent,
			TournamentCode: c.lobby.Code(),
			Version:        up.Version,
			Event:          &up.Events[i],
		}
		if err := c.write(ctx, msg); err != nil {
			return err
		}
	}
	return c.write(ctx, types.ServerMessage{Type: types.ServerSnapshot, TournamentCode: c.lobby.Code(), Version: up.Version, State: up.State})
}

func (c *client) writeError(ctx context.Context, err error) {
	var e *engine.Error
	if !errors.As(err, &e) {
		e = &engine.Error{Kind: "internal", Code: "INTERNAL", Message: "internal error"}
	}
	_ = c.write(ctx, types.ServerMessage{Type: types.ServerError, Error: e})
}

func (c *client) write(ctx context.Context, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("encode message", zap.Error(err))
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, payload)
}
