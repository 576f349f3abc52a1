package httpapi

import (
	"context"
	"crypto/rand"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/player-auction-backend/internal/engine"
	"github.com/DoyleJ11/player-auction-backend/internal/history"
	"github.com/DoyleJ11/player-auction-backend/internal/hub"
	"github.com/DoyleJ11/player-auction-backend/internal/lobby"
	"github.com/DoyleJ11/player-auction-backend/internal/seatauth"
	"github.com/DoyleJ11/player-auction-backend/internal/types"
)

// HistoryReader serves the sales read model. *history.Recorder implements it.
type HistoryReader interface {
	Sales(ctx context.Context, code string) ([]history.Sale, error)
	Summary(ctx context.Context, code string) (history.SummaryView, error)
}

type Deps struct {
	Hub      *hub.Hub
	Issuer   *seatauth.Issuer   // nil disables seat tokens and votes
	AdminKey *seatauth.AdminKey // an empty key leaves operator routes open
	History  HistoryReader      // nil when the read model is off
	Logger   *zap.Logger
}

type Server struct {
	hub      *hub.Hub
	issuer   *seatauth.Issuer
	adminKey *seatauth.AdminKey
	history  HistoryReader
	log      *zap.Logger
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.AdminKey == nil {
		d.AdminKey = seatauth.NewAdminKey("")
	}
	return &Server{
		hub:      d.Hub,
		issuer:   d.Issuer,
		adminKey: d.AdminKey,
		history:  d.History,
		log:      d.Logger.Named("http"),
	}
}

// Commands an operator may send over HTTP. Votes, timer expiry and
// auto-advance have their own sources.
var operatorCommands = map[engine.CommandType]bool{
	engine.CmdStart:            true,
	engine.CmdPause:            true,
	engine.CmdResume:           true,
	engine.CmdStop:             true,
	engine.CmdUnlock:           true,
	engine.CmdCallNext:         true,
	engine.CmdCallPlayer:       true,
	engine.CmdBid:              true,
	engine.CmdLastCallStart:    true,
	engine.CmdLastCallWithdraw: true,
	engine.CmdUndoBid:          true,
	engine.CmdMarkUnsold:       true,
	engine.CmdSold:             true,
	engine.CmdPending:          true,
	engine.CmdWithdraw:         true,
	engine.CmdRevokeSale:       true,
	engine.CmdRecall:           true,
	engine.CmdForceAuction:     true,
	engine.CmdDirectAssign:     true,
	engine.CmdNextRound:        true,
	engine.CmdRestart:          true,
	engine.CmdEnd:              true,
	engine.CmdSetSeatStatus:    true,
	engine.CmdResetSeat:        true,
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func (s *Server) lobbyFor(w http.ResponseWriter, r *http.Request) (*lobby.Lobby, bool) {
	lb, err := s.hub.Ensure(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return lb, true
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) (lobby.View, bool) {
	lb, ok := s.lobbyFor(w, r)
	if !ok {
		return lobby.View{}, false
	}
	v, err := lb.View(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return lobby.View{}, false
	}
	return v, true
}

// CreateTournament imports a roster under a freshly generated code.
func (s *Server) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var t engine.Tournament
	if err := readJSON(r, &t); err != nil {
		s.writeError(w, r, err)
		return
	}

	var code string
	for code == "" {
		c, err := GenerateCode()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		taken, err := s.hub.Exists(r.Context(), c)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if taken {
			s.log.Debug("collision on code, regenerating", zap.String("code", c))
			continue
		}
		code = c
	}

	t.Code = code
	_, version, err := s.hub.Import(r.Context(), &t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"code": code, "version": version})
}

// Import stores the roster handed over by registration under the URL code.
func (s *Server) Import(w http.ResponseWriter, r *http.Request) {
	var t engine.Tournament
	if err := readJSON(r, &t); err != nil {
		s.writeError(w, r, err)
		return
	}
	code := chi.URLParam(r, "code")
	switch {
	case t.Code == "":
		t.Code = code
	case t.Code != code:
		s.writeError(w, r, engine.ErrInvalidCommand.Withf("body code %q does not match %q", t.Code, code))
		return
	}

	_, version, err := s.hub.Import(r.Context(), &t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("roster imported",
		zap.String("tournament", code),
		zap.Int("teams", len(t.Teams)),
		zap.Int("players", len(t.Players)),
	)
	writeJSON(w, http.StatusOK, map[string]any{"code": code, "version": version})
}

func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	t := v.State
	resp := types.StatusResponse{
		Version:    v.Version,
		Tournament: t,
		Teams:      t.Snapshots(),
		Viewers:    v.NumClients,
	}
	if p := t.CurrentPlayer(); p != nil {
		resp.NextBid = engine.NextBid(t.Rules, p)
	}
	if !t.Auction.Started {
		resp.Readiness = engine.CheckReadiness(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) Teams(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.State.Snapshots())
}

func (s *Server) Command(w http.ResponseWriter, r *http.Request) {
	cmdType := engine.CommandType(chi.URLParam(r, "command"))
	if !operatorCommands[cmdType] {
		s.writeError(w, r, engine.ErrUnsupported.Withf("command %q", cmdType))
		return
	}
	var req types.CommandRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	lb, ok := s.lobbyFor(w, r)
	if !ok {
		return
	}

	operator := req.Operator
	if operator == "" {
		operator = r.Header.Get("X-Operator")
	}
	if operator == "" {
		operator = "operator"
	}
	s.submit(w, r, lb, engine.Command{
		Type:            cmdType,
		Actor:           engine.Actor{Role: engine.RoleAdmin, Name: operator},
		PlayerID:        req.PlayerID,
		TeamID:          req.TeamID,
		SeatID:          req.SeatID,
		Amount:          req.Amount,
		BypassQuota:     req.BypassQuota,
		BypassReadiness: req.BypassReadiness,
		DurationSeconds: req.DurationSeconds,
		ResumeSeconds:   req.ResumeSeconds,
		Reason:          req.Reason,
		SeatStatus:      req.SeatStatus,
	})
}

// Vote casts the caller's seat vote. The bearer token decides the seat.
func (s *Server) Vote(w http.ResponseWriter, r *http.Request) {
	if s.issuer == nil {
		s.writeError(w, r, seatauth.ErrNoSecret)
		return
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		s.writeError(w, r, errUnauthorized)
		return
	}
	claims, err := s.issuer.Verify(token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req types.VoteRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	lb, ok := s.lobbyFor(w, r)
	if !ok {
		return
	}
	v, err := lb.View(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	actor, err := seatauth.Authorize(v.State, claims)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.submit(w, r, lb, engine.Command{
		Type:     engine.CmdVote,
		Actor:    actor,
		PlayerID: req.PlayerID,
		Vote:     engine.VoteAction(req.Action),
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, lb *lobby.Lobby, cmd engine.Command) {
	out, err := lb.Submit(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out.Err != nil {
		s.writeError(w, r, out.Err)
		return
	}
	events := out.Result.Events
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, http.StatusOK, types.CommandResponse{
		Version:  out.Version,
		Events:   events,
		Warnings: out.Result.Warnings,
		Rejected: asEngineError(out.Result.Rejected),
	})
}

func (s *Server) IssueToken(w http.ResponseWriter, r *http.Request) {
	if s.issuer == nil {
		s.writeError(w, r, seatauth.ErrNoSecret)
		return
	}
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	teamID, seatID := chi.URLParam(r, "team"), chi.URLParam(r, "seat")
	team, found := v.State.Team(teamID)
	if !found {
		s.writeError(w, r, engine.ErrTeamNotFound.Withf("team %q", teamID))
		return
	}
	seat, found := team.Seat(seatID)
	if !found {
		s.writeError(w, r, engine.ErrSeatNotFound.Withf("seat %q", seatID))
		return
	}
	if seat.Status == engine.SeatDisabled {
		s.writeError(w, r, engine.ErrSeatInactive.Withf("seat %s is disabled", seat.Name))
		return
	}

	token, exp, err := s.issuer.Issue(v.State.Code, team.ID, *seat)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("seat token issued",
		zap.String("tournament", v.State.Code),
		zap.String("team", team.ID),
		zap.String("seat", seat.ID),
		zap.Int("authVersion", seat.AuthVersion),
	)
	writeJSON(w, http.StatusCreated, types.TokenResponse{Token: token, ExpiresAt: exp.UTC().Format(time.RFC3339)})
}

func (s *Server) Sales(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, r, errDisabled.With("history"))
		return
	}
	sales, err := s.history.Sales(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sales == nil {
		sales = []history.Sale{}
	}
	writeJSON(w, http.StatusOK, sales)
}

func (s *Server) Summary(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, r, errDisabled.With("history"))
		return
	}
	sum, err := s.history.Summary(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	n, err := s.hub.Count(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "lobbies": n})
}
