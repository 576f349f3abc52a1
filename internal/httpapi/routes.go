package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/player-auction-backend/internal/ws"
)

func SetupRoutes(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", s.Healthz)
	r.Get("/ws", ws.Handler(s.hub, ws.Config{Issuer: s.issuer, Logger: s.log}))

	r.Route("/tournaments", func(r chi.Router) {
		r.With(s.requireAdmin).Post("/", s.CreateTournament)

		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", s.Status)
			r.Get("/teams", s.Teams)
			r.Get("/history/sales", s.Sales)
			r.Get("/history/summary", s.Summary)
			r.Post("/vote", s.Vote)

			// Operator routes
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Put("/", s.Import)
				r.Post("/commands/{command}", s.Command)
				r.Post("/teams/{team}/seats/{seat}/token", s.IssueToken)
			})
		})
	})
	return r
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey.Enabled() && !s.adminKey.Check(r.Header.Get("X-Admin-Key")) {
			s.writeError(w, r, errUnauthorized.With("operator key required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
