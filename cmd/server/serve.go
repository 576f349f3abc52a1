package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/player-auction-backend/internal/broadcast"
	"github.com/DoyleJ11/player-auction-backend/internal/config"
	"github.com/DoyleJ11/player-auction-backend/internal/engine"
	"github.com/DoyleJ11/player-auction-backend/internal/history"
	"github.com/DoyleJ11/player-auction-backend/internal/httpapi"
	"github.com/DoyleJ11/player-auction-backend/internal/hub"
	"github.com/DoyleJ11/player-auction-backend/internal/lobby"
	"github.com/DoyleJ11/player-auction-backend/internal/seatauth"
	"github.com/DoyleJ11/player-auction-backend/internal/store"
	"github.com/DoyleJ11/player-auction-backend/internal/store/memstore"
	"github.com/DoyleJ11/player-auction-backend/internal/store/postgres"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sinks := broadcast.Multi{broadcast.NewLog(logger)}
	if cfg.Redis.Enabled {
		rb, err := broadcast.NewRedis(ctx, broadcast.RedisConfig{
			Addr:          cfg.Redis.Addr,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			ChannelPrefix: cfg.Redis.ChannelPrefix,
		})
		if err != nil {
			return err
		}
		defer rb.Close() //nolint:errcheck
		sinks = append(sinks, rb)
		logger.Info("redis fan-out enabled", zap.String("addr", cfg.Redis.Addr))
	}

	var hist httpapi.HistoryReader
	if cfg.History.Enabled {
		rec, err := history.Open(cfg.History.DSN, logger)
		if err != nil {
			return err
		}
		defer rec.Close() //nolint:errcheck
		sinks = append(sinks, rec)
		hist = rec
	}

	h := hub.NewHub(ctx, hub.Config{
		Store:       st,
		Broadcaster: sinks,
		Logger:      logger,
		Lobby: lobby.Options{
			AutoAdvanceDelay:   cfg.Auction.AutoAdvanceDelay,
			SaveTimeout:        cfg.Auction.SaveTimeout,
			AutoSellOnLastCall: cfg.Auction.AutoSellOnLastCall,
		},
		QuorumBaseline: cfg.Auction.QuorumBaseline,
		Locale:         cfg.Auction.Locale,
	})

	if cfg.SeedFile != "" {
		if err := seed(ctx, h, cfg.SeedFile, logger); err != nil {
			return err
		}
	}

	var issuer *seatauth.Issuer
	if cfg.Auth.SeatTokenSecret != "" {
		issuer, err = seatauth.NewIssuer(cfg.Auth.SeatTokenSecret, cfg.Auth.SeatTokenTTL, time.Now)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("auth.seat_token_secret is empty: seat voting is disabled")
	}
	adminKey := seatauth.NewAdminKey(cfg.Auth.AdminKeyHash)
	if !adminKey.Enabled() {
		logger.Warn("auth.admin_key_hash is empty: operator routes are open")
	}

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(httpapi.NewServer(httpapi.Deps{
		Hub:      h,
		Issuer:   issuer,
		AdminKey: adminKey,
		History:  hist,
		Logger:   logger,
	}))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		h.Inbox() <- hub.ShutdownHub{}
		select {
		case <-h.Done():
		case <-shutdownCtx.Done():
		}
		return err
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{DSN: cfg.Store.DSN, MaxConns: cfg.Store.MaxConns})
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return memstore.New(), func() {}, nil
	}
}

// seed imports the configured tournament file unless its auction is running.
func seed(ctx context.Context, h *hub.Hub, path string, logger *zap.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	var t engine.Tournament
	if err := json.Unmarshal(raw, &t); err != nil {
		return fmt.Errorf("seed: decode %s: %w", path, err)
	}
	_, version, err := h.Import(ctx, &t)
	switch {
	case errors.Is(err, engine.ErrAlreadyStarted):
		logger.Info("seed skipped, auction is running", zap.String("tournament", t.Code))
		return nil
	case err != nil:
		return fmt.Errorf("seed: import %s: %w", t.Code, err)
	}
	logger.Info("seeded tournament", zap.String("tournament", t.Code), zap.Int64("version", version))
	return nil
}
