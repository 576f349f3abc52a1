// Package history keeps a queryable record of sales and auction completions,
// fed from committed events.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/player-auction-backend/internal/broadcast"
	"github.com/DoyleJ11/player-auction-backend/internal/engine"
)

var ErrNotFound = errors.New("history: not found")

const resetReason = "auction restarted"

type Recorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

func Open(dsn string, logger *zap.Logger) (*Recorder, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	return New(db, logger), nil
}

func New(db *gorm.DB, logger *zap.Logger) *Recorder {
	return &Recorder{db: db, logger: logger.Named("history")}
}

func (r *Recorder) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&Sale{}, &Summary{}); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

func (r *Recorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type revocation struct {
	PlayerID string // empty revokes every open sale of the tournament
	Reason   string
}

// changeSet is what one batch does to the read model, in event order.
type changeSet struct {
	sales       []Sale
	revocations []revocation
	summary     *Summary
}

func (c changeSet) empty() bool {
	return len(c.sales) == 0 && len(c.revocations) == 0 && c.summary == nil
}

func plan(b broadcast.Batch) (changeSet, error) {
	var cs changeSet
	for _, e := range b.Events {
		switch e.Type {
		case engine.EvtPlayerSold:
			cs.sales = append(cs.sales, Sale{
				TournamentCode:  b.Tournament,
				PlayerID:        e.PlayerID,
				PlayerName:      stringData(e, "name"),
				TeamID:          e.TeamID,
				TeamName:        stringData(e, "teamName"),
				Price:           e.Amount,
				TransactionType: stringData(e, "transactionType"),
				Version:         b.Version,
				SoldAt:          b.At,
			})
		case engine.EvtPlayerWithdrawn:
			if refunded, _ := e.Data["refunded"].(bool); refunded {
				cs.revocations = append(cs.revocations, revocation{PlayerID: e.PlayerID, Reason: stringData(e, "reason")})
			}
		case engine.EvtAuctionReset:
			cs.revocations = append(cs.revocations, revocation{Reason: resetReason})
		case engine.EvtAuctionEnd:
			sum, err := summaryData(e)
			if err != nil {
				return changeSet{}, err
			}
			teams, err := json.Marshal(sum.Teams)
			if err != nil {
				return changeSet{}, fmt.Errorf("history: encode summary teams: %w", err)
			}
			cs.summary = &Summary{
				TournamentCode: b.Tournament,
				CompletedAt:    sum.CompletedAt,
				Round:          sum.Round,
				Sold:           sum.Sold,
				Unsold:         sum.Unsold,
				Withdrawn:      sum.Withdrawn,
				TotalSpent:     sum.TotalSpent,
				Teams:          string(teams),
			}
		}
	}
	return cs, nil
}

// Publish applies a committed batch to the read model in one transaction.
func (r *Recorder) Publish(ctx context.Context, b broadcast.Batch) error {
	cs, err := plan(b)
	if err != nil {
		return err
	}
	if cs.empty() {
		return nil
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rv := range cs.revocations {
			q := tx.Model(&Sale{}).Where("tournament_code = ? AND revoked_at IS NULL", b.Tournament)
			if rv.PlayerID != "" {
				q = q.Where("player_id = ?", rv.PlayerID)
			}
			if err := q.Updates(map[string]any{"revoked_at": b.At, "revoke_reason": rv.Reason}).Error; err != nil {
				return err
			}
		}
		if len(cs.sales) > 0 {
			if err := tx.Create(&cs.sales).Error; err != nil {
				return err
			}
		}
		if cs.summary != nil {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(cs.summary).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("history: record %s@%d: %w", b.Tournament, b.Version, err)
	}
	r.logger.Debug("recorded",
		zap.String("tournament", b.Tournament),
		zap.Int64("version", b.Version),
		zap.Int("sales", len(cs.sales)),
		zap.Int("revocations", len(cs.revocations)),
	)
	return nil
}

// Sales lists every recorded sale of a tournament, oldest first.
func (r *Recorder) Sales(ctx context.Context, code string) ([]Sale, error) {
	var sales []Sale
	err := r.db.WithContext(ctx).
		Where("tournament_code = ?", code).
		Order("sold_at ASC, id ASC").
		Find(&sales).Error
	if err != nil {
		return nil, fmt.Errorf("history: list sales %s: %w", code, err)
	}
	return sales, nil
}

type SummaryView struct {
	Summary
	Teams []engine.LedgerSnapshot `json:"teams"`
}

func (r *Recorder) Summary(ctx context.Context, code string) (SummaryView, error) {
	var s Summary
	err := r.db.WithContext(ctx).Where("tournament_code = ?", code).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SummaryView{}, ErrNotFound
	}
	if err != nil {
		return SummaryView{}, fmt.Errorf("history: summary %s: %w", code, err)
	}
	view := SummaryView{Summary: s}
	if s.Teams != "" {
		if err := json.Unmarshal([]byte(s.Teams), &view.Teams); err != nil {
			return SummaryView{}, fmt.Errorf("history: decode summary teams %s: %w", code, err)
		}
	}
	return view, nil
}

func stringData(e engine.Event, key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// summaryData accepts the in-process *engine.Summary or its decoded JSON form.
func summaryData(e engine.Event) (engine.Summary, error) {
	switch v := e.Data["summary"].(type) {
	case *engine.Summary:
		return *v, nil
	case engine.Summary:
		return v, nil
	case nil:
		return engine.Summary{CompletedAt: time.Now().UTC()}, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return engine.Summary{}, fmt.Errorf("history: summary payload: %w", err)
		}
		var s engine.Summary
		if err := json.Unmarshal(raw, &s); err != nil {
			return engine.Summary{}, fmt.Errorf("history: summary payload: %w", err)
		}
		return s, nil
	}
}
