package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/stats"
)

// StatsRecord is a cached stats reply for one fixture.
// Times are stored as unix milliseconds.
type StatsRecord struct {
	Home         string  `column:"home" dbtype:"TEXT NOT NULL" primary:"true"`
	Away         string  `column:"away" dbtype:"TEXT NOT NULL" primary:"true"`
	League       string  `column:"league" dbtype:"TEXT NOT NULL" primary:"true"`
	HomeScored   float64 `column:"home_scored" dbtype:"REAL NOT NULL"`
	HomeConceded float64 `column:"home_conceded" dbtype:"REAL NOT NULL"`
	AwayScored   float64 `column:"away_scored" dbtype:"REAL NOT NULL"`
	AwayConceded float64 `column:"away_conceded" dbtype:"REAL NOT NULL"`
	HomeForm     string  `column:"home_form" dbtype:"TEXT NOT NULL"`
	AwayForm     string  `column:"away_form" dbtype:"TEXT NOT NULL"`
	Context      string  `column:"context" dbtype:"TEXT NOT NULL"`
	Defaulted    string  `column:"defaulted" dbtype:"TEXT NOT NULL"`
	FetchedAt    int64   `column:"fetched_at" dbtype:"INTEGER NOT NULL"`
}

func (r *StatsRecord) GetTableName() string {
	return "team_stats"
}

func (r *StatsRecord) GetPrimaryKey() map[string]any {
	return map[string]any{"home": r.Home, "away": r.Away, "league": r.League}
}

func newStatsRecord(key stats.Key, s *stats.TeamMatchStats, at time.Time) *StatsRecord {
	return &StatsRecord{
		Home:         key.Home,
		Away:         key.Away,
		League:       key.League,
		HomeScored:   s.HomeScored,
		HomeConceded: s.HomeConceded,
		AwayScored:   s.AwayScored,
		AwayConceded: s.AwayConceded,
		HomeForm:     s.HomeForm,
		AwayForm:     s.AwayForm,
		Context:      s.Context,
		Defaulted:    strings.Join(s.Defaulted, ","),
		FetchedAt:    at.UnixMilli(),
	}
}

// Stats converts the record back to the domain type
func (r *StatsRecord) Stats() *stats.TeamMatchStats {
	s := &stats.TeamMatchStats{
		HomeScored:   r.HomeScored,
		HomeConceded: r.HomeConceded,
		AwayScored:   r.AwayScored,
		AwayConceded: r.AwayConceded,
		HomeForm:     r.HomeForm,
		AwayForm:     r.AwayForm,
		Context:      r.Context,
	}
	if r.Defaulted != "" {
		s.Defaulted = strings.Split(r.Defaulted, ",")
	}
	return s
}

// StatsCache is a stats.Cache kept in the store
type StatsCache struct {
	store *Store
	now   func() time.Time
}

// NewStatsCache creates the cache table if needed
func NewStatsCache(ctx context.Context, s *Store) (*StatsCache, error) {
	if err := s.CreateTable(ctx, &StatsRecord{}); err != nil {
		return nil, err
	}
	return &StatsCache{store: s, now: time.Now}, nil
}

func (c *StatsCache) Get(ctx context.Context, key stats.Key) (*stats.TeamMatchStats, time.Time, bool, error) {
	rec := &StatsRecord{Home: key.Home, Away: key.Away, League: key.League}
	err := c.store.FindByPrimaryKey(ctx, rec, rec.GetPrimaryKey())
	if errors.Is(err, ErrNotFound) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return rec.Stats(), time.UnixMilli(rec.FetchedAt), true, nil
}

func (c *StatsCache) Put(ctx context.Context, key stats.Key, s *stats.TeamMatchStats) error {
	return c.store.Save(ctx, newStatsRecord(key, s, c.now()))
}

// PredictionRecord is one analysed fixture
type PredictionRecord struct {
	ID         string  `column:"id" dbtype:"TEXT NOT NULL" primary:"true" json:"id"`
	CreatedAt  int64   `column:"created_at" dbtype:"INTEGER NOT NULL" index:"true" json:"createdAt"`
	Home       string  `column:"home" dbtype:"TEXT NOT NULL" json:"home"`
	Away       string  `column:"away" dbtype:"TEXT NOT NULL" json:"away"`
	League     string  `column:"league" dbtype:"TEXT NOT NULL" json:"league"`
	LambdaHome float64 `column:"lambda_home" dbtype:"REAL NOT NULL" json:"lambdaHome"`
	LambdaAway float64 `column:"lambda_away" dbtype:"REAL NOT NULL" json:"lambdaAway"`
	PHome      float64 `column:"p_home" dbtype:"REAL NOT NULL" json:"pHome"`
	PDraw      float64 `column:"p_draw" dbtype:"REAL NOT NULL" json:"pDraw"`
	PAway      float64 `column:"p_away" dbtype:"REAL NOT NULL" json:"pAway"`
	POver25    float64 `column:"p_over25" dbtype:"REAL NOT NULL" json:"pOver25"`
	PBTTS      float64 `column:"p_btts" dbtype:"REAL NOT NULL" json:"pBtts"`
	TopScore   string  `column:"top_score" dbtype:"TEXT NOT NULL" json:"topScore"`
	ResultPick string  `column:"result_pick" dbtype:"TEXT NOT NULL" json:"resultPick"`
	GoalsPick  string  `column:"goals_pick" dbtype:"TEXT NOT NULL" json:"goalsPick"`
	BTTSPick   string  `column:"btts_pick" dbtype:"TEXT NOT NULL" json:"bttsPick"`
}

func (r *PredictionRecord) GetTableName() string {
	return "predictions"
}

func (r *PredictionRecord) GetPrimaryKey() map[string]any {
	return map[string]any{"id": r.ID}
}

// BeforeSave assigns an id and timestamp to new records
func (r *PredictionRecord) BeforeSave() error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	if r.Home == "" || r.Away == "" {
		return fmt.Errorf("prediction needs both team names")
	}
	return nil
}

// Created returns the creation time
func (r *PredictionRecord) Created() time.Time {
	return time.UnixMilli(r.CreatedAt)
}

// History stores every prediction made
type History struct {
	store *Store
}

// NewHistory creates the predictions table if needed
func NewHistory(ctx context.Context, s *Store) (*History, error) {
	if err := s.CreateTable(ctx, &PredictionRecord{}); err != nil {
		return nil, err
	}
	return &History{store: s}, nil
}

// RecordPrediction stores the outcome of an analysis and returns the new record
func (h *History) RecordPrediction(ctx context.Context, home, away, league string, rates poisson.ExpectedGoalRates, s *poisson.Summary, d poisson.Decision) (*PredictionRecord, error) {
	rec := &PredictionRecord{
		Home:       home,
		Away:       away,
		League:     league,
		LambdaHome: rates.Home,
		LambdaAway: rates.Away,
		PHome:      s.Home,
		PDraw:      s.Draw,
		PAway:      s.Away,
		POver25:    s.Over25,
		PBTTS:      s.BTTS,
		ResultPick: d.Result.Label,
		GoalsPick:  d.Goals.Label,
		BTTSPick:   d.BTTS.Label,
	}
	if len(s.Top) > 0 {
		rec.TopScore = fmt.Sprintf("%d-%d", s.Top[0].Home, s.Top[0].Away)
	}
	if err := h.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Recent returns the latest n predictions, newest first
func (h *History) Recent(ctx context.Context, n int) ([]*PredictionRecord, error) {
	if n <= 0 {
		n = 10
	}
	return FindWhere[PredictionRecord](ctx, h.store, "1 = 1 ORDER BY created_at DESC, rowid DESC LIMIT ?", n)
}

// Get returns a single prediction by id
func (h *History) Get(ctx context.Context, id string) (*PredictionRecord, error) {
	rec := &PredictionRecord{ID: id}
	if err := h.store.FindByPrimaryKey(ctx, rec, rec.GetPrimaryKey()); err != nil {
		return nil, err
	}
	return rec, nil
}
