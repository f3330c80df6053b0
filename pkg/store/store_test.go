package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGenerateSQL(t *testing.T) {
	sql := generateCreateTableSQL(&StatsRecord{}, "team_stats")
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS team_stats (home TEXT NOT NULL, away TEXT NOT NULL, league TEXT NOT NULL, home_scored REAL NOT NULL")
	assert.Contains(t, sql, "PRIMARY KEY (home, away, league)")

	idx := generateIndexSQL(&PredictionRecord{}, "predictions")
	assert.Equal(t, []string{"CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at)"}, idx)

	where, values := buildWhereClause(map[string]any{"league": "l", "away": "a", "home": "h"})
	assert.Equal(t, "away = ? AND home = ? AND league = ?", where)
	assert.Equal(t, []any{"a", "h", "l"}, values)
}

func TestStatsCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, err := NewStatsCache(ctx, openMemory(t))
	require.NoError(t, err)
	fixed := time.UnixMilli(1760000000000)
	cache.now = func() time.Time { return fixed }

	key := stats.NewKey("Arsenal", "Spurs", "Premier League")
	_, _, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	want := &stats.TeamMatchStats{HomeScored: 2.1, HomeConceded: 0.8, AwayScored: 1.3, AwayConceded: 1.5, HomeForm: "WWWDW", AwayForm: "LDLWW", Context: "Derby", Defaulted: []string{"away_form"}}
	require.NoError(t, cache.Put(ctx, key, want))

	got, at, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, fixed, at)

	// upsert replaces the entry
	want.HomeScored = 2.5
	want.Defaulted = nil
	require.NoError(t, cache.Put(ctx, key, want))
	got, _, _, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2.5, got.HomeScored)
	assert.Nil(t, got.Defaulted)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	h, err := NewHistory(ctx, s)
	require.NoError(t, err)

	_, sum, err := poisson.Predict(1.37, 1.04)
	require.NoError(t, err)
	d := poisson.Decide(sum)
	rates := poisson.ExpectedGoalRates{Home: 1.37, Away: 1.04}

	first, err := h.RecordPrediction(ctx, "Arsenal", "Spurs", "Premier League", rates, sum, d)
	require.NoError(t, err)
	_, err = uuid.Parse(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "1-1", first.TopScore)
	assert.Equal(t, "1", first.ResultPick)

	second, err := h.RecordPrediction(ctx, "Juventus", "Como", "Serie A", rates, sum, d)
	require.NoError(t, err)

	recent, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, first.ID, recent[1].ID)
	assert.InDelta(t, sum.Home, recent[1].PHome, 1e-15)

	recent, err = h.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	got, err := h.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spurs", got.Away)

	exists, err := s.Exists(ctx, got)
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, s.Delete(ctx, got))
	_, err = h.Get(ctx, first.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPredictionNeedsTeams(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	_, err := NewHistory(ctx, s)
	require.NoError(t, err)
	assert.Error(t, s.Save(ctx, &PredictionRecord{Home: "Arsenal"}))
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyzer.db")
	s, err := Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	h, err := NewHistory(ctx, s)
	require.NoError(t, err)
	_, sum, err := poisson.Predict(1, 1)
	require.NoError(t, err)
	_, err = h.RecordPrediction(ctx, "A", "B", "C", poisson.ExpectedGoalRates{Home: 1, Away: 1}, sum, poisson.Decide(sum))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	h, err = NewHistory(ctx, s)
	require.NoError(t, err)
	recent, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
