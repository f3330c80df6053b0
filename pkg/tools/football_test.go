package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/richard-senior/football-analyzer/pkg/analyzer"
	"github.com/richard-senior/football-analyzer/pkg/league"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/stats"
	"github.com/richard-senior/football-analyzer/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToolbox(t *testing.T) *Toolbox {
	ctx := context.Background()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	history, err := store.NewHistory(ctx, s)
	require.NoError(t, err)

	fetch := func(context.Context, string, string, string, poisson.LeagueBaseline) (*stats.TeamMatchStats, error) {
		return &stats.TeamMatchStats{HomeScored: 1.5, HomeConceded: 1.0, AwayScored: 1.2, AwayConceded: 1.4, HomeForm: "WWDLW", AwayForm: "LDWWL"}, nil
	}
	a := analyzer.New(league.DefaultTable(), fetch)
	a.History = history
	return &Toolbox{Analyzer: a, History: history}
}

func TestAnalyzeMatch(t *testing.T) {
	tb := newToolbox(t)
	result, err := tb.HandleAnalyzeMatch(context.Background(), map[string]any{"home": "Man City", "away": "Newcastle"})
	require.NoError(t, err)
	require.Len(t, result.Content, 2)
	assert.Contains(t, result.Content[0].Text, "Man City vs Newcastle")

	var a analyzer.Analysis
	require.NoError(t, json.Unmarshal([]byte(result.Content[1].Text), &a))
	assert.Equal(t, analyzer.DefaultLeague, a.League)
	assert.InDelta(t, 0.443745, a.Summary.Home, 1e-6)
	assert.Equal(t, "1", a.Decision.Result.Label)
	assert.NotEmpty(t, a.PredictionID)

	_, err = tb.HandleAnalyzeMatch(context.Background(), map[string]any{"home": "Man City"})
	assert.ErrorContains(t, err, `"away"`)
	_, err = tb.HandleAnalyzeMatch(context.Background(), map[string]any{"home": 3, "away": "x"})
	assert.ErrorContains(t, err, "must be a string")
}

func TestPredictScoreline(t *testing.T) {
	result, err := HandlePredictScoreline(context.Background(), map[string]any{"lambda_home": 1.3725490196078431, "lambda_away": "1.0434782608695652"})
	require.NoError(t, err)
	require.Len(t, result.Content, 2)
	assert.Contains(t, result.Content[0].Text, "44.4%")

	var out struct {
		Summary  poisson.Summary  `json:"summary"`
		Decision poisson.Decision `json:"decision"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Content[1].Text), &out))
	assert.InDelta(t, 0.4344574609318738, out.Summary.Over25, 1e-12)
	assert.Equal(t, "Under 2.5", out.Decision.Goals.Label)
	assert.Len(t, out.Summary.Top, poisson.TopScorelines)
}

func TestPredictScorelineMaxGoals(t *testing.T) {
	result, err := HandlePredictScoreline(context.Background(), map[string]any{"lambda_home": 1.0, "lambda_away": 1.0, "max_goals": float64(0)})
	require.NoError(t, err)
	var out struct {
		Summary poisson.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Content[1].Text), &out))
	require.Len(t, out.Summary.Top, 1)
	assert.Equal(t, 1.0, out.Summary.Under25)

	for _, bad := range []any{2.5, float64(-1), float64(MaxGoalsLimit + 1)} {
		_, err := HandlePredictScoreline(context.Background(), map[string]any{"lambda_home": 1.0, "lambda_away": 1.0, "max_goals": bad})
		assert.Error(t, err, bad)
	}
}

func TestPredictScorelineInvalidRate(t *testing.T) {
	_, err := HandlePredictScoreline(context.Background(), map[string]any{"lambda_home": -1.0, "lambda_away": 1.0})
	var rateErr *poisson.InvalidRateError
	assert.ErrorAs(t, err, &rateErr)

	_, err = HandlePredictScoreline(context.Background(), map[string]any{"lambda_home": "lots", "lambda_away": 1.0})
	assert.ErrorContains(t, err, "must be a number")
}

func TestPredictionHistory(t *testing.T) {
	tb := newToolbox(t)
	ctx := context.Background()
	for _, away := range []string{"Newcastle", "Spurs", "Everton"} {
		_, err := tb.HandleAnalyzeMatch(ctx, map[string]any{"home": "Arsenal", "away": away})
		require.NoError(t, err)
	}

	result, err := tb.HandlePredictionHistory(ctx, map[string]any{"limit": float64(2)})
	require.NoError(t, err)
	var records []store.PredictionRecord
	require.NoError(t, json.Unmarshal([]byte(result.Content[1].Text), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "Everton", records[0].Away)
	assert.Equal(t, "Spurs", records[1].Away)
	assert.Contains(t, result.Content[0].Text, "Arsenal vs Everton")

	result, err = tb.HandlePredictionHistory(ctx, map[string]any{})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(result.Content[1].Text), &records))
	assert.Len(t, records, 3)

	_, err = (&Toolbox{}).HandlePredictionHistory(ctx, nil)
	assert.ErrorContains(t, err, "disabled")
}
