package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/richard-senior/football-analyzer/pkg/analyzer"
	"github.com/richard-senior/football-analyzer/pkg/league"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/stats"
	"github.com/richard-senior/football-analyzer/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureStats(context.Context, string, string, string, poisson.LeagueBaseline) (*stats.TeamMatchStats, error) {
	return &stats.TeamMatchStats{HomeScored: 1.5, HomeConceded: 1.0, AwayScored: 1.2, AwayConceded: 1.4, HomeForm: "WWDLW", AwayForm: "LDWWL"}, nil
}

func newTestServer(t *testing.T, withHistory bool) *httptest.Server {
	a := analyzer.New(league.DefaultTable(), fixtureStats)
	var history *store.History
	if withHistory {
		s, err := store.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		history, err = store.NewHistory(context.Background(), s)
		require.NoError(t, err)
		a.History = history
	}
	srv := httptest.NewServer(NewRouter(NewHandler(a, history), []string{"*"}, 0))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string, out any) int {
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, false)
	var out map[string]any
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/health", "", &out))
	assert.Equal(t, "healthy", out["status"])
	assert.Equal(t, false, out["history"])
}

func TestPredictFromRates(t *testing.T) {
	srv := newTestServer(t, false)
	var out PredictResponse
	status := do(t, http.MethodPost, srv.URL+"/api/v1/predict", `{"lambda_home":1.3725490196078431,"lambda_away":1.0434782608695652}`, &out)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, out.Baseline)
	assert.InDelta(t, 0.443744506280036, out.Summary.Home, 1e-12)
	assert.Equal(t, "1", out.Decision.Result.Label)
	assert.Len(t, out.Summary.Top, poisson.TopScorelines)
}

func TestPredictFromAverages(t *testing.T) {
	srv := newTestServer(t, false)
	var out PredictResponse
	status := do(t, http.MethodPost, srv.URL+"/api/v1/predict",
		`{"home_scored":1.5,"home_conceded":1.0,"away_scored":1.2,"away_conceded":1.4,"league":"English Premier League"}`, &out)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, out.Baseline)
	assert.Equal(t, 1.53, out.Baseline.AvgHomeGoals)
	assert.InDelta(t, 1.3725490196078431, out.Rates.Home, 1e-12)
	assert.InDelta(t, 1.0434782608695652, out.Rates.Away, 1e-12)
	assert.InDelta(t, 0.4344574609318738, out.Summary.Over25, 1e-12)
}

func TestPredictBadInput(t *testing.T) {
	srv := newTestServer(t, false)
	for _, body := range []string{
		`{"lambda_home":-1,"lambda_away":1}`,
		`{"lambda_home":1}`,
		`{"home_scored":1.5}`,
		`{"home_scored":-1,"home_conceded":1,"away_scored":1,"away_conceded":1}`,
		`{"lambda_home":"x"}`,
		`{"unknown":1}`,
		`not json`,
	} {
		var out map[string]string
		assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/api/v1/predict", body, &out), body)
		assert.NotEmpty(t, out["error"], body)
	}
}

func TestAnalyzeAndHistory(t *testing.T) {
	srv := newTestServer(t, true)

	var first analyzer.Analysis
	require.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/api/v1/analyze", `{"home":"Man City","away":"Newcastle"}`, &first))
	assert.Equal(t, analyzer.DefaultLeague, first.League)
	assert.Equal(t, analyzer.SourceProvider, first.StatsSource)
	require.NotEmpty(t, first.PredictionID)

	var second analyzer.Analysis
	require.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/api/v1/analyze", `{"text":"Juventus vs Como, Serie A"}`, &second))
	assert.Equal(t, "Serie A", second.League)
	assert.Equal(t, 1.46, second.Baseline.AvgHomeGoals)

	var list struct {
		Predictions []store.PredictionRecord `json:"predictions"`
	}
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/v1/predictions?limit=1", "", &list))
	require.Len(t, list.Predictions, 1)
	assert.Equal(t, "Juventus", list.Predictions[0].Home)

	var rec store.PredictionRecord
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/v1/predictions/"+first.PredictionID, "", &rec))
	assert.Equal(t, "Man City", rec.Home)
	assert.Equal(t, "1-1", rec.TopScore)

	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, srv.URL+"/api/v1/predictions/nope", "", nil))
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/api/v1/predictions?limit=0", "", nil))
}

func TestAnalyzeBadInput(t *testing.T) {
	srv := newTestServer(t, false)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/api/v1/analyze", `{"text":"who wins?"}`, nil))
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/api/v1/analyze", `{"home":"Arsenal"}`, nil))
}

func TestHistoryDisabled(t *testing.T) {
	srv := newTestServer(t, false)
	var out map[string]any
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/health", "", &out))
	assert.Equal(t, http.StatusServiceUnavailable, do(t, http.MethodGet, srv.URL+"/api/v1/predictions", "", nil))
	assert.Equal(t, http.StatusServiceUnavailable, do(t, http.MethodGet, srv.URL+"/api/v1/predictions/x", "", nil))
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, false)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/predict", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
