package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/league"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/stats"
	"github.com/richard-senior/football-analyzer/pkg/store"
)

// DefaultLeague is assumed when a request names no league
const DefaultLeague = "Premier League"

// ErrUnparseableRequest is returned for text that does not name two teams
var ErrUnparseableRequest = errors.New(`expected "Home vs Away" or "Home vs Away, League"`)

// Recorder stores finished analyses
type Recorder interface {
	RecordPrediction(ctx context.Context, home, away, league string, rates poisson.ExpectedGoalRates, s *poisson.Summary, d poisson.Decision) (*store.PredictionRecord, error)
}

// Analysis is everything produced for one fixture
type Analysis struct {
	Home         string                    `json:"home"`
	Away         string                    `json:"away"`
	League       string                    `json:"league"`
	Baseline     poisson.LeagueBaseline    `json:"baseline"`
	Stats        *stats.TeamMatchStats     `json:"stats"`
	StatsSource  string                    `json:"statsSource"`
	Rates        poisson.ExpectedGoalRates `json:"rates"`
	Distribution *poisson.Distribution     `json:"-"`
	Summary      *poisson.Summary          `json:"summary"`
	Decision     poisson.Decision          `json:"decision"`
	PredictionID string                    `json:"predictionId,omitempty"`
}

const (
	SourceProvider = "provider"
	SourceDefaults = "league defaults"
)

// Analyzer turns a fixture into a prediction
type Analyzer struct {
	Leagues *league.Table
	Fetch   stats.Fetcher
	Engine  *poisson.Engine
	// History is optional
	History Recorder
}

// New returns an analyzer using the default engine
func New(leagues *league.Table, fetch stats.Fetcher) *Analyzer {
	return &Analyzer{Leagues: leagues, Fetch: fetch, Engine: poisson.NewEngine(poisson.DefaultMaxGoals)}
}

// ParseRequest splits free text such as "Man City vs Newcastle" or
// "Juventus - Como, Serie A" into teams and league.
// Everything after the first comma is the league.
func ParseRequest(text string) (home, away, leagueName string, err error) {
	text = strings.TrimSpace(text)
	leagueName = DefaultLeague
	match := text
	if i := strings.Index(text, ","); i >= 0 {
		match = strings.TrimSpace(text[:i])
		if l := strings.TrimSpace(text[i+1:]); l != "" {
			leagueName = l
		}
	}

	lower := strings.ToLower(match)
	if i := strings.Index(lower, " vs "); i >= 0 {
		home, away = match[:i], match[i+len(" vs "):]
	} else if i := strings.Index(match, " - "); i >= 0 {
		home, away = match[:i], match[i+len(" - "):]
	} else {
		return "", "", "", ErrUnparseableRequest
	}

	home, away = strings.TrimSpace(home), strings.TrimSpace(away)
	if home == "" || away == "" {
		return "", "", "", ErrUnparseableRequest
	}
	return home, away, leagueName, nil
}

// Analyze predicts a fixture. When statistics cannot be fetched the analysis
// continues with league average teams, so only an engine failure is returned.
func (a *Analyzer) Analyze(ctx context.Context, home, away, leagueName string) (*Analysis, error) {
	if strings.TrimSpace(leagueName) == "" {
		leagueName = DefaultLeague
	}
	baseline := a.Leagues.Lookup(leagueName)

	source := SourceProvider
	var teamStats *stats.TeamMatchStats
	if a.Fetch != nil {
		var err error
		teamStats, err = a.Fetch(ctx, home, away, leagueName, baseline)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn(fmt.Sprintf("stats unavailable for %s v %s, using league defaults:", home, away), err)
			teamStats = nil
		}
	}
	if teamStats == nil {
		teamStats = stats.Defaults(baseline)
		source = SourceDefaults
	} else if teamStats.AllDefaulted() {
		source = SourceDefaults
	}

	rates := teamStats.Rates(baseline)
	engine := a.Engine
	if engine == nil {
		engine = poisson.NewEngine(poisson.DefaultMaxGoals)
	}
	dist, summary, err := engine.Predict(rates.Home, rates.Away)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		Home:         home,
		Away:         away,
		League:       leagueName,
		Baseline:     baseline,
		Stats:        teamStats,
		StatsSource:  source,
		Rates:        rates,
		Distribution: dist,
		Summary:      summary,
		Decision:     poisson.Decide(summary),
	}
	logger.Info(fmt.Sprintf("%s v %s: xG %.2f-%.2f, pick %s", home, away, rates.Home, rates.Away, analysis.Decision.Result.Label))

	if a.History != nil {
		rec, err := a.History.RecordPrediction(ctx, home, away, leagueName, rates, summary, analysis.Decision)
		if err != nil {
			logger.Warn("failed to record prediction:", err)
		} else {
			analysis.PredictionID = rec.ID
		}
	}
	return analysis, nil
}

// AnalyzeText parses a free text request and analyses it
func (a *Analyzer) AnalyzeText(ctx context.Context, text string) (*Analysis, error) {
	home, away, leagueName, err := ParseRequest(text)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, home, away, leagueName)
}
