package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/analyzer"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/protocol"
	"github.com/richard-senior/football-analyzer/pkg/render"
	"github.com/richard-senior/football-analyzer/pkg/server"
	"github.com/richard-senior/football-analyzer/pkg/store"
)

const (
	// MaxGoalsLimit bounds the grid a client may request
	MaxGoalsLimit  = 30
	// MaxHistory bounds prediction_history
	MaxHistory     = 100
	defaultHistory = 10
)

// Toolbox holds what the football tools need. History may be nil.
type Toolbox struct {
	Analyzer *analyzer.Analyzer
	History  *store.History
}

// Register adds every tool to the server
func (tb *Toolbox) Register(s *server.Server) {
	s.RegisterTool(AnalyzeMatchTool(), tb.HandleAnalyzeMatch)
	s.RegisterTool(PredictScorelineTool(), HandlePredictScoreline)
	s.RegisterTool(PredictionHistoryTool(), tb.HandlePredictionHistory)
}

func AnalyzeMatchTool() protocol.Tool {
	return protocol.Tool{
		Name: "analyze_match",
		Description: `
		Predicts a football match with a Poisson model.
		Current season statistics for both teams are looked up, turned into expected goals
		against the league averages, and the result, over/under 2.5, both teams to score
		and the five most likely scores are returned with a recommendation.
		`,
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"home":   {Type: "string", Description: "The home team, e.g. 'Man City'"},
				"away":   {Type: "string", Description: "The away team, e.g. 'Newcastle'"},
				"league": {Type: "string", Description: "The competition, e.g. 'Serie A'. Defaults to the Premier League."},
			},
			Required: []string{"home", "away"},
		},
	}
}

// HandleAnalyzeMatch runs a full analysis
func (tb *Toolbox) HandleAnalyzeMatch(ctx context.Context, args map[string]any) (*protocol.ToolResult, error) {
	home, err := stringArg(args, "home", true)
	if err != nil {
		return nil, err
	}
	away, err := stringArg(args, "away", true)
	if err != nil {
		return nil, err
	}
	league, err := stringArg(args, "league", false)
	if err != nil {
		return nil, err
	}

	a, err := tb.Analyzer.Analyze(ctx, home, away, league)
	if err != nil {
		return nil, err
	}
	return withJSON(render.Analysis(a), a)
}

func PredictScorelineTool() protocol.Tool {
	zero, limit := 0.0, float64(MaxGoalsLimit)
	return protocol.Tool{
		Name: "predict_scoreline",
		Description: `
		Runs the Poisson model directly on a pair of expected goals.
		Use this when you already know the expected goals of both sides.
		`,
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"lambda_home": {Type: "number", Description: "Expected goals of the home side", Minimum: &zero},
				"lambda_away": {Type: "number", Description: "Expected goals of the away side", Minimum: &zero},
				"max_goals":   {Type: "integer", Description: "Per side goal cap of the score grid, default 8", Minimum: &zero, Maximum: &limit},
			},
			Required: []string{"lambda_home", "lambda_away"},
		},
	}
}

// HandlePredictScoreline runs the engine on the given rates
func HandlePredictScoreline(_ context.Context, args map[string]any) (*protocol.ToolResult, error) {
	lambdaHome, _, err := numberArg(args, "lambda_home", true)
	if err != nil {
		return nil, err
	}
	lambdaAway, _, err := numberArg(args, "lambda_away", true)
	if err != nil {
		return nil, err
	}
	maxGoals := float64(poisson.DefaultMaxGoals)
	if v, ok, err := numberArg(args, "max_goals", false); err != nil {
		return nil, err
	} else if ok {
		if v != math.Trunc(v) || v < 0 || v > MaxGoalsLimit {
			return nil, fmt.Errorf("max_goals must be a whole number between 0 and %d", MaxGoalsLimit)
		}
		maxGoals = v
	}

	_, summary, err := poisson.NewEngine(int(maxGoals)).Predict(lambdaHome, lambdaAway)
	if err != nil {
		return nil, err
	}
	decision := poisson.Decide(summary)
	rates := poisson.ExpectedGoalRates{Home: lambdaHome, Away: lambdaAway}

	var buf bytes.Buffer
	render.PredictionTable(&buf, "Home", "Away", rates, summary, decision)
	return withJSON(buf.String(), struct {
		Rates    poisson.ExpectedGoalRates `json:"rates"`
		Summary  *poisson.Summary          `json:"summary"`
		Decision poisson.Decision          `json:"decision"`
	}{rates, summary, decision})
}

func PredictionHistoryTool() protocol.Tool {
	one, limit := 1.0, float64(MaxHistory)
	return protocol.Tool{
		Name:        "prediction_history",
		Description: "Lists the most recent match predictions, newest first",
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"limit": {Type: "integer", Description: "How many predictions to return, default 10", Minimum: &one, Maximum: &limit},
			},
			Required: []string{},
		},
	}
}

// HandlePredictionHistory lists stored predictions
func (tb *Toolbox) HandlePredictionHistory(ctx context.Context, args map[string]any) (*protocol.ToolResult, error) {
	if tb.History == nil {
		return nil, fmt.Errorf("prediction history is disabled, no database is configured")
	}
	limit := defaultHistory
	if v, ok, err := numberArg(args, "limit", false); err != nil {
		return nil, err
	} else if ok {
		limit = min(max(int(v), 1), MaxHistory)
	}

	records, err := tb.History.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	logger.Debug("prediction_history returned", len(records))
	var buf bytes.Buffer
	render.HistoryTable(&buf, records)
	return withJSON(buf.String(), records)
}

// withJSON returns a readable rendering followed by the same data as JSON
func withJSON(text string, v any) (*protocol.ToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	r := protocol.TextResult(text)
	r.Content = append(r.Content, protocol.Content{Type: "text", Text: string(data)})
	return r, nil
}

func stringArg(args map[string]any, name string, required bool) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required parameter %q", name)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string", name)
	}
	s = strings.TrimSpace(s)
	if s == "" && required {
		return "", fmt.Errorf("parameter %q must not be empty", name)
	}
	return s, nil
}

// numberArg accepts JSON numbers and numeric strings
func numberArg(args map[string]any, name string, required bool) (float64, bool, error) {
	v, ok := args[name]
	if !ok || v == nil {
		if required {
			return 0, false, fmt.Errorf("missing required parameter %q", name)
		}
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false, fmt.Errorf("parameter %q must be a number", name)
		}
		return f, true, nil
	}
	return 0, false, fmt.Errorf("parameter %q must be a number", name)
}
