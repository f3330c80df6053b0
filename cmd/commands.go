package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/analyzer"
	"github.com/richard-senior/football-analyzer/pkg/api"
	"github.com/richard-senior/football-analyzer/pkg/bot"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/render"
	"github.com/richard-senior/football-analyzer/pkg/server"
	"github.com/richard-senior/football-analyzer/pkg/store"
	"github.com/richard-senior/football-analyzer/pkg/tools"
	"github.com/richard-senior/football-analyzer/pkg/transport"
)

type botCmd struct{}

func (c *botCmd) Run(g *globalCmd) error {
	if err := g.setup(logConsole); err != nil {
		return err
	}
	if err := g.RequireTelegram(); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	a, err := g.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tg, err := bot.Connect(g.TelegramToken)
	if err != nil {
		return err
	}
	var odds bot.OddsReader
	if a.gemini != nil {
		odds = a.gemini
	} else {
		logger.Warn("No Gemini key configured, odds screenshots will be refused")
	}
	logger.Highlight("Bot is running")
	return bot.Run(ctx, tg, bot.New(tg, a.analyzer, odds, g.RequestTimeout))
}

type mcpCmd struct{}

func (c *mcpCmd) Run(g *globalCmd) error {
	if err := g.setup(logFileOnly); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	a, err := g.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s := server.New(transport.NewStdioTransport())
	toolbox := &tools.Toolbox{Analyzer: a.analyzer, History: a.history}
	toolbox.Register(s)
	return s.Start(ctx)
}

type serveCmd struct{}

func (c *serveCmd) Run(g *globalCmd) error {
	if err := g.setup(logConsole); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	a, err := g.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	router := api.NewRouter(api.NewHandler(a.analyzer, a.history), g.CORSOrigins, g.RequestTimeout)
	return api.Serve(ctx, g.HTTPAddr, router, g.RequestTimeout+10*time.Second)
}

type predictCmd struct {
	Values []float64 `arg:"" help:"Either LAMBDA_HOME LAMBDA_AWAY, or HOME_SCORED HOME_CONCEDED AWAY_SCORED AWAY_CONCEDED."`
	League string    `help:"League whose averages calibrate four goal averages." default:"Premier League"`
	Grid   int       `help:"Also print the score grid up to this many goals per side."`
	JSON   bool      `help:"Print JSON instead of tables." name:"json"`
}

func (c *predictCmd) Run(g *globalCmd) error {
	if err := g.setup(logStderr); err != nil {
		return err
	}
	leagues, err := g.Leagues()
	if err != nil {
		return err
	}

	var rates poisson.ExpectedGoalRates
	switch len(c.Values) {
	case 2:
		rates = poisson.ExpectedGoalRates{Home: c.Values[0], Away: c.Values[1]}
	case 4:
		for _, v := range c.Values {
			if v < 0 {
				return errors.New("goal averages must not be negative")
			}
		}
		b := leagues.Lookup(c.League)
		rates = poisson.Calibrate(c.Values[0], c.Values[1], c.Values[2], c.Values[3], b)
		logger.Info(fmt.Sprintf("%s baseline %.2f / %.2f", c.League, b.AvgHomeGoals, b.AvgAwayGoals))
	default:
		return fmt.Errorf("expected 2 or 4 values, got %d", len(c.Values))
	}

	dist, summary, err := poisson.NewEngine(g.MaxGoals).Predict(rates.Home, rates.Away)
	if err != nil {
		return err
	}
	decision := poisson.Decide(summary)

	if c.JSON {
		return printJSON(struct {
			Rates    poisson.ExpectedGoalRates `json:"rates"`
			Summary  *poisson.Summary          `json:"summary"`
			Decision poisson.Decision          `json:"decision"`
		}{rates, summary, decision})
	}
	render.PredictionTable(os.Stdout, "Home", "Away", rates, summary, decision)
	if c.Grid > 0 {
		render.GridTable(os.Stdout, dist, c.Grid)
	}
	return nil
}

type analyzeCmd struct {
	Request []string `arg:"" help:"The fixture, e.g. Juventus vs Como, Serie A."`
	Grid    int      `help:"Also print the score grid up to this many goals per side."`
	JSON    bool     `help:"Print JSON instead of tables." name:"json"`
}

func (c *analyzeCmd) Run(g *globalCmd) error {
	if err := g.setup(logStderr); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, g.RequestTimeout)
	defer cancelTimeout()

	a, err := g.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	analysis, err := a.analyzer.AnalyzeText(ctx, strings.Join(c.Request, " "))
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(analysis)
	}

	s := analysis.Stats
	fmt.Printf("%s, baseline %.2f / %.2f\n", analysis.League, analysis.Baseline.AvgHomeGoals, analysis.Baseline.AvgAwayGoals)
	fmt.Printf("%s: %.2f scored, %.2f conceded, form %s\n", analysis.Home, s.HomeScored, s.HomeConceded, s.HomeForm)
	fmt.Printf("%s: %.2f scored, %.2f conceded, form %s\n", analysis.Away, s.AwayScored, s.AwayConceded, s.AwayForm)
	if analysis.StatsSource == analyzer.SourceDefaults {
		fmt.Println("No current stats found, league averages used.")
	}
	if s.Context != "" {
		fmt.Println(s.Context)
	}
	render.PredictionTable(os.Stdout, analysis.Home, analysis.Away, analysis.Rates, analysis.Summary, analysis.Decision)
	if c.Grid > 0 {
		render.GridTable(os.Stdout, analysis.Distribution, c.Grid)
	}
	return nil
}

type historyCmd struct {
	Limit int  `help:"How many predictions to list." default:"10"`
	JSON  bool `help:"Print JSON instead of a table." name:"json"`
}

func (c *historyCmd) Run(g *globalCmd) error {
	if err := g.setup(logStderr); err != nil {
		return err
	}
	if g.DBPath == "" {
		return errors.New("history needs a database, set --db-path")
	}
	ctx := context.Background()
	db, err := store.Open(g.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	history, err := store.NewHistory(ctx, db)
	if err != nil {
		return err
	}

	records, err := history.Recent(ctx, c.Limit)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(records)
	}
	render.HistoryTable(os.Stdout, records)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
