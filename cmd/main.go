package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/richard-senior/football-analyzer/internal/config"
	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/analyzer"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/provider/footballdata"
	"github.com/richard-senior/football-analyzer/pkg/provider/gemini"
	"github.com/richard-senior/football-analyzer/pkg/provider/openai"
	"github.com/richard-senior/football-analyzer/pkg/search"
	"github.com/richard-senior/football-analyzer/pkg/stats"
	"github.com/richard-senior/football-analyzer/pkg/store"
)

// globalCmd carries the configuration shared by every command
type globalCmd struct {
	config.Config
}

var CLI struct {
	globalCmd

	Bot     botCmd     `cmd:"" help:"Run the Telegram bot."`
	Mcp     mcpCmd     `cmd:"" help:"Serve the analyzer as MCP tools over stdio."`
	Serve   serveCmd   `cmd:"" help:"Serve the HTTP API."`
	Predict predictCmd `cmd:"" help:"Predict from expected goals or goal averages, without any lookup."`
	Analyze analyzeCmd `cmd:"" help:"Look up and predict one fixture, e.g. 'Juventus vs Como, Serie A'."`
	History historyCmd `cmd:"" help:"List recent predictions."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("football-analyzer"),
		kong.Description("Poisson match predictions from current team statistics."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&CLI.globalCmd)
	logger.Close()
	ctx.FatalIfErrorf(err)
}

// logMode says where a command may write its logs
type logMode int

const (
	// logConsole follows the configuration
	logConsole logMode = iota
	// logStderr keeps stdout for command output
	logStderr
	// logFileOnly keeps stdout for protocol traffic
	logFileOnly
)

// setup validates the configuration and configures logging
func (g *globalCmd) setup(mode logMode) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if mode == logFileOnly {
		g.LogOutput = "f"
	}
	if err := g.ApplyLogging(); err != nil {
		return err
	}
	if mode == logStderr && g.LogOutput == "c" {
		logger.SetWriters(os.Stderr, os.Stderr)
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// app is the wired analyzer and its storage
type app struct {
	analyzer *analyzer.Analyzer
	history  *store.History
	gemini   *gemini.Client
	db       *store.Store
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warn("failed to close database:", err)
		}
	}
}

// openStore opens the database, or returns nils when storage is disabled
func (g *globalCmd) openStore(ctx context.Context) (*store.Store, *store.History, stats.Cache, error) {
	if g.DBPath == "" {
		logger.Info("No database configured, stats cache and history disabled")
		return nil, nil, nil, nil
	}
	db, err := store.Open(g.DBPath)
	if err != nil {
		return nil, nil, nil, err
	}
	history, err := store.NewHistory(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	cache, err := store.NewStatsCache(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return db, history, cache, nil
}

// geminiClient returns a client when a Gemini key is configured
func (g *globalCmd) geminiClient() *gemini.Client {
	if g.GeminiAPIKey == "" {
		return nil
	}
	c := gemini.NewClient(g.GeminiAPIKey)
	c.Model = g.GeminiModel
	c.BaseURL = g.GeminiBaseURL
	c.Season = g.Season
	return c
}

// fetcher builds the stats lookup of the selected provider, retried and then cached
func (g *globalCmd) fetcher(cache stats.Cache) (stats.Fetcher, error) {
	if err := g.RequireProvider(); err != nil {
		return nil, err
	}

	var fetch stats.Fetcher
	switch g.Provider {
	case "openai":
		c := openai.NewClient(g.OpenAIAPIKey)
		c.Model = g.OpenAIModel
		c.BaseURL = g.OpenAIBaseURL
		c.Season = g.Season
		fetch = c.StatsFetcher(search.NewGoogle(g.GoogleSearchKey, g.GoogleSearchCX), search.PageMarkdown)
	case "footballdata":
		fetch = footballdata.NewClient(g.Season).StatsFetcher()
	default:
		fetch = g.geminiClient().StatsFetcher()
	}

	fetch = stats.WithRetry(fetch, g.RetryPolicy())
	if cache != nil && g.CacheTTL > 0 {
		fetch = stats.Cached(fetch, cache, g.CacheTTL)
	}
	logger.Info("Using stats provider", g.Provider)
	return fetch, nil
}

// newApp wires the analyzer from the configuration
func (g *globalCmd) newApp(ctx context.Context) (*app, error) {
	leagues, err := g.Leagues()
	if err != nil {
		return nil, err
	}
	db, history, cache, err := g.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{history: history, gemini: g.geminiClient(), db: db}

	fetch, err := g.fetcher(cache)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.analyzer = analyzer.New(leagues, fetch)
	a.analyzer.Engine = poisson.NewEngine(g.MaxGoals)
	if history != nil {
		a.analyzer.History = history
	}
	return a, nil
}
