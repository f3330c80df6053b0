// Package footballdata derives team statistics from the season result files
// published by football-data.co.uk. It needs no credentials.
package footballdata

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/retry"
	"github.com/richard-senior/football-analyzer/pkg/stats"
	"github.com/richard-senior/football-analyzer/pkg/transport"
)

const (
	DefaultBaseURL = "https://www.football-data.co.uk/mmz4281"
	// DefaultTTL is how long a downloaded result file is reused
	DefaultTTL = 6 * time.Hour
	// FormLength is the number of recent results in a form string
	FormLength = 5
)

var (
	// ErrUnsupportedLeague is returned for leagues without a result file
	ErrUnsupportedLeague = errors.New("league not covered by football-data.co.uk")
	// ErrUnknownTeam is returned when neither team appears in the results
	ErrUnknownTeam = errors.New("teams not found in league results")
)

// leagueCodes maps league names to file codes. The first entry whose name
// is contained in the requested league wins, so more specific names come first.
var leagueCodes = []struct {
	name string
	code string
}{
	{"scottish premiership", "SC0"},
	{"premier league", "E0"},
	{"championship", "E1"},
	{"league one", "E2"},
	{"league two", "E3"},
	{"la liga", "SP1"},
	{"serie a", "I1"},
	{"bundesliga", "D1"},
	{"ligue 1", "F1"},
	{"super lig", "T1"},
	{"super league", "G1"},
	{"eredivisie", "N1"},
	{"primeira", "P1"},
}

// LeagueCode returns the file code of a league such as "English Premier League"
func LeagueCode(league string) (string, bool) {
	l := strings.ToLower(league)
	for _, lc := range leagueCodes {
		if strings.Contains(l, lc.name) {
			return lc.code, true
		}
	}
	return "", false
}

// SeasonCode converts "2025-2026" or "2025/2026" to "2526"
func SeasonCode(season string) (string, error) {
	parts := strings.FieldsFunc(season, func(r rune) bool { return r == '-' || r == '/' })
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 4 {
		return "", fmt.Errorf("season must look like 2025-2026, got %q", season)
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			return "", fmt.Errorf("season must look like 2025-2026, got %q", season)
		}
	}
	return parts[0][2:] + parts[1][2:], nil
}

// Result is one played match
type Result struct {
	Date      time.Time
	Home      string
	Away      string
	HomeGoals int
	AwayGoals int
}

var dateFormats = []string{"02/01/2006", "02/01/06"}

// ParseCSV reads a result file. Rows without a final score are fixtures
// still to be played and are skipped, as are rows that cannot be parsed.
// The results are returned in date order.
func ParseCSV(data []byte) ([]Result, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff"))))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range []string{"Date", "HomeTeam", "AwayTeam", "FTHG", "FTAG"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("CSV has no %s column", name)
		}
	}

	var results []Result
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		field := func(name string) string {
			if i := col[name]; i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		res := Result{Home: field("HomeTeam"), Away: field("AwayTeam")}
		if res.Home == "" || res.Away == "" {
			continue
		}
		hg, errH := strconv.Atoi(field("FTHG"))
		ag, errA := strconv.Atoi(field("FTAG"))
		if errH != nil || errA != nil {
			continue
		}
		res.HomeGoals, res.AwayGoals = hg, ag
		if res.Date, err = parseDate(field("Date")); err != nil {
			logger.Debug("skipping row", line, err)
			continue
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Date.Before(results[j].Date) })
	return results, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse date %q", s)
}

// TeamStats computes the fixture statistics from a season's results: the home
// side's averages from its home matches, the away side's from its away matches,
// and each side's last FormLength results, oldest first. Anything that cannot
// be computed keeps its league default and is listed in Defaulted.
func TeamStats(results []Result, home, away string, b poisson.LeagueBaseline) (*stats.TeamMatchStats, error) {
	known := teamNames(results)
	homeTeam := MatchTeam(home, known)
	awayTeam := MatchTeam(away, known)
	if homeTeam == "" && awayTeam == "" {
		return nil, fmt.Errorf("%w: %s, %s", ErrUnknownTeam, home, away)
	}

	s := stats.Defaults(b)
	var defaulted []string

	homeGames := 0
	if homeTeam != "" {
		var scored, conceded int
		for _, r := range results {
			if r.Home == homeTeam {
				homeGames++
				scored += r.HomeGoals
				conceded += r.AwayGoals
			}
		}
		if homeGames > 0 {
			s.HomeScored = float64(scored) / float64(homeGames)
			s.HomeConceded = float64(conceded) / float64(homeGames)
		}
	}
	if homeGames == 0 {
		defaulted = append(defaulted, "home_scored", "home_conceded")
	}

	awayGames := 0
	if awayTeam != "" {
		var scored, conceded int
		for _, r := range results {
			if r.Away == awayTeam {
				awayGames++
				scored += r.AwayGoals
				conceded += r.HomeGoals
			}
		}
		if awayGames > 0 {
			s.AwayScored = float64(scored) / float64(awayGames)
			s.AwayConceded = float64(conceded) / float64(awayGames)
		}
	}
	if awayGames == 0 {
		defaulted = append(defaulted, "away_scored", "away_conceded")
	}

	if f := form(results, homeTeam); f != "" {
		s.HomeForm = f
	} else {
		defaulted = append(defaulted, "home_form")
	}
	if f := form(results, awayTeam); f != "" {
		s.AwayForm = f
	} else {
		defaulted = append(defaulted, "away_form")
	}

	s.Defaulted = defaulted
	s.Context = fmt.Sprintf("From %d results: %s %d home games, %s %d away games.",
		len(results), orUnknown(homeTeam, home), homeGames, orUnknown(awayTeam, away), awayGames)
	return s, nil
}

// form returns the team's last results as W, D or L, oldest first
func form(results []Result, team string) string {
	if team == "" {
		return ""
	}
	var out []byte
	for i := len(results) - 1; i >= 0 && len(out) < FormLength; i-- {
		r := results[i]
		var scored, conceded int
		switch team {
		case r.Home:
			scored, conceded = r.HomeGoals, r.AwayGoals
		case r.Away:
			scored, conceded = r.AwayGoals, r.HomeGoals
		default:
			continue
		}
		switch {
		case scored > conceded:
			out = append(out, 'W')
		case scored < conceded:
			out = append(out, 'L')
		default:
			out = append(out, 'D')
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func teamNames(results []Result) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range results {
		for _, n := range []string{r.Home, r.Away} {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}

func orUnknown(matched, requested string) string {
	if matched == "" {
		return requested + " (not found)"
	}
	return matched
}

type cachedResults struct {
	results   []Result
	fetchedAt time.Time
}

// Client downloads and caches result files
type Client struct {
	BaseURL string
	Season  string

	// TTL bounds how long a downloaded file is reused, zero disables the cache
	TTL time.Duration

	get   func(ctx context.Context, url string) ([]byte, error)
	now   func() time.Time
	mu    sync.Mutex
	files map[string]cachedResults
}

// NewClient creates a client for the given season, e.g. "2025-2026"
func NewClient(season string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		Season:  season,
		TTL:     DefaultTTL,
		get:     transport.GetBytes,
		now:     time.Now,
		files:   make(map[string]cachedResults),
	}
}

// Results returns the played matches of a league this season
func (c *Client) Results(ctx context.Context, leagueCode string) ([]Result, error) {
	season, err := SeasonCode(c.Season)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	url := fmt.Sprintf("%s/%s/%s.csv", strings.TrimRight(c.BaseURL, "/"), season, leagueCode)

	c.mu.Lock()
	cached, ok := c.files[url]
	c.mu.Unlock()
	if ok && c.now().Sub(cached.fetchedAt) < c.TTL {
		logger.Debug("Using cached results for", leagueCode, c.Season)
		return cached.results, nil
	}

	logger.Info("Fetching results from football-data.co.uk for", leagueCode, c.Season)
	data, err := c.get(ctx, url)
	if err != nil {
		var statusErr *transport.StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return nil, retry.Permanent(fmt.Errorf("football-data: %w", err))
		}
		return nil, fmt.Errorf("football-data: %w", err)
	}
	results, err := ParseCSV(data)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	if c.TTL > 0 {
		c.mu.Lock()
		c.files[url] = cachedResults{results: results, fetchedAt: c.now()}
		c.mu.Unlock()
	}
	return results, nil
}

// StatsFetcher returns a stats.Fetcher backed by this season's results
func (c *Client) StatsFetcher() stats.Fetcher {
	return func(ctx context.Context, home, away, league string, b poisson.LeagueBaseline) (*stats.TeamMatchStats, error) {
		code, ok := LeagueCode(league)
		if !ok {
			return nil, retry.Permanent(fmt.Errorf("%w: %s", ErrUnsupportedLeague, league))
		}
		results, err := c.Results(ctx, code)
		if err != nil {
			return nil, err
		}
		s, err := TeamStats(results, home, away, b)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		return s, nil
	}
}
