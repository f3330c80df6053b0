package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/retry"
)

// Fetcher retrieves the current statistics of a fixture from some external
// source. The baseline is used for any field the source cannot supply.
type Fetcher func(ctx context.Context, home, away, league string, b poisson.LeagueBaseline) (*TeamMatchStats, error)

// Prompt is the request shared by the language model providers
func Prompt(home, away, league, season string) string {
	return fmt.Sprintf(`Search for %s season stats for %s and %s in %s.
Find average goals scored/conceded per match and last 5 results form.
%s is the home side, %s is the away side.
Return ONLY this JSON (no markdown, no explanation):
{"home_scored":1.5,"home_conceded":1.0,"away_scored":1.2,"away_conceded":1.4,"home_form":"WWDLW","away_form":"LDWWL","context":"brief team news"}`,
		season, home, away, league, home, away)
}

// Key identifies a fixture for caching
type Key struct {
	Home   string
	Away   string
	League string
}

// NewKey normalises team and league names so that "Man City" and " man city " share an entry
func NewKey(home, away, league string) Key {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	return Key{Home: norm(home), Away: norm(away), League: norm(league)}
}

// Cache stores fetched statistics
type Cache interface {
	// Get returns the cached statistics and when they were fetched.
	// A miss is reported with ok false and a nil error.
	Get(ctx context.Context, key Key) (s *TeamMatchStats, fetchedAt time.Time, ok bool, err error)
	Put(ctx context.Context, key Key, s *TeamMatchStats) error
}

// Cached wraps fetch with a read through cache. Entries older than ttl are
// refetched. Replies where every field was defaulted are not stored.
// Cache failures are logged and otherwise ignored.
func Cached(fetch Fetcher, cache Cache, ttl time.Duration) Fetcher {
	return func(ctx context.Context, home, away, league string, b poisson.LeagueBaseline) (*TeamMatchStats, error) {
		key := NewKey(home, away, league)
		s, fetchedAt, ok, err := cache.Get(ctx, key)
		if err != nil {
			logger.Warn("stats cache read failed:", err)
		} else if ok && time.Since(fetchedAt) < ttl {
			logger.Debug(fmt.Sprintf("stats cache hit for %s v %s", home, away))
			return s, nil
		}

		s, err = fetch(ctx, home, away, league, b)
		if err != nil {
			return nil, err
		}
		if !s.AllDefaulted() {
			if err := cache.Put(ctx, key, s); err != nil {
				logger.Warn("stats cache write failed:", err)
			}
		}
		return s, nil
	}
}

// WithRetry wraps fetch so that failed attempts are retried under policy
func WithRetry(fetch Fetcher, policy *retry.Policy) Fetcher {
	return func(ctx context.Context, home, away, league string, b poisson.LeagueBaseline) (*TeamMatchStats, error) {
		var out *TeamMatchStats
		err := policy.Execute(ctx, func(ctx context.Context) error {
			s, err := fetch(ctx, home, away, league, b)
			if err != nil {
				return err
			}
			out = s
			return nil
		})
		return out, err
	}
}
