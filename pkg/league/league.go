package league

import (
	"fmt"
	"strings"

	"github.com/richard-senior/football-analyzer/pkg/poisson"
)

// Entry maps a lowercase league key to its average goals per match.
// A league name matches an entry when the key is a substring of the lowercased name.
type Entry struct {
	Key      string                 `yaml:"key" json:"key"`
	Baseline poisson.LeagueBaseline `yaml:"baseline" json:"baseline"`
}

// Table is an ordered list of league baselines. Order matters: the first
// matching key wins, so more specific keys belong before general ones.
type Table struct {
	Entries []Entry                `yaml:"leagues" json:"leagues"`
	Default poisson.LeagueBaseline `yaml:"default" json:"default"`
}

// DefaultTable returns the built in baselines
func DefaultTable() *Table {
	return &Table{
		Entries: []Entry{
			{Key: "premier league", Baseline: poisson.LeagueBaseline{AvgHomeGoals: 1.53, AvgAwayGoals: 1.15}},
			{Key: "la liga", Baseline: poisson.LeagueBaseline{AvgHomeGoals: 1.44, AvgAwayGoals: 1.09}},
			{Key: "serie a", Baseline: poisson.LeagueBaseline{AvgHomeGoals: 1.46, AvgAwayGoals: 1.11}},
			{Key: "ligue 1", Baseline: poisson.LeagueBaseline{AvgHomeGoals: 1.40, AvgAwayGoals: 1.08}},
			{Key: "bundesliga", Baseline: poisson.LeagueBaseline{AvgHomeGoals: 1.56, AvgAwayGoals: 1.18}},
			{Key: "super lig", Baseline: poisson.LeagueBaseline{AvgHomeGoals: 1.50, AvgAwayGoals: 1.10}},
			{Key: "super league", Baseline: poisson.LeagueBaseline{AvgHomeGoals: 1.38, AvgAwayGoals: 0.98}},
			{Key: "champions league", Baseline: poisson.LeagueBaseline{AvgHomeGoals: 1.55, AvgAwayGoals: 1.20}},
		},
		Default: poisson.LeagueBaseline{AvgHomeGoals: 1.45, AvgAwayGoals: 1.10},
	}
}

// Lookup returns the baseline of the first entry whose key occurs in name
// (case insensitive), or the table default. It never fails.
func (t *Table) Lookup(name string) poisson.LeagueBaseline {
	lower := strings.ToLower(name)
	for _, e := range t.Entries {
		if strings.Contains(lower, e.Key) {
			return e.Baseline
		}
	}
	return t.Default
}

// Validate checks that every baseline is strictly positive and every key is
// a non empty lowercase string. Lookup on a table that fails validation may
// produce rates that the engine rejects.
func (t *Table) Validate() error {
	if err := checkBaseline("default", t.Default); err != nil {
		return err
	}
	for i, e := range t.Entries {
		if strings.TrimSpace(e.Key) == "" {
			return fmt.Errorf("league entry %d has an empty key", i)
		}
		if e.Key != strings.ToLower(e.Key) {
			return fmt.Errorf("league key %q must be lowercase", e.Key)
		}
		if err := checkBaseline(e.Key, e.Baseline); err != nil {
			return err
		}
	}
	return nil
}

func checkBaseline(name string, b poisson.LeagueBaseline) error {
	if !(b.AvgHomeGoals > 0) || !(b.AvgAwayGoals > 0) {
		return fmt.Errorf("league %q baseline must be positive, got home=%f away=%f", name, b.AvgHomeGoals, b.AvgAwayGoals)
	}
	return nil
}
