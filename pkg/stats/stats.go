package stats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/richard-senior/football-analyzer/pkg/poisson"
)

const (
	// UnknownForm is shown when a team's recent results are not available
	UnknownForm = "?????"
	// MaxAverage bounds any per match goals average accepted from a provider
	MaxAverage = 10.0
	// MaxContextRunes caps the free text team news
	MaxContextRunes = 300

	decodedFields = 6
)

// ErrMalformedStats is returned when a provider reply holds no usable JSON object
var ErrMalformedStats = errors.New("malformed team statistics")

var formPattern = regexp.MustCompile(`^[WDL?]{1,10}$`)

// TeamMatchStats are the per match averages of the two sides of a fixture:
// the home side's goals scored and conceded, the away side's, recent form
// strings such as "WWDLW" and optional team news.
type TeamMatchStats struct {
	HomeScored   float64 `json:"home_scored"`
	HomeConceded float64 `json:"home_conceded"`
	AwayScored   float64 `json:"away_scored"`
	AwayConceded float64 `json:"away_conceded"`
	HomeForm     string  `json:"home_form"`
	AwayForm     string  `json:"away_form"`
	Context      string  `json:"context"`

	// Defaulted lists the json names of fields that were missing or invalid
	// and were replaced by the league default
	Defaulted []string `json:"defaulted,omitempty"`
}

// Defaults returns the statistics of two league average teams
func Defaults(b poisson.LeagueBaseline) *TeamMatchStats {
	return &TeamMatchStats{
		HomeScored:   b.AvgHomeGoals,
		HomeConceded: b.AvgAwayGoals,
		AwayScored:   b.AvgAwayGoals,
		AwayConceded: b.AvgHomeGoals,
		HomeForm:     UnknownForm,
		AwayForm:     UnknownForm,
	}
}

// AllDefaulted reports whether nothing from the provider was used
func (s *TeamMatchStats) AllDefaulted() bool {
	return len(s.Defaulted) == decodedFields
}

// Rates calibrates the statistics against the league baseline
func (s *TeamMatchStats) Rates(b poisson.LeagueBaseline) poisson.ExpectedGoalRates {
	return poisson.Calibrate(s.HomeScored, s.HomeConceded, s.AwayScored, s.AwayConceded, b)
}

// Decode extracts team statistics from a provider reply.
//
// The reply may be wrapped in whitespace or a markdown code fence, and may carry
// prose around the object. Each field is checked on its own: a missing or invalid
// field takes its league default and is listed in Defaulted, so a partially useful
// reply still contributes what it can. A reply with no JSON object at all yields
// ErrMalformedStats.
func Decode(text string, b poisson.LeagueBaseline) (*TeamMatchStats, error) {
	obj, err := extractObject(text)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(obj, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStats, err)
	}

	s := Defaults(b)
	var defaulted []string
	number := func(name string, dst *float64) {
		if v, ok := decodeAverage(raw[name]); ok {
			*dst = v
			return
		}
		defaulted = append(defaulted, name)
	}
	form := func(name string, dst *string) {
		if v, ok := decodeForm(raw[name]); ok {
			*dst = v
			return
		}
		defaulted = append(defaulted, name)
	}

	number("home_scored", &s.HomeScored)
	number("home_conceded", &s.HomeConceded)
	number("away_scored", &s.AwayScored)
	number("away_conceded", &s.AwayConceded)
	form("home_form", &s.HomeForm)
	form("away_form", &s.AwayForm)

	var context string
	if msg, ok := raw["context"]; ok && json.Unmarshal(msg, &context) == nil {
		s.Context = truncateRunes(strings.TrimSpace(context), MaxContextRunes)
	}

	s.Defaulted = defaulted
	return s, nil
}

// extractObject returns the first balanced {...} in text
func extractObject(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, ErrMalformedStats
	}
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	var obj json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStats, err)
	}
	return bytes.TrimSpace(obj), nil
}

// decodeAverage accepts a JSON number, or a numeric string, in [0, MaxAverage]
func decodeAverage(msg json.RawMessage) (float64, bool) {
	if len(msg) == 0 || string(msg) == "null" {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(msg, &v); err != nil {
		var s string
		if json.Unmarshal(msg, &s) != nil {
			return 0, false
		}
		if _, err := fmt.Sscanf(strings.TrimSpace(s), "%g", &v); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > MaxAverage {
		return 0, false
	}
	return v, true
}

func decodeForm(msg json.RawMessage) (string, bool) {
	if len(msg) == 0 || string(msg) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return "", false
	}
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	if !formPattern.MatchString(s) {
		return "", false
	}
	return s, true
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
