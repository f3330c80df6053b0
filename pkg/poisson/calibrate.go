package poisson

import "math"

// MinExpectedGoals is the floor applied to every calibrated rate.
// Without it a team with no recorded goals would be given no chance of scoring.
const MinExpectedGoals = 0.3

// LeagueBaseline is the league-wide average goals per match for home and away sides
type LeagueBaseline struct {
	AvgHomeGoals float64 `json:"avgHomeGoals" yaml:"home"`
	AvgAwayGoals float64 `json:"avgAwayGoals" yaml:"away"`
}

// ExpectedGoalRates are the Poisson rates for a single fixture
type ExpectedGoalRates struct {
	Home float64 `json:"lambdaHome"`
	Away float64 `json:"lambdaAway"`
}

// Calibrate converts per-team scoring averages into match specific expected goals.
//
// Each side's rate is its attack strength (scored / league average) multiplied by the
// opponent's defensive weakness (conceded / league average), scaled back to goals by the
// league average for that venue:
//
//	home = (homeScored/avgHome) * (awayConceded/avgHome) * avgHome
//	away = (awayScored/avgAway) * (homeConceded/avgAway) * avgAway
//
// Both rates are floored at MinExpectedGoals. The baseline must be strictly positive.
func Calibrate(homeScored, homeConceded, awayScored, awayConceded float64, b LeagueBaseline) ExpectedGoalRates {
	home := (homeScored / b.AvgHomeGoals) * (awayConceded / b.AvgHomeGoals) * b.AvgHomeGoals
	away := (awayScored / b.AvgAwayGoals) * (homeConceded / b.AvgAwayGoals) * b.AvgAwayGoals
	return ExpectedGoalRates{
		Home: math.Max(home, MinExpectedGoals),
		Away: math.Max(away, MinExpectedGoals),
	}
}
