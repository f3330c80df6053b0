package poisson

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var premierLeague = LeagueBaseline{AvgHomeGoals: 1.53, AvgAwayGoals: 1.15}

func TestCalibrate(t *testing.T) {
	rates := Calibrate(1.5, 1.0, 1.2, 1.4, premierLeague)
	assert.InDelta(t, 1.5*1.4/1.53, rates.Home, 1e-12)
	assert.InDelta(t, 1.2*1.0/1.15, rates.Away, 1e-12)
}

func TestCalibrateAverageTeamsReproduceBaseline(t *testing.T) {
	rates := Calibrate(1.53, 1.15, 1.15, 1.53, premierLeague)
	assert.InDelta(t, premierLeague.AvgHomeGoals, rates.Home, 1e-12)
	assert.InDelta(t, premierLeague.AvgAwayGoals, rates.Away, 1e-12)
}

func TestCalibrateFloor(t *testing.T) {
	rates := Calibrate(0, 1.0, 1.2, 1.4, premierLeague)
	assert.Equal(t, MinExpectedGoals, rates.Home)
	assert.Greater(t, rates.Away, MinExpectedGoals)

	rates = Calibrate(1.5, 0, 1.2, 0, premierLeague)
	assert.Equal(t, MinExpectedGoals, rates.Home)
	assert.Equal(t, MinExpectedGoals, rates.Away)

	// small but non-zero products are floored too
	rates = Calibrate(0.2, 0.2, 0.2, 0.2, premierLeague)
	assert.Equal(t, MinExpectedGoals, rates.Home)
	assert.Equal(t, MinExpectedGoals, rates.Away)
}
