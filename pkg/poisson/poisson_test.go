package poisson

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestPMFMatchesDirectFormula(t *testing.T) {
	for _, lambda := range []float64{0.3, 0.75, 1.0, 1.3725, 2.5, 4.0, 5.0} {
		oracle := distuv.Poisson{Lambda: lambda}
		factorial := 1.0
		for k := 0; k <= DefaultMaxGoals; k++ {
			if k > 0 {
				factorial *= float64(k)
			}
			direct := math.Exp(-lambda) * math.Pow(lambda, float64(k)) / factorial
			got := PMF(k, lambda)
			assert.InEpsilon(t, direct, got, 1e-9, "lambda=%v k=%d", lambda, k)
			assert.InEpsilon(t, oracle.Prob(float64(k)), got, 1e-9, "lambda=%v k=%d", lambda, k)
		}
	}
}

func TestPMFDegenerateRate(t *testing.T) {
	assert.Equal(t, 1.0, PMF(0, 0))
	assert.Equal(t, 0.0, PMF(1, 0))
	assert.Equal(t, 0.0, PMF(5, 0))
	assert.Equal(t, 1.0, PMF(0, -2))
	assert.Equal(t, 0.0, PMF(3, -2))
	assert.Equal(t, 0.0, PMF(-1, 1.2))
}

func TestPredictGoldenScenario(t *testing.T) {
	rates := Calibrate(1.5, 1.0, 1.2, 1.4, LeagueBaseline{AvgHomeGoals: 1.53, AvgAwayGoals: 1.15})
	require.InDelta(t, 1.3725490196078431, rates.Home, 1e-12)
	require.InDelta(t, 1.0434782608695652, rates.Away, 1e-12)

	dist, s, err := Predict(rates.Home, rates.Away)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxGoals, dist.MaxGoals)

	assert.InDelta(t, 0.443744506280036, s.Home, 1e-12)
	assert.InDelta(t, 0.2708969865560075, s.Draw, 1e-12)
	assert.InDelta(t, 0.28534295363096557, s.Away, 1e-12)
	assert.InDelta(t, 0.4344574609318738, s.Over25, 1e-12)
	assert.InDelta(t, 0.5655425390681261, s.Under25, 1e-12)
	assert.InDelta(t, 0.48357787803255453, s.BTTS, 1e-12)

	want := []Scoreline{
		{Home: 1, Away: 1, Prob: 0.12786272433053308},
		{Home: 1, Away: 0, Prob: 0.12253511081676088},
		{Home: 0, Away: 1, Prob: 0.09315712772653126},
		{Home: 0, Away: 0, Prob: 0.0892755807379258},
		{Home: 2, Away: 1, Prob: 0.08774892846213056},
	}
	require.Len(t, s.Top, TopScorelines)
	for i, w := range want {
		assert.Equal(t, w.Home, s.Top[i].Home, "top[%d]", i)
		assert.Equal(t, w.Away, s.Top[i].Away, "top[%d]", i)
		assert.InDelta(t, w.Prob, s.Top[i].Prob, 1e-12, "top[%d]", i)
	}

	d := Decide(s)
	assert.Equal(t, "1", d.Result.Label)
	assert.Equal(t, "Under 2.5", d.Goals.Label)
	assert.Equal(t, s.Under25, d.Goals.Prob)
	assert.Equal(t, "No", d.BTTS.Label)
}

func TestPredictUnderPlusOverIsOne(t *testing.T) {
	for _, l := range [][2]float64{{0.3, 0.3}, {1.1, 2.7}, {3.9, 0.4}, {5, 5}, {0, 0}} {
		_, s, err := Predict(l[0], l[1])
		require.NoError(t, err)
		assert.Equal(t, 1-s.Over25, s.Under25)
		assert.InDelta(t, 1.0, s.Under25+s.Over25, 1e-15)
	}
}

func TestPredictOutcomesMatchMass(t *testing.T) {
	for _, l := range [][2]float64{{0.3, 0.3}, {1.37, 1.04}, {2.2, 3.1}, {5, 5}} {
		dist, s, err := Predict(l[0], l[1])
		require.NoError(t, err)
		total := s.Home + s.Draw + s.Away
		assert.LessOrEqual(t, total, 1.0+1e-12)
		assert.InDelta(t, dist.Mass(), total, 1e-12)
		for _, p := range []float64{s.Home, s.Draw, s.Away, s.Over25, s.Under25, s.BTTS} {
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}
	}
}

func TestPredictConvergesAsCapGrows(t *testing.T) {
	for _, lambda := range []float64{0.3, 1.0, 2.0, 3.0, 5.0} {
		prev := 0.0
		for _, maxGoals := range []int{4, 8, 12, 20} {
			_, s, err := NewEngine(maxGoals).Predict(lambda, lambda)
			require.NoError(t, err)
			total := s.Home + s.Draw + s.Away
			assert.GreaterOrEqual(t, total, prev-1e-15, "lambda=%v cap=%d", lambda, maxGoals)
			prev = total
		}
		assert.InDelta(t, 1.0, prev, 1e-6, "lambda=%v", lambda)
	}

	// at the default cap the truncated tail is small for realistic rates
	_, s, err := Predict(1.5, 1.2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Home+s.Draw+s.Away, 1e-4)
}

func TestPredictTopIsStableOnTies(t *testing.T) {
	// with both rates at 1, P(0)=P(1) so 0-0, 0-1, 1-0 and 1-1 are exactly equal
	_, s, err := Predict(1.0, 1.0)
	require.NoError(t, err)
	got := make([][2]int, 0, len(s.Top))
	for _, sc := range s.Top {
		got = append(got, [2]int{sc.Home, sc.Away})
	}
	assert.Equal(t, [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {0, 2}}, got)
	assert.Equal(t, s.Top[0].Prob, s.Top[3].Prob)

	for i := 1; i < len(s.Top); i++ {
		assert.GreaterOrEqual(t, s.Top[i-1].Prob, s.Top[i].Prob)
	}
}

func TestPredictIsDeterministic(t *testing.T) {
	d1, s1, err := Predict(1.8, 0.9)
	require.NoError(t, err)
	d2, s2, err := Predict(1.8, 0.9)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.Equal(t, d1, d2)
}

func TestPredictAtCalibrationFloor(t *testing.T) {
	_, s, err := Predict(MinExpectedGoals, MinExpectedGoals)
	require.NoError(t, err)
	assert.Greater(t, s.Draw, s.Home)
	assert.Greater(t, s.Draw, s.Away)
	assert.InDelta(t, s.Home, s.Away, 1e-15)
	assert.Equal(t, "X", Decide(s).Result.Label)
	assert.Equal(t, Scoreline{Home: 0, Away: 0, Prob: s.Top[0].Prob}, s.Top[0])
}

func TestPredictRejectsInvalidRates(t *testing.T) {
	cases := []struct {
		name       string
		home, away float64
		side       string
	}{
		{"negative home", -0.1, 1, "home"},
		{"nan away", 1, math.NaN(), "away"},
		{"inf home", math.Inf(1), 1, "home"},
		{"neg inf away", 1, math.Inf(-1), "away"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dist, s, err := Predict(tc.home, tc.away)
			require.Error(t, err)
			assert.Nil(t, dist)
			assert.Nil(t, s)
			var rateErr *InvalidRateError
			require.True(t, errors.As(err, &rateErr))
			assert.Equal(t, tc.side, rateErr.Side)
		})
	}
}

func TestPredictZeroRateIsDegenerate(t *testing.T) {
	dist, s, err := Predict(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, dist.At(0, 0))
	assert.Equal(t, 1.0, s.Draw)
	assert.Equal(t, 0.0, s.Over25)
	assert.Equal(t, 0.0, s.BTTS)
}

func TestEngineCap(t *testing.T) {
	assert.Equal(t, DefaultMaxGoals, NewEngine(-1).MaxGoals())

	dist, s, err := NewEngine(0).Predict(1.2, 1.1)
	require.NoError(t, err)
	require.Len(t, s.Top, 1)
	assert.Equal(t, 0.0, dist.At(1, 0))
	assert.InDelta(t, math.Exp(-2.3), dist.At(0, 0), 1e-15)

	dist, _, err = NewEngine(20).Predict(1.2, 1.1)
	require.NoError(t, err)
	assert.InDelta(t, PMF(15, 1.2)*PMF(3, 1.1), dist.At(15, 3), 1e-18)
}
