package poisson

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultMaxGoals is the per-side goal cap of the scoreline grid (0..8 goals)
	DefaultMaxGoals = 8
	// TopScorelines is the number of exact scorelines reported in a Summary
	TopScorelines = 5
	// overLine is the total goals line for the over/under market
	overLine = 2
)

// Scoreline is a single exact score and its probability
type Scoreline struct {
	Home int     `json:"home"`
	Away int     `json:"away"`
	Prob float64 `json:"prob"`
}

// Distribution holds the joint probability of every scoreline from 0-0 to MaxGoals-MaxGoals
// under the assumption that home and away goals are independent Poisson variables.
// Probabilities are stored row major, home goals first.
type Distribution struct {
	LambdaHome float64
	LambdaAway float64
	MaxGoals   int
	cells      []float64
}

// At returns P(home=h, away=a), or 0 outside the grid
func (d *Distribution) At(h, a int) float64 {
	if h < 0 || a < 0 || h > d.MaxGoals || a > d.MaxGoals {
		return 0
	}
	return d.cells[h*(d.MaxGoals+1)+a]
}

// Mass is the total probability covered by the truncated grid (<= 1)
func (d *Distribution) Mass() float64 {
	return floats.Sum(d.cells)
}

// Summary aggregates a Distribution into the probabilities a punter cares about
type Summary struct {
	Home    float64     `json:"home"`
	Draw    float64     `json:"draw"`
	Away    float64     `json:"away"`
	Over25  float64     `json:"over25"`
	Under25 float64     `json:"under25"`
	BTTS    float64     `json:"btts"`
	Top     []Scoreline `json:"top"`
}

// Engine computes scoreline distributions with a fixed goal cap.
// An Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	maxGoals int
}

// NewEngine returns an Engine with the given per-side goal cap.
// A negative cap falls back to DefaultMaxGoals.
func NewEngine(maxGoals int) *Engine {
	if maxGoals < 0 {
		maxGoals = DefaultMaxGoals
	}
	return &Engine{maxGoals: maxGoals}
}

// MaxGoals returns the per-side goal cap
func (e *Engine) MaxGoals() int {
	return e.maxGoals
}

var defaultEngine = NewEngine(DefaultMaxGoals)

// Predict runs the default engine (cap of 8 goals per side)
func Predict(lambdaHome, lambdaAway float64) (*Distribution, *Summary, error) {
	return defaultEngine.Predict(lambdaHome, lambdaAway)
}

// Predict builds the joint scoreline distribution for the two expected goal rates
// and summarises it. A negative, NaN or infinite rate yields an *InvalidRateError.
func (e *Engine) Predict(lambdaHome, lambdaAway float64) (*Distribution, *Summary, error) {
	if err := checkRate("home", lambdaHome); err != nil {
		return nil, nil, err
	}
	if err := checkRate("away", lambdaAway); err != nil {
		return nil, nil, err
	}

	n := e.maxGoals + 1
	homePMF := pmfTable(lambdaHome, e.maxGoals)
	awayPMF := pmfTable(lambdaAway, e.maxGoals)

	dist := &Distribution{
		LambdaHome: lambdaHome,
		LambdaAway: lambdaAway,
		MaxGoals:   e.maxGoals,
		cells:      make([]float64, n*n),
	}
	scores := make([]Scoreline, 0, n*n)
	summary := &Summary{}

	for h := 0; h < n; h++ {
		for a := 0; a < n; a++ {
			p := homePMF[h] * awayPMF[a]
			dist.cells[h*n+a] = p
			scores = append(scores, Scoreline{Home: h, Away: a, Prob: p})

			switch {
			case h > a:
				summary.Home += p
			case h == a:
				summary.Draw += p
			default:
				summary.Away += p
			}
			if h+a > overLine {
				summary.Over25 += p
			}
			if h > 0 && a > 0 {
				summary.BTTS += p
			}
		}
	}
	summary.Under25 = 1 - summary.Over25

	// stable, so equal probabilities keep scan order (home asc, then away asc)
	slices.SortStableFunc(scores, func(x, y Scoreline) int {
		return cmp.Compare(y.Prob, x.Prob)
	})
	top := min(TopScorelines, len(scores))
	summary.Top = slices.Clone(scores[:top])

	return dist, summary, nil
}

// PMF returns P(X = k) for X ~ Poisson(lambda), computed in log space.
// lambda <= 0 is treated as a distribution with all mass on zero.
func PMF(k int, lambda float64) float64 {
	if k < 0 {
		return 0
	}
	if lambda <= 0 {
		if k == 0 {
			return 1
		}
		return 0
	}
	logP := -lambda + float64(k)*math.Log(lambda)
	for i := 1; i <= k; i++ {
		logP -= math.Log(float64(i))
	}
	return math.Exp(logP)
}

// pmfTable returns PMF(0..maxGoals, lambda)
func pmfTable(lambda float64, maxGoals int) []float64 {
	probs := make([]float64, maxGoals+1)
	for k := range probs {
		probs[k] = PMF(k, lambda)
	}
	return probs
}
