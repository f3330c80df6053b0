package poisson

import (
	"fmt"
	"math"
)

// InvalidRateError reports an expected goal rate that cannot parameterise a Poisson distribution
type InvalidRateError struct {
	Side  string // "home" or "away"
	Value float64
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("invalid %s expected goals rate: %v", e.Side, e.Value)
}

// checkRate rejects negative, NaN and infinite rates. Zero is allowed.
func checkRate(side string, lambda float64) error {
	if math.IsNaN(lambda) || math.IsInf(lambda, 0) || lambda < 0 {
		return &InvalidRateError{Side: side, Value: lambda}
	}
	return nil
}
