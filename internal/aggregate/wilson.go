package aggregate

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultZ is the two-sided 95% normal critical value.
const DefaultZ = 1.96

// Interval is a point estimate with its confidence bounds, rounded to 4 decimals.
type Interval struct {
	Point float64
	Low   float64
	High  float64
}

// WilsonInterval computes the Wilson score interval of a binomial proportion.
// Zero trials yield the zero Interval. successes > trials cannot be estimated;
// the point is reported as is and the bounds span [0,1].
func WilsonInterval(successes, trials int, z float64) Interval {
	if trials <= 0 || successes < 0 {
		return Interval{}
	}
	n := float64(trials)
	p := float64(successes) / n
	if successes > trials {
		return Interval{Point: round4(p), Low: 0, High: 1}
	}

	z2 := z * z
	denom := 1 + z2/n
	center := (p + z2/(2*n)) / denom
	margin := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n)) / denom

	return Interval{
		Point: round4(p),
		Low:   round4(math.Max(0, center-margin)),
		High:  round4(math.Min(1, center+margin)),
	}
}

// ZForConfidence returns the two-sided critical value for a confidence level.
// 0.95 keeps the conventional 1.96.
func ZForConfidence(level float64) float64 {
	if level == 0.95 || level <= 0 || level >= 1 {
		return DefaultZ
	}
	return distuv.UnitNormal.Quantile((1 + level) / 2)
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
