package domain

import (
	"math"
	"time"
)

// CountAboveThreshold returns the number of observations strictly warmer than
// threshold. An observation equal to threshold is not counted. The result for
// a NaN or infinite threshold is unspecified; callers validate input first.
func CountAboveThreshold(s TemperatureSeries, threshold float64) int {
	n := 0
	s.each(func(o Observation) {
		if o.Temperature > threshold {
			n++
		}
	})
	return n
}

// CountAllAboveThreshold counts every series against the same threshold,
// keyed by label.
func CountAllAboveThreshold(threshold float64, series ...TemperatureSeries) map[string]int {
	out := make(map[string]int, len(series))
	for _, s := range series {
		out[s.label] = CountAboveThreshold(s, threshold)
	}
	return out
}

// Summary gives descriptive statistics of a series.
type Summary struct {
	Label string    `json:"label"`
	Count int       `json:"count"`
	Min   float64   `json:"min_c"`
	Max   float64   `json:"max_c"`
	Mean  float64   `json:"mean_c"`
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// Summarize computes min, max and mean of s. An empty series yields a
// Summary with only the label set.
func Summarize(s TemperatureSeries) Summary {
	sum := Summary{Label: s.label, Count: len(s.observations)}
	if sum.Count == 0 {
		return sum
	}
	sum.Min, sum.Max = math.Inf(1), math.Inf(-1)
	total := 0.0
	s.each(func(o Observation) {
		sum.Min = math.Min(sum.Min, o.Temperature)
		sum.Max = math.Max(sum.Max, o.Temperature)
		total += o.Temperature
	})
	sum.Mean = total / float64(sum.Count)
	sum.First = s.observations[0].Timestamp
	sum.Last = s.observations[sum.Count-1].Timestamp
	return sum
}
