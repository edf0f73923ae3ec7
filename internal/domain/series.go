package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"time"
)

// Observation is one hourly temperature reading on the nominal-year timeline.
type Observation struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature_c"`
}

// TemperatureSeries is an immutable, timestamp-ordered set of observations
// for one file or scenario. The zero value is an empty, unlabeled series.
type TemperatureSeries struct {
	label        string
	observations []Observation
	fingerprint  string
}

// NewSeries builds a series from observations in any order. Later entries
// win when two observations share a timestamp.
func NewSeries(label string, obs []Observation) TemperatureSeries {
	byTime := make(map[time.Time]float64, len(obs))
	for _, o := range obs {
		byTime[o.Timestamp.UTC()] = o.Temperature
	}
	return newSeriesFromMap(label, byTime)
}

func newSeriesFromMap(label string, byTime map[time.Time]float64) TemperatureSeries {
	sorted := make([]Observation, 0, len(byTime))
	for ts, v := range byTime {
		sorted = append(sorted, Observation{Timestamp: ts, Temperature: v})
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return newSortedSeries(label, sorted)
}

// newSortedSeries takes ownership of obs, which must already be sorted and
// free of duplicate timestamps.
func newSortedSeries(label string, obs []Observation) TemperatureSeries {
	return TemperatureSeries{
		label:        label,
		observations: obs,
		fingerprint:  fingerprint(obs),
	}
}

// Label returns the series name, e.g. "2050 Projection" or an upload's file name.
func (s TemperatureSeries) Label() string { return s.label }

// Len returns the number of observations.
func (s TemperatureSeries) Len() int { return len(s.observations) }

// Fingerprint is a content hash of the timestamp/value pairs. Two series with
// the same data share a fingerprint regardless of label.
func (s TemperatureSeries) Fingerprint() string { return s.fingerprint }

// Observations returns a copy of the observations in timestamp order.
func (s TemperatureSeries) Observations() []Observation {
	out := make([]Observation, len(s.observations))
	copy(out, s.observations)
	return out
}

// At returns the temperature recorded at ts.
func (s TemperatureSeries) At(ts time.Time) (float64, bool) {
	ts = ts.UTC()
	i := sort.Search(len(s.observations), func(i int) bool {
		return !s.observations[i].Timestamp.Before(ts)
	})
	if i < len(s.observations) && s.observations[i].Timestamp.Equal(ts) {
		return s.observations[i].Temperature, true
	}
	return 0, false
}

// WithLabel returns a copy of the series under a different label.
func (s TemperatureSeries) WithLabel(label string) TemperatureSeries {
	s.label = label
	return s
}

// each calls fn for every observation without copying.
func (s TemperatureSeries) each(fn func(Observation)) {
	for _, o := range s.observations {
		fn(o)
	}
}

// fingerprint hashes unix seconds and IEEE-754 bits of each observation.
// Series are always sorted, so equal content yields an equal hash.
func fingerprint(obs []Observation) string {
	h := sha256.New()
	var buf [16]byte
	for _, o := range obs {
		binary.BigEndian.PutUint64(buf[:8], uint64(o.Timestamp.Unix()))
		binary.BigEndian.PutUint64(buf[8:], math.Float64bits(o.Temperature))
		h.Write(buf[:])
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
