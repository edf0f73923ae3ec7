package domain

import (
	"sort"
	"time"
)

// ComparisonRow holds the values of every series present at one timestamp.
// A label missing from Values means that series has no observation there.
type ComparisonRow struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// ComparisonTable is the outer join of several series on timestamp.
type ComparisonTable struct {
	labels []string
	rows   []ComparisonRow
}

// Labels returns the column labels in the order the series were given.
func (t ComparisonTable) Labels() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Len returns the number of rows.
func (t ComparisonTable) Len() int { return len(t.rows) }

// Rows returns a deep copy of the rows in timestamp order.
func (t ComparisonTable) Rows() []ComparisonRow {
	out := make([]ComparisonRow, len(t.rows))
	for i, r := range t.rows {
		vals := make(map[string]float64, len(r.Values))
		for k, v := range r.Values {
			vals[k] = v
		}
		out[i] = ComparisonRow{Timestamp: r.Timestamp, Values: vals}
	}
	return out
}

// Value returns the temperature of label at ts.
func (t ComparisonTable) Value(ts time.Time, label string) (float64, bool) {
	ts = ts.UTC()
	i := sort.Search(len(t.rows), func(i int) bool {
		return !t.rows[i].Timestamp.Before(ts)
	})
	if i == len(t.rows) || !t.rows[i].Timestamp.Equal(ts) {
		return 0, false
	}
	v, ok := t.rows[i].Values[label]
	return v, ok
}

// Align builds the outer join of series over the union of their timestamps.
// Gaps are left empty rather than filled. When two series share a label the
// later one wins at timestamps both cover.
func Align(series ...TemperatureSeries) ComparisonTable {
	var labels []string
	seenLabel := make(map[string]bool, len(series))
	byTime := make(map[time.Time]map[string]float64)

	for _, s := range series {
		if !seenLabel[s.label] {
			seenLabel[s.label] = true
			labels = append(labels, s.label)
		}
		s.each(func(o Observation) {
			row, ok := byTime[o.Timestamp]
			if !ok {
				row = make(map[string]float64, len(series))
				byTime[o.Timestamp] = row
			}
			row[s.label] = o.Temperature
		})
	}

	rows := make([]ComparisonRow, 0, len(byTime))
	for ts, vals := range byTime {
		rows = append(rows, ComparisonRow{Timestamp: ts, Values: vals})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	return ComparisonTable{labels: labels, rows: rows}
}

// Select returns a table restricted to the given labels, dropping rows left
// without any value. Unknown labels are ignored.
func (t ComparisonTable) Select(labels ...string) ComparisonTable {
	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}
	var kept []string
	for _, l := range t.labels {
		if want[l] {
			kept = append(kept, l)
		}
	}
	var rows []ComparisonRow
	for _, r := range t.rows {
		vals := make(map[string]float64, len(kept))
		for _, l := range kept {
			if v, ok := r.Values[l]; ok {
				vals[l] = v
			}
		}
		if len(vals) > 0 {
			rows = append(rows, ComparisonRow{Timestamp: r.Timestamp, Values: vals})
		}
	}
	return ComparisonTable{labels: kept, rows: rows}
}

// FilterSeriesByMonth keeps the observations whose timestamp falls in month.
func FilterSeriesByMonth(s TemperatureSeries, month int) (TemperatureSeries, error) {
	if month < 1 || month > 12 {
		return TemperatureSeries{}, invalidMonth(month)
	}
	var kept []Observation
	s.each(func(o Observation) {
		if o.Timestamp.Month() == time.Month(month) {
			kept = append(kept, o)
		}
	})
	return newSortedSeries(s.label, kept), nil
}

// FilterTableByMonth keeps the rows whose timestamp falls in month.
func FilterTableByMonth(t ComparisonTable, month int) (ComparisonTable, error) {
	if month < 1 || month > 12 {
		return ComparisonTable{}, invalidMonth(month)
	}
	var rows []ComparisonRow
	for _, r := range t.Rows() {
		if r.Timestamp.Month() == time.Month(month) {
			rows = append(rows, r)
		}
	}
	return ComparisonTable{labels: t.Labels(), rows: rows}, nil
}
