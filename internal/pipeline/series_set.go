package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/couchcryptid/epw-climate-service/internal/domain"
)

// ErrUnknownSeries is returned when a label is not in the set.
var ErrUnknownSeries = errors.New("unknown series")

// SeriesSet holds loaded series by label, in load order.
type SeriesSet struct {
	mu      sync.RWMutex
	order   []string
	byLabel map[string]domain.TemperatureSeries
}

func NewSeriesSet() *SeriesSet {
	return &SeriesSet{byLabel: make(map[string]domain.TemperatureSeries)}
}

// Put stores s under its label, replacing any series with the same label in
// place. It reports whether a series was replaced.
func (ss *SeriesSet) Put(s domain.TemperatureSeries) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	_, exists := ss.byLabel[s.Label()]
	if !exists {
		ss.order = append(ss.order, s.Label())
	}
	ss.byLabel[s.Label()] = s
	return exists
}

func (ss *SeriesSet) Get(label string) (domain.TemperatureSeries, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	s, ok := ss.byLabel[label]
	return s, ok
}

func (ss *SeriesSet) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.order)
}

// Labels returns labels in load order.
func (ss *SeriesSet) Labels() []string {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	out := make([]string, len(ss.order))
	copy(out, ss.order)
	return out
}

// All returns every series in load order.
func (ss *SeriesSet) All() []domain.TemperatureSeries {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	out := make([]domain.TemperatureSeries, 0, len(ss.order))
	for _, label := range ss.order {
		out = append(out, ss.byLabel[label])
	}
	return out
}

// Select returns the named series in the order given, or all series when no
// labels are passed. An unknown label fails the whole selection.
func (ss *SeriesSet) Select(labels ...string) ([]domain.TemperatureSeries, error) {
	if len(labels) == 0 {
		return ss.All(), nil
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	out := make([]domain.TemperatureSeries, 0, len(labels))
	for _, label := range labels {
		s, ok := ss.byLabel[label]
		if !ok {
			return nil, fmt.Errorf("%w: %w %q", domain.ErrInvalidArgument, ErrUnknownSeries, label)
		}
		out = append(out, s)
	}
	return out, nil
}
