// Package metrics accumulates scalar training and rollout statistics.
package metrics

import "math"

type Metric interface {
	Name() string
	Observe(v float64)
	Value() float64
	Reset()
}

// Mean is the running average; NaN observations propagate.
type Mean struct {
	name    string
	total   float64
	samples int
}

func NewMean(name string) *Mean {
	return &Mean{name: name}
}

func (m *Mean) Name() string { return m.name }

func (m *Mean) Observe(v float64) {
	m.total += v
	m.samples++
}

func (m *Mean) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.total / float64(m.samples)
}

func (m *Mean) Count() int { return m.samples }

func (m *Mean) Reset() {
	m.total = 0
	m.samples = 0
}

type Last struct {
	name  string
	value float64
}

func NewLast(name string) *Last {
	return &Last{name: name}
}

func (l *Last) Name() string      { return l.name }
func (l *Last) Observe(v float64) { l.value = v }
func (l *Last) Value() float64    { return l.value }
func (l *Last) Reset()            { l.value = 0 }

// Min tracks the smallest finite observation.
type Min struct {
	name  string
	value float64
}

func NewMin(name string) *Min {
	return &Min{name: name, value: math.Inf(1)}
}

func (m *Min) Name() string { return m.name }

func (m *Min) Observe(v float64) {
	if !math.IsNaN(v) && v < m.value {
		m.value = v
	}
}

func (m *Min) Value() float64 { return m.value }
func (m *Min) Reset()         { m.value = math.Inf(1) }

// Snapshot collects the current value of every metric by name.
func Snapshot(ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
