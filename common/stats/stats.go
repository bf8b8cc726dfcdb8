// Package stats provides a minimal wrapper around go-metrics for the
// fair-share core: a StatsReceiver that can be scoped and passed down to
// the policy server and the fairness controller, rendered as JSON for the
// admin/metrics.json endpoint. Trimmed from the teacher's common/stats:
// finagle-style percentile marshaling is kept; the latched-snapshot
// goroutine and everything specific to bundlestore/worker metric names
// are dropped.
package stats

import (
	"encoding/json"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rcrowley/go-metrics"
)

// Time is overridable for tests that need deterministic latency samples.
var Time StatsTime = DefaultStatsTime()

// StatsRegistry mirrors the subset of a go-metrics registry this package
// needs: get-or-register, unregister, and iteration.
type StatsRegistry interface {
	GetOrRegister(string, interface{}) interface{}
	Unregister(string)
	Each(func(string, interface{}))
}

// StatsReceiver is the scoped handle the policy server and fairness
// controller hold on to; every metric name documented in SPEC_FULL.md §2.4
// is created through one of these methods.
type StatsReceiver interface {
	Scope(scope ...string) StatsReceiver
	Counter(name ...string) Counter
	Gauge(name ...string) Gauge
	GaugeFloat(name ...string) GaugeFloat
	Latency(name ...string) Latency
	Remove(name ...string)
	Render(pretty bool) []byte
}

// DefaultStatsReceiver returns an unlatched receiver backed by a fresh
// go-metrics registry: Render reads the current values and resets nothing,
// so counters and latency samples accumulate across Render calls.
func DefaultStatsReceiver() StatsReceiver {
	return &defaultStatsReceiver{registry: metrics.NewRegistry(), precision: time.Millisecond}
}

// NilStatsReceiver ignores every call; used as the zero-config default so
// callers never need a nil check.
func NilStatsReceiver() StatsReceiver {
	return &nilStatsReceiver{}
}

type defaultStatsReceiver struct {
	registry  StatsRegistry
	precision time.Duration
	scope     []string
}

func (s *defaultStatsReceiver) Scope(scope ...string) StatsReceiver {
	return &defaultStatsReceiver{s.registry, s.precision, s.scoped(scope...)}
}

func (s *defaultStatsReceiver) Counter(name ...string) Counter {
	return s.registry.GetOrRegister(s.scopedName(name...), newMetricCounter).(Counter)
}

func (s *defaultStatsReceiver) Gauge(name ...string) Gauge {
	return s.registry.GetOrRegister(s.scopedName(name...), newMetricGauge).(Gauge)
}

func (s *defaultStatsReceiver) GaugeFloat(name ...string) GaugeFloat {
	return s.registry.GetOrRegister(s.scopedName(name...), newMetricGaugeFloat).(GaugeFloat)
}

func (s *defaultStatsReceiver) Latency(name ...string) Latency {
	return s.registry.GetOrRegister(s.scopedName(name...), newLatency().Precision(s.precision)).(Latency)
}

func (s *defaultStatsReceiver) Remove(name ...string) {
	s.registry.Unregister(s.scopedName(name...))
}

func (s *defaultStatsReceiver) Render(pretty bool) []byte {
	data := make(map[string]interface{})
	s.registry.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case Counter:
			data[name] = m.Count()
		case Gauge:
			data[name] = m.Value()
		case GaugeFloat:
			data[name] = m.Value()
		case Latency:
			marshalLatency(data, name, m)
		default:
			log.WithField("name", name).Warn("stats: unrecognized instrument")
		}
	})
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(data, "", "  ")
	} else {
		b, err = json.Marshal(data)
	}
	if err != nil {
		panic("stats: registry cannot be marshaled: " + err.Error())
	}
	return b
}

func marshalLatency(data map[string]interface{}, name string, l Latency) {
	h := l.Capture()
	p := float64(h.GetPrecision())
	if p == 0 {
		p = 1
	}
	data[name+".avg"] = h.Mean() / p
	data[name+".count"] = h.Count()
	data[name+".p50"] = h.Percentiles([]float64{0.5})[0] / p
	data[name+".p99"] = h.Percentiles([]float64{0.99})[0] / p
}

func (s *defaultStatsReceiver) scoped(scope ...string) []string {
	for i, e := range scope {
		scope[i] = strings.ReplaceAll(e, "/", "_SLASH_")
	}
	out := make([]string, 0, len(s.scope)+len(scope))
	out = append(out, s.scope...)
	out = append(out, scope...)
	return out
}

func (s *defaultStatsReceiver) scopedName(scope ...string) string {
	return strings.Join(s.scoped(scope...), "/")
}

type nilStatsReceiver struct{}

func (s *nilStatsReceiver) Scope(scope ...string) StatsReceiver { return s }
func (s *nilStatsReceiver) Counter(name ...string) Counter      { return &metricCounter{&metrics.NilCounter{}} }
func (s *nilStatsReceiver) Gauge(name ...string) Gauge          { return &metricGauge{&metrics.NilGauge{}} }
func (s *nilStatsReceiver) GaugeFloat(name ...string) GaugeFloat {
	return &metricGaugeFloat{&metrics.NilGaugeFloat64{}}
}
func (s *nilStatsReceiver) Latency(name ...string) Latency { return newNilLatency() }
func (s *nilStatsReceiver) Remove(name ...string)          {}
func (s *nilStatsReceiver) Render(pretty bool) []byte      { return []byte("{}") }

// Counter mirrors go-metrics' Counter.
type Counter interface {
	Count() int64
	Inc(int64)
}
type metricCounter struct{ metrics.Counter }

func newMetricCounter() Counter { return &metricCounter{metrics.NewCounter()} }

// Gauge mirrors go-metrics' Gauge.
type Gauge interface {
	Update(int64)
	Value() int64
}
type metricGauge struct{ metrics.Gauge }

func newMetricGauge() Gauge { return &metricGauge{metrics.NewGauge()} }

// GaugeFloat mirrors go-metrics' GaugeFloat64.
type GaugeFloat interface {
	Update(float64)
	Value() float64
}
type metricGaugeFloat struct{ metrics.GaugeFloat64 }

func newMetricGaugeFloat() GaugeFloat { return &metricGaugeFloat{metrics.NewGaugeFloat64()} }

// HistogramView is the read side of a Latency sample set.
type HistogramView interface {
	Mean() float64
	Count() int64
	Percentiles(ps []float64) []float64
}

// Latency records callsite durations. Time() starts the clock; Stop()
// records the elapsed duration since Time() was called.
type Latency interface {
	HistogramView
	Capture() Latency
	Time() Latency
	Stop()
	GetPrecision() time.Duration
	Precision(time.Duration) Latency
}

type metricLatency struct {
	metrics.Histogram
	start     time.Time
	precision time.Duration
}

func newLatency() Latency {
	return &metricLatency{Histogram: metrics.NewHistogram(metrics.NewUniformSample(1000)), precision: time.Nanosecond}
}
func (l *metricLatency) Time() Latency          { l.start = Time.Now(); return l }
func (l *metricLatency) Stop()                  { l.Update(Time.Since(l.start).Nanoseconds()) }
func (l *metricLatency) Capture() Latency       { return &metricLatency{l.Histogram.Snapshot(), l.start, l.precision} }
func (l *metricLatency) GetPrecision() time.Duration { return l.precision }
func (l *metricLatency) Precision(p time.Duration) Latency {
	if p < 1 {
		p = 1
	}
	l.precision = p
	return l
}

type nilLatency struct{}

func newNilLatency() Latency                          { return &nilLatency{} }
func (l *nilLatency) Time() Latency                   { return l }
func (l *nilLatency) Stop()                           {}
func (l *nilLatency) Capture() Latency                { return l }
func (l *nilLatency) GetPrecision() time.Duration     { return time.Nanosecond }
func (l *nilLatency) Precision(time.Duration) Latency { return l }
func (l *nilLatency) Mean() float64                   { return 0 }
func (l *nilLatency) Count() int64                    { return 0 }
func (l *nilLatency) Percentiles(ps []float64) []float64 { return make([]float64, len(ps)) }
