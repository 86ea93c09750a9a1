// Package stats registers and exposes the reconciliation core's runtime
// counters and latencies, playing the role the teacher's stats package plays
// for a storage target: one place where every metric is named and
// registered, with a single dotted-name convention.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Naming convention (kept from the teacher's stats package):
//  -> "*.n"  - counter
//  -> "*.ns" - latency
//  -> "*.size" - size/count gauge
const (
	EventsConsumedCount  = "events.consumed.n"
	EventsAppliedCount   = "events.applied.n"
	EventsDecodeErrCount = "events.decode_err.n"
	EventsNackedCount    = "events.nacked.n"

	CommandsIssuedCount = "commands.issued.n"
	CommandsFailedCount = "commands.failed.n"
	CommandsNackedCount = "commands.nacked.n"

	ScalerReconcileLatency = "scaler.reconcile.ns"
	ScalerReconcileErrCount = "scaler.reconcile.err.n"

	BackoffSuppressedCount = "backoff.suppressed.n"
	BackoffExpiredCount    = "backoff.expired.n"

	ReapWarnedCount  = "reap.warned.n"
	ReapRemovedCount = "reap.removed.n"

	ManifestsActiveSize = "manifests.active.size"
)

// Tracker exposes the counters and histograms the core updates as it
// processes events and commands. One Tracker per process; Prometheus scrapes
// it via its http.Handler (wired at the metrics endpoint in cmd/).
type Tracker struct {
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
	gauges     map[string]prometheus.Gauge
	reg        *prometheus.Registry
}

func NewTracker() *Tracker {
	t := &Tracker{
		counters:   make(map[string]prometheus.Counter, 16),
		histograms: make(map[string]prometheus.Histogram, 4),
		gauges:     make(map[string]prometheus.Gauge, 4),
		reg:        prometheus.NewRegistry(),
	}
	t.regCounter(EventsConsumedCount)
	t.regCounter(EventsAppliedCount)
	t.regCounter(EventsDecodeErrCount)
	t.regCounter(EventsNackedCount)
	t.regCounter(CommandsIssuedCount)
	t.regCounter(CommandsFailedCount)
	t.regCounter(CommandsNackedCount)
	t.regCounter(ScalerReconcileErrCount)
	t.regCounter(BackoffSuppressedCount)
	t.regCounter(BackoffExpiredCount)
	t.regCounter(ReapWarnedCount)
	t.regCounter(ReapRemovedCount)
	t.regHistogram(ScalerReconcileLatency)
	t.regGauge(ManifestsActiveSize)
	return t
}

func promName(name string) string {
	out := make([]byte, 0, len(name)+16)
	out = append(out, "lattice_controller_"...)
	for _, c := range name {
		if c == '.' {
			out = append(out, '_')
			continue
		}
		out = append(out, byte(c))
	}
	return string(out)
}

func (t *Tracker) regCounter(name string) {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: promName(name)})
	t.reg.MustRegister(c)
	t.counters[name] = c
}

func (t *Tracker) regHistogram(name string) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    promName(name),
		Buckets: prometheus.ExponentialBuckets(1e6, 2, 16), // 1ms .. ~33s, in ns
	})
	t.reg.MustRegister(h)
	t.histograms[name] = h
}

func (t *Tracker) regGauge(name string) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: promName(name)})
	t.reg.MustRegister(g)
	t.gauges[name] = g
}

// Inc increments a registered counter by 1; panics on an unregistered name,
// the same "must register before use" discipline as the teacher's tracker.
func (t *Tracker) Inc(name string) {
	c, ok := t.counters[name]
	if !ok {
		panic("stats: unregistered counter " + name)
	}
	c.Inc()
}

func (t *Tracker) Add(name string, n float64) {
	c, ok := t.counters[name]
	if !ok {
		panic("stats: unregistered counter " + name)
	}
	c.Add(n)
}

func (t *Tracker) Observe(name string, d time.Duration) {
	h, ok := t.histograms[name]
	if !ok {
		panic("stats: unregistered histogram " + name)
	}
	h.Observe(float64(d.Nanoseconds()))
}

func (t *Tracker) SetGauge(name string, v float64) {
	g, ok := t.gauges[name]
	if !ok {
		panic("stats: unregistered gauge " + name)
	}
	g.Set(v)
}

// Registry exposes the underlying Prometheus registry for wiring to an
// http.Handler in the process bootstrap.
func (t *Tracker) Registry() *prometheus.Registry { return t.reg }
