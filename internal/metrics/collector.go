// Package metrics exposes unit operation counters to Prometheus.
package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/systmms/dsenc/internal/registry"
	"github.com/systmms/dsenc/pkg/encryption"
)

// Entry is one registered unit as seen by the collector.
type Entry struct {
	Alias string
	Type  string
	Unit  encryption.Unit
}

// Source lists the units to report.
type Source interface {
	Entries() []Entry
}

// SourceFunc adapts a function to Source.
type SourceFunc func() []Entry

// Entries calls f.
func (f SourceFunc) Entries() []Entry { return f() }

// RegistrySource reports every unit of r.
func RegistrySource[U encryption.Unit](r *registry.Registry[U]) Source {
	return SourceFunc(func() []Entry {
		snap := r.Snapshot()
		out := make([]Entry, len(snap))
		for i, e := range snap {
			out[i] = Entry{Alias: e.Alias, Type: e.Properties.Type, Unit: e.Unit}
		}
		return out
	})
}

// Collector reads unit stats on every scrape. It never mutates them.
type Collector struct {
	sources []Source

	requests *prometheus.Desc
	errors   *prometheus.Desc
	seconds  *prometheus.Desc
	units    *prometheus.Desc
}

// NewCollector creates a collector whose metric names are prefixed with
// namespace.
func NewCollector(namespace string, sources ...Source) *Collector {
	labels := []string{"alias", "type", "kind"}
	return &Collector{
		sources: sources,
		requests: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "operation", "requests_total"),
			"Total number of operations performed by a unit",
			labels, nil,
		),
		errors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "operation", "errors_total"),
			"Total number of failed operations of a unit",
			labels, nil,
		),
		seconds: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "operation", "processing_seconds_total"),
			"Cumulative processing time of the operations of a unit",
			labels, nil,
		),
		units: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "registered_units"),
			"Number of registered units",
			[]string{"type"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.errors
	ch <- c.seconds
	ch <- c.units
}

type seriesKey struct {
	alias string
	typ   string
	kind  encryption.Kind
}

// Collect implements prometheus.Collector. Units sharing alias and type
// are summed into one series.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	totals := make(map[seriesKey]encryption.OperationStats)
	perType := make(map[string]int)

	for _, src := range c.sources {
		for _, e := range src.Entries() {
			perType[e.Type]++
			for _, r := range e.Unit.Stats() {
				k := seriesKey{alias: e.Alias, typ: e.Type, kind: r.Kind}
				t := totals[k]
				t.Kind = r.Kind
				t.Requests += r.Requests
				t.Errors += r.Errors
				t.TotalProcessingTime += r.TotalProcessingTime
				totals[k] = t
			}
		}
	}

	keys := make([]seriesKey, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].alias != keys[j].alias {
			return keys[i].alias < keys[j].alias
		}
		if keys[i].typ != keys[j].typ {
			return keys[i].typ < keys[j].typ
		}
		return keys[i].kind < keys[j].kind
	})

	for _, k := range keys {
		t := totals[k]
		lv := []string{k.alias, k.typ, string(k.kind)}
		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(t.Requests), lv...)
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(t.Errors), lv...)
		ch <- prometheus.MustNewConstMetric(c.seconds, prometheus.CounterValue, t.TotalProcessingTime.Seconds(), lv...)
	}
	for typ, n := range perType {
		ch <- prometheus.MustNewConstMetric(c.units, prometheus.GaugeValue, float64(n), typ)
	}
}

// Events counts lifecycle events of a running process.
type Events struct {
	Reloads        prometheus.Counter
	ReloadFailures prometheus.Counter
	Rotations      *prometheus.CounterVec
}

// NewEvents registers the lifecycle counters with reg.
func NewEvents(reg prometheus.Registerer, namespace string) *Events {
	factory := promauto.With(reg)
	return &Events{
		Reloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Total number of successful configuration reloads",
		}),
		ReloadFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reload_failures_total",
			Help:      "Total number of configuration reloads that were rejected",
		}),
		Rotations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_rotations_total",
			Help:      "Total number of password file changes detected",
		}, []string{"alias", "event"}),
	}
}
