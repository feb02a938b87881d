package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	sessionkit "github.com/verinews/sessionkit"
	"github.com/verinews/sessionkit/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// metricsSource is satisfied by *sessionkit.SessionStore.
type metricsSource interface {
	MetricsSnapshot() sessionkit.MetricsSnapshot
	AuditDropped() uint64
}

// OTelExporter publishes the session counters (logins, logouts, restores,
// cross-tab syncs), the gateway latency histogram, and the audit drop count
// as observable OpenTelemetry instruments. A snapshot is taken inside the
// meter callback, so the store pays collection cost only when a reader
// actually collects.
type OTelExporter struct {
	registration metric.Registration
}

// NewOTelExporter registers instruments reading from a [sessionkit.SessionStore].
func NewOTelExporter(meter metric.Meter, store *sessionkit.SessionStore) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, store)
}

// NewOTelExporterFromSource registers instruments reading from any snapshot
// source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	var observables []metric.Observable

	counters := make(map[sessionkit.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs))
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		counters[def.ID] = ins
		observables = append(observables, ins)
	}

	// Each latency series maps onto one gauge per cumulative bucket plus a
	// trailing count gauge, mirroring the Prometheus exposition shape.
	type latencySeries struct {
		id     sessionkit.MetricID
		gauges []metric.Int64ObservableGauge
	}
	series := make([]latencySeries, 0, len(internaldefs.HistogramDefs))
	for _, def := range internaldefs.HistogramDefs {
		s := latencySeries{id: def.ID}
		for _, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			g, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			s.gauges = append(s.gauges, g)
			observables = append(observables, g)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s_count: %w", def.Name, err)
		}
		s.gauges = append(s.gauges, count)
		observables = append(observables, count)
		series = append(series, s)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"sessionkit_audit_dropped_total",
		metric.WithDescription("Audit events dropped under dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := source.MetricsSnapshot()
		for id, ins := range counters {
			observer.ObserveInt64(ins, int64(snapshot.Counters[id]))
		}
		for _, s := range series {
			cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[s.id]))
			for i, g := range s.gauges[:len(cumulative)] {
				observer.ObserveInt64(g, int64(cumulative[i]))
			}
			observer.ObserveInt64(s.gauges[len(s.gauges)-1], int64(cumulative[len(cumulative)-1]))
		}
		observer.ObserveInt64(auditDropped, int64(source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	return &OTelExporter{registration: registration}, nil
}

// Close unregisters the callback. Instruments stay defined on the meter;
// they simply stop observing.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
