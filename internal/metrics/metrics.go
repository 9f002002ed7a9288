// Package metrics wires the otel metric SDK the way the teacher's
// common/otel_metrics.go does: a struct of instruments built once at process
// startup via NewRegistry, then threaded into the subsystems that record
// against them. An optional Prometheus exporter (the same pairing the
// teacher uses: go.opentelemetry.io/otel/exporters/prometheus backed by
// github.com/prometheus/client_golang's registry under the hood) exposes
// them for scraping.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Registry holds every counter/histogram recorded by the core subsystems.
type Registry struct {
	provider *sdkmetric.MeterProvider

	TasksScheduled  metric.Int64Counter
	TasksStolen     metric.Int64Counter
	TasksParked     metric.Int64Counter
	RunQueueDepth   metric.Int64UpDownCounter

	PageFetches metric.Int64Counter
	PageFlushes metric.Int64Counter
	PageHits    metric.Int64Counter
	PageMisses  metric.Int64Counter
	PagesResident metric.Int64UpDownCounter

	SocketBytesSent metric.Int64Counter
	SocketBytesRecv metric.Int64Counter
}

// NewRegistry builds a Registry backed by a Prometheus exporter, matching
// the teacher's metric-provider-plus-exporter wiring in common/otel_metrics.go.
func NewRegistry() (*Registry, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("github.com/golibos/libos")

	r := &Registry{provider: provider}

	if r.TasksScheduled, err = meter.Int64Counter("rt.tasks_scheduled"); err != nil {
		return nil, err
	}
	if r.TasksStolen, err = meter.Int64Counter("rt.tasks_stolen"); err != nil {
		return nil, err
	}
	if r.TasksParked, err = meter.Int64Counter("rt.vcpu_parks"); err != nil {
		return nil, err
	}
	if r.RunQueueDepth, err = meter.Int64UpDownCounter("rt.run_queue_depth"); err != nil {
		return nil, err
	}
	if r.PageFetches, err = meter.Int64Counter("pagecache.fetches"); err != nil {
		return nil, err
	}
	if r.PageFlushes, err = meter.Int64Counter("pagecache.flushes"); err != nil {
		return nil, err
	}
	if r.PageHits, err = meter.Int64Counter("pagecache.hits"); err != nil {
		return nil, err
	}
	if r.PageMisses, err = meter.Int64Counter("pagecache.misses"); err != nil {
		return nil, err
	}
	if r.PagesResident, err = meter.Int64UpDownCounter("pagecache.resident_pages"); err != nil {
		return nil, err
	}
	if r.SocketBytesSent, err = meter.Int64Counter("socket.bytes_sent"); err != nil {
		return nil, err
	}
	if r.SocketBytesRecv, err = meter.Int64Counter("socket.bytes_received"); err != nil {
		return nil, err
	}

	return r, nil
}

// Shutdown flushes and stops the underlying meter provider.
func (r *Registry) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

// Noop returns a Registry whose instruments are all no-ops, for tests and
// components that don't want to pay for a real exporter — the same
// escape hatch the teacher's common/noop_metrics.go provides.
func Noop() *Registry {
	meter := sdkmetric.NewMeterProvider().Meter("noop")
	r := &Registry{}
	r.TasksScheduled, _ = meter.Int64Counter("rt.tasks_scheduled")
	r.TasksStolen, _ = meter.Int64Counter("rt.tasks_stolen")
	r.TasksParked, _ = meter.Int64Counter("rt.vcpu_parks")
	r.RunQueueDepth, _ = meter.Int64UpDownCounter("rt.run_queue_depth")
	r.PageFetches, _ = meter.Int64Counter("pagecache.fetches")
	r.PageFlushes, _ = meter.Int64Counter("pagecache.flushes")
	r.PageHits, _ = meter.Int64Counter("pagecache.hits")
	r.PageMisses, _ = meter.Int64Counter("pagecache.misses")
	r.PagesResident, _ = meter.Int64UpDownCounter("pagecache.resident_pages")
	r.SocketBytesSent, _ = meter.Int64Counter("socket.bytes_sent")
	r.SocketBytesRecv, _ = meter.Int64Counter("socket.bytes_received")
	return r
}
