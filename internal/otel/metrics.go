package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce      sync.Once
	suggestionOpsCounter metric.Int64Counter
	routeCounter         metric.Int64Counter
	refreshCounter       metric.Int64Counter
	runDuration          metric.Float64Histogram
	sseConnectionsGauge  metric.Int64ObservableGauge
	sseEventsCounter     metric.Int64Counter
	sseConnections       int64
	sseConnectionsMu     sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times; only runs once.
// Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		suggestionOpsCounter, err = m.Int64Counter("superclaw_suggestion_operations_total", metric.WithDescription("Total suggestion operations (create, transition, edit)"))
		if err != nil {
			return
		}
		routeCounter, err = m.Int64Counter("superclaw_route_decisions_total", metric.WithDescription("Total routing decisions by winning agent"))
		if err != nil {
			return
		}
		refreshCounter, err = m.Int64Counter("superclaw_intel_refreshes_total", metric.WithDescription("Total intel refresh attempts by outcome"))
		if err != nil {
			return
		}
		runDuration, err = m.Float64Histogram("superclaw_overnight_run_duration_seconds", metric.WithDescription("Overnight run duration in seconds"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("superclaw_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("superclaw_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
		if err != nil {
			return
		}
	})
	return err
}

// RecordSuggestionOp records one suggestion operation and the resulting status.
func RecordSuggestionOp(ctx context.Context, op, status string) {
	if suggestionOpsCounter == nil {
		return
	}
	suggestionOpsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		AttrStatus.String(status),
	))
}

// RecordRouteDecision records a routing decision and whether it fell back.
func RecordRouteDecision(ctx context.Context, agentID string, fallback bool) {
	if routeCounter == nil {
		return
	}
	routeCounter.Add(ctx, 1, metric.WithAttributes(
		AttrAgent.String(agentID),
		attribute.Bool("fallback", fallback),
	))
}

// RecordRefresh records an intel refresh attempt outcome (run, skipped, failed).
func RecordRefresh(ctx context.Context, outcome string) {
	if refreshCounter == nil {
		return
	}
	refreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRunDuration records a finished overnight run.
func RecordRunDuration(ctx context.Context, status string, duration time.Duration) {
	if runDuration == nil {
		return
	}
	runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrStatus.String(status)))
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}

// SuggestionCountFunc returns suggestion counts by status for the gauge callback.
type SuggestionCountFunc func() map[string]int64

// InitMetricsWithSuggestionCount creates instruments and optionally registers a
// callback reporting suggestion counts by status. If countFunc is nil, the
// gauge is not reported.
func InitMetricsWithSuggestionCount(ctx context.Context, countFunc SuggestionCountFunc) error {
	if err := InitMetrics(ctx); err != nil {
		return err
	}
	if countFunc == nil {
		return nil
	}
	m := Meter()
	gauge, err := m.Float64ObservableGauge("superclaw_suggestions_total", metric.WithDescription("Number of suggestions by status"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		for status, n := range countFunc() {
			o.ObserveFloat64(gauge, float64(n), metric.WithAttributes(AttrStatus.String(status)))
		}
		return nil
	}, gauge)
	return err
}
