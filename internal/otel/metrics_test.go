package otel

import (
	"context"
	"testing"
	"time"
)

func TestInitMetricsAndRecorders(t *testing.T) {
	ctx := context.Background()
	_, err := InitMeterProvider(ctx, "metrics-test")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if err := InitMetrics(ctx); err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	RecordSuggestionOp(ctx, "create", "pending")
	RecordSuggestionOp(ctx, "transition", "approved")
	RecordRouteDecision(ctx, "seo", false)
	RecordRouteDecision(ctx, "atlas", true)
	RecordRefresh(ctx, "run")
	RecordRefresh(ctx, "skipped")
	RecordRunDuration(ctx, "completed", 8*time.Hour)
	RecordSSEEvent(ctx)
}

func TestAddSSEConnection_RemoveSSEConnection(t *testing.T) {
	AddSSEConnection()
	AddSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection() // should not go negative
}

func TestInitMetricsWithSuggestionCount(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "count-test")
	err := InitMetricsWithSuggestionCount(ctx, func() map[string]int64 {
		return map[string]int64{"pending": 2, "queued": 1}
	})
	if err != nil {
		t.Fatalf("InitMetricsWithSuggestionCount: %v", err)
	}
}

func TestInitMetricsWithSuggestionCount_nilFunc(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "count-nil-test")
	if err := InitMetricsWithSuggestionCount(ctx, nil); err != nil {
		t.Fatalf("InitMetricsWithSuggestionCount(nil): %v", err)
	}
}
