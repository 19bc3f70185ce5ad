package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("alert_type", "leak_detection"),
		attribute.String("connection_id", "456"),
		attribute.String("severity", "high"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "connection_id" {
			t.Fatalf("expected connection_id to be dropped")
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordBillCreated(context.Background(), "standard")
	m.RecordRuleFailure(context.Background(), "leak_detection")

	NewNoop().RecordAlertRaised(context.Background(), "high_consumption", "medium")
}
