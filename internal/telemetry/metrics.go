package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const notificationMeterName = "github.com/comaslimpio/notification-api/internal/proximity"

// NotificationMetrics holds the instruments recorded by the proximity pipeline.
// A nil *NotificationMetrics records nothing.
type NotificationMetrics struct {
	updatesTotal    metric.Int64Counter
	outcomesTotal   metric.Int64Counter
	fanOutDuration  metric.Float64Histogram
	citizensPerScan metric.Int64Histogram
}

// NewNotificationMetrics creates the pipeline instruments on the global meter provider.
func NewNotificationMetrics() (*NotificationMetrics, error) {
	meter := otel.Meter(notificationMeterName)

	updatesTotal, err := meter.Int64Counter(
		"location_update.total",
		metric.WithDescription("Total number of processed truck location updates"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}

	outcomesTotal, err := meter.Int64Counter(
		"notification.outcome.total",
		metric.WithDescription("Per-citizen notification outcomes"),
		metric.WithUnit("{citizen}"),
	)
	if err != nil {
		return nil, err
	}

	fanOutDuration, err := meter.Float64Histogram(
		"notification.fanout.duration",
		metric.WithDescription("Duration of the per-citizen fan-out in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	citizensPerScan, err := meter.Int64Histogram(
		"notification.fanout.citizens",
		metric.WithDescription("Number of subscribed citizens evaluated per update"),
		metric.WithUnit("{citizen}"),
	)
	if err != nil {
		return nil, err
	}

	return &NotificationMetrics{
		updatesTotal:    updatesTotal,
		outcomesTotal:   outcomesTotal,
		fanOutDuration:  fanOutDuration,
		citizensPerScan: citizensPerScan,
	}, nil
}

// RecordUpdate records one processed location update with its result kind.
func (m *NotificationMetrics) RecordUpdate(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.updatesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordOutcome records one citizen outcome. An empty reason means sent.
func (m *NotificationMetrics) RecordOutcome(ctx context.Context, sent bool, reason string) {
	if m == nil {
		return
	}
	m.outcomesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("sent", sent),
		attribute.String("reason", reason),
	))
}

// RecordFanOut records the duration and size of a fan-out.
func (m *NotificationMetrics) RecordFanOut(ctx context.Context, citizens int, duration time.Duration) {
	if m == nil {
		return
	}
	m.fanOutDuration.Record(ctx, duration.Seconds())
	m.citizensPerScan.Record(ctx, int64(citizens))
}
