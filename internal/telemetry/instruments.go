package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/konect/konect"

// Instruments holds the client-side metric instruments.
type Instruments struct {
	backendDuration metric.Float64Histogram
	backendTotal    metric.Int64Counter
	alertsSent      metric.Int64Counter
	alertsReceived  metric.Int64Counter
	pushMessages    metric.Int64Counter
}

// NewInstruments creates the instruments on the global meter provider.
func NewInstruments() (*Instruments, error) {
	return NewInstrumentsWithMeter(otel.Meter(instrumentationName))
}

// NewInstrumentsWithMeter creates the instruments on the given meter.
func NewInstrumentsWithMeter(meter metric.Meter) (*Instruments, error) {
	backendDuration, err := meter.Float64Histogram(
		"konect.backend.request.duration",
		metric.WithDescription("Duration of pairing backend requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	backendTotal, err := meter.Int64Counter(
		"konect.backend.request.total",
		metric.WithDescription("Total number of pairing backend requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	alertsSent, err := meter.Int64Counter(
		"konect.alerts.sent",
		metric.WithDescription("Alerts triggered by this device"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	alertsReceived, err := meter.Int64Counter(
		"konect.alerts.received",
		metric.WithDescription("Alerts surfaced to the user, by lifecycle"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	pushMessages, err := meter.Int64Counter(
		"konect.push.messages",
		metric.WithDescription("Push messages handled by a transport"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	return &Instruments{
		backendDuration: backendDuration,
		backendTotal:    backendTotal,
		alertsSent:      alertsSent,
		alertsReceived:  alertsReceived,
		pushMessages:    pushMessages,
	}, nil
}

// RecordBackendRequest records one backend call. Safe on a nil receiver.
func (i *Instruments) RecordBackendRequest(endpoint string, status int, duration time.Duration, err error) {
	if i == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("konect.endpoint", endpoint),
		attribute.Int("http.status_code", status),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Background context so a cancelled request is still counted.
	ctx := context.TODO()
	i.backendDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	i.backendTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAlertSent counts a trigger-alert attempt.
func (i *Instruments) RecordAlertSent(err error) {
	if i == nil {
		return
	}
	i.alertsSent.Add(context.TODO(), 1, metric.WithAttributes(attribute.Bool("error", err != nil)))
}

// RecordAlertReceived counts an alert surfaced in the given lifecycle.
func (i *Instruments) RecordAlertReceived(lifecycle string) {
	if i == nil {
		return
	}
	i.alertsReceived.Add(context.TODO(), 1, metric.WithAttributes(attribute.String("konect.lifecycle", lifecycle)))
}

// RecordPushMessage counts a push message with its transport and outcome
// ("delivered", "ignored", "malformed", "published", "failed").
func (i *Instruments) RecordPushMessage(transport, outcome string) {
	if i == nil {
		return
	}
	i.pushMessages.Add(context.TODO(), 1, metric.WithAttributes(
		attribute.String("konect.push.transport", transport),
		attribute.String("konect.push.outcome", outcome),
	))
}
