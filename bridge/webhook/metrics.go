package webhook

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/imtaco/rtms-bridge/internal/otel"
)

var (
	webhooksReceived metric.Int64Counter
	webhooksRejected metric.Int64Counter
)

func init() {
	f := intotel.NewFactory("bridge.webhook", intotel.PrefixBridge)

	f.Int64Counter(&webhooksReceived, "webhooks.received",
		metric.WithDescription("Total webhooks received by event"))

	f.Int64Counter(&webhooksRejected, "webhooks.rejected",
		metric.WithDescription("Total lifecycle webhooks dropped for invalid payloads"))
}

func eventAttr(event string) metric.MeasurementOption {
	switch event {
	case EventURLValidation, EventRTMSStarted, EventRTMSStopped:
	default:
		event = "other"
	}
	return metric.WithAttributes(attribute.String("event", event))
}
