package transport

import (
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/imtaco/rtms-bridge/internal/otel"
)

var (
	webhookResponses metric.Int64Counter
	rateLimited      metric.Int64Counter
)

func init() {
	f := intotel.NewFactory("bridge.transport", intotel.PrefixBridge)

	f.Int64Counter(&webhookResponses, "webhook.responses",
		metric.WithDescription("Webhook responses by status code"))

	f.Int64Counter(&rateLimited, "http.rate_limited",
		metric.WithDescription("Requests rejected by the per-client rate limit"))
}
