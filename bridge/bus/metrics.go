package bus

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	intotel "github.com/imtaco/rtms-bridge/internal/otel"
)

var ctxBg = context.Background()

var (
	published      metric.Int64Counter
	publishFailure metric.Int64Counter
	delivered      metric.Int64Counter
)

func init() {
	f := intotel.NewFactory("bridge.bus", intotel.PrefixBridge)

	f.Int64Counter(&published, "bus.published",
		metric.WithDescription("Speech events appended to the shared stream"))

	f.Int64Counter(&publishFailure, "bus.publish_failures",
		metric.WithDescription("Speech events that could not be appended"))

	f.Int64Counter(&delivered, "bus.delivered",
		metric.WithDescription("Speech events read from the shared stream and fanned out locally"))
}
