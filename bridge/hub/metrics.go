package hub

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	intotel "github.com/imtaco/rtms-bridge/internal/otel"
)

var ctxBg = context.Background()

var (
	subscribersActive  metric.Int64UpDownCounter
	subscribersDropped metric.Int64Counter
	broadcasts         metric.Int64Counter
	messagesSent       metric.Int64Counter
)

func init() {
	f := intotel.NewFactory("bridge.hub", intotel.PrefixBridge)

	f.Int64UpDownCounter(&subscribersActive, "hub.subscribers",
		metric.WithDescription("Number of connected UI subscribers"))

	f.Int64Counter(&subscribersDropped, "hub.subscribers_dropped",
		metric.WithDescription("Total subscribers dropped for a full write buffer"))

	f.Int64Counter(&broadcasts, "hub.broadcasts",
		metric.WithDescription("Total speech events broadcast"))

	f.Int64Counter(&messagesSent, "hub.messages_sent",
		metric.WithDescription("Total messages written to subscribers"))
}
