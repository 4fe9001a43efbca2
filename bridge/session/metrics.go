package session

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	intotel "github.com/imtaco/rtms-bridge/internal/otel"
)

var ctxBg = context.Background()

var (
	sessionsActive metric.Int64UpDownCounter
)

func init() {
	f := intotel.NewFactory("bridge.session", intotel.PrefixBridge)

	f.Int64UpDownCounter(&sessionsActive, "sessions.active",
		metric.WithDescription("Number of registered meeting sessions"))
}
