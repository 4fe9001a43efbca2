package translate

import (
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/imtaco/rtms-bridge/internal/otel"
)

var (
	translations     metric.Int64Counter
	upstreamFailures metric.Int64Counter
	upstreamLatency  metric.Float64Histogram
)

func init() {
	f := intotel.NewFactory("bridge.translate", intotel.PrefixTranslate)

	f.Int64Counter(&translations, "requests",
		metric.WithDescription("Total translations by source"))

	f.Int64Counter(&upstreamFailures, "upstream.failures",
		metric.WithDescription("Total upstream translations that failed after retries"))

	f.Float64Histogram(&upstreamLatency, "upstream.duration",
		metric.WithDescription("Upstream translation latency"),
		metric.WithUnit("s"))
}
