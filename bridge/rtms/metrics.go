package rtms

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/imtaco/rtms-bridge/internal/otel"
)

var (
	linksActive     metric.Int64UpDownCounter
	connectAttempts metric.Int64Counter

	handshakeFailures  metric.Int64Counter
	keepAlivesAnswered metric.Int64Counter
	malformedFrames    metric.Int64Counter
	rawFrames          metric.Int64Counter

	speechEvents       metric.Int64Counter
	blankSpeechDropped metric.Int64Counter

	reconnectsScheduled metric.Int64Counter
	reconnectsAbandoned metric.Int64Counter
)

func init() {
	f := intotel.NewFactory("bridge.rtms", intotel.PrefixBridge)

	f.Int64UpDownCounter(&linksActive, "links.active",
		metric.WithDescription("Number of open RTMS links"))

	f.Int64Counter(&connectAttempts, "links.connect_attempts",
		metric.WithDescription("Total RTMS link dial attempts"))

	f.Int64Counter(&handshakeFailures, "links.handshake_failures",
		metric.WithDescription("Total rejected or failed handshakes"))

	f.Int64Counter(&keepAlivesAnswered, "keepalives.answered",
		metric.WithDescription("Total keep-alive requests answered"))

	f.Int64Counter(&malformedFrames, "frames.malformed",
		metric.WithDescription("Total dropped malformed signaling frames"))

	f.Int64Counter(&rawFrames, "frames.raw",
		metric.WithDescription("Total raw media frames skipped"))

	f.Int64Counter(&speechEvents, "speech.events",
		metric.WithDescription("Total speech events handed to the broadcaster"))

	f.Int64Counter(&blankSpeechDropped, "speech.blank_dropped",
		metric.WithDescription("Total speech frames dropped for blank text"))

	f.Int64Counter(&reconnectsScheduled, "reconnects.scheduled",
		metric.WithDescription("Total reconnect attempts scheduled"))

	f.Int64Counter(&reconnectsAbandoned, "reconnects.abandoned",
		metric.WithDescription("Total links that exhausted their reconnect policy"))
}

func kindAttr(kind LinkKind) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("kind", string(kind)))
}
