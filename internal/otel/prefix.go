package otel

// Metric prefixes; each package defines its own metric names under one of these.
const (
	PrefixBridge    = "rtms_bridge"
	PrefixTranslate = "translate"
)
