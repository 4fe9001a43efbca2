package otel

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServiceName string         `mapstructure:"service_name"`
	Exporter    ExporterConfig `mapstructure:"exporter"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
}

// ExporterConfig addresses the OTLP gRPC collector shared by both signals.
type ExporterConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Insecure bool          `mapstructure:"insecure"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// SampleRatio is clamped to [0, 1].
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Runtime  bool          `mapstructure:"runtime"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("service_name"), "rtms-bridge")

	v.SetDefault(p("exporter.endpoint"), "localhost:4317")
	v.SetDefault(p("exporter.insecure"), true)
	v.SetDefault(p("exporter.timeout"), "10s")

	v.SetDefault(p("tracing.enabled"), false)
	v.SetDefault(p("tracing.sample_ratio"), 1.0)

	v.SetDefault(p("metrics.enabled"), false)
	v.SetDefault(p("metrics.interval"), "30s")
	v.SetDefault(p("metrics.runtime"), false)
}
