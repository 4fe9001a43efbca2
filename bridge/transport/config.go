package transport

import (
	"github.com/spf13/viper"
)

// RateLimitConfig bounds /api/translate per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	// Clients caps how many per-IP limiters are remembered.
	Clients int `mapstructure:"clients"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("requests_per_second"), 2)
	v.SetDefault(p("burst"), 10)
	v.SetDefault(p("clients"), 4096)
}
