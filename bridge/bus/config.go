package bus

import (
	"github.com/spf13/viper"
)

type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Stream  string `mapstructure:"stream"`
	MaxLen  int64  `mapstructure:"max_len"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("enabled"), false)
	v.SetDefault(p("stream"), "rtms:speech")
	v.SetDefault(p("max_len"), 10000)
}
