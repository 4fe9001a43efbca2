package translate

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// APIKey enables the upstream model; empty means dictionary fallback only.
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`

	CacheSize int     `mapstructure:"cache_size"`
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`

	RetryInitial    time.Duration `mapstructure:"retry_initial"`
	RetryMax        time.Duration `mapstructure:"retry_max"`
	RetryMaxElapsed time.Duration `mapstructure:"retry_max_elapsed"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("api_key"), "")
	v.SetDefault(p("base_url"), "https://api.openai.com/v1")
	v.SetDefault(p("model"), "gpt-3.5-turbo")
	v.SetDefault(p("temperature"), 0.3)
	v.SetDefault(p("max_tokens"), 300)
	v.SetDefault(p("timeout"), "15s")
	v.SetDefault(p("cache_size"), 2048)
	v.SetDefault(p("rate_limit"), 5)
	v.SetDefault(p("rate_burst"), 10)
	v.SetDefault(p("retry_initial"), "200ms")
	v.SetDefault(p("retry_max"), "2s")
	v.SetDefault(p("retry_max_elapsed"), "5s")
}
