package config

import (
	"time"

	"github.com/spf13/viper"
)

// App holds process-wide settings shared by every binary.
type App struct {
	// LogConfigFile points at a zap json config; empty uses the console logger.
	LogConfigFile   string        `mapstructure:"log_config_file"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func Setup(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+".log_config_file", "")
	v.SetDefault(prefix+".shutdown_timeout", "10s")
}
