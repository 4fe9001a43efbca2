package rtms

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"
)

// Credentials sign every handshake. Opaque secrets supplied at start.
type Credentials struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type ReconnectConfig struct {
	// Delay is the fixed wait before reconnecting.
	Delay time.Duration `mapstructure:"delay"`
	// MaxDelay above Delay switches to exponential backoff capped at MaxDelay.
	MaxDelay time.Duration `mapstructure:"max_delay"`
	// MaxAttempts caps consecutive failed attempts; 0 means unlimited.
	MaxAttempts uint64 `mapstructure:"max_attempts"`
}

type Config struct {
	Credentials      `mapstructure:",squash"`
	MediaInsecureTLS bool            `mapstructure:"media_insecure_tls"`
	DialTimeout      time.Duration   `mapstructure:"dial_timeout"`
	WriteTimeout     time.Duration   `mapstructure:"write_timeout"`
	ReadLimit        int64           `mapstructure:"read_limit"`
	Reconnect        ReconnectConfig `mapstructure:"reconnect"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("client_id"), "")
	v.SetDefault(p("client_secret"), "")
	v.SetDefault(p("media_insecure_tls"), false)
	v.SetDefault(p("dial_timeout"), "10s")
	v.SetDefault(p("write_timeout"), "3s")
	v.SetDefault(p("read_limit"), 1<<20)
	v.SetDefault(p("reconnect.delay"), "5s")
	v.SetDefault(p("reconnect.max_delay"), "0s")
	v.SetDefault(p("reconnect.max_attempts"), 0)
}

func (c *ReconnectConfig) newBackOff(clock clockwork.Clock) backoff.BackOff {
	var b backoff.BackOff
	if c.MaxDelay > c.Delay {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = c.Delay
		eb.MaxInterval = c.MaxDelay
		// bounded by session lifetime, not wall time
		eb.MaxElapsedTime = 0
		eb.Clock = clock
		eb.Reset()
		b = eb
	} else {
		b = backoff.NewConstantBackOff(c.Delay)
	}
	if c.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, c.MaxAttempts)
	}
	return b
}
