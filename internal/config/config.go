package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/imtaco/rtms-bridge/internal/errors"
)

const (
	ErrReadConfig errors.Code = "read_config"

	// FileEnv names an optional yaml file layered under the environment.
	FileEnv = "CONFIG_FILE"
)

func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load applies configure's defaults, reads the file named by CONFIG_FILE
// when set, and unmarshals into c. Environment variables win over both.
func Load[T any](c *T, configure func(v *viper.Viper)) (*T, error) {
	v := NewViper()
	configure(v)

	if path := os.Getenv(FileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(ErrReadConfig, err, "read %s", path)
		}
	}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(ErrReadConfig, err, "unmarshal")
	}
	return c, nil
}
