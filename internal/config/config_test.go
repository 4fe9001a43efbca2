package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imtaco/rtms-bridge/internal/errors"
)

type testConfig struct {
	App  App    `mapstructure:"app"`
	Name string `mapstructure:"sample_name"`
}

func setup(v *viper.Viper) {
	Setup(v, "app")
	v.SetDefault("sample_name", "default")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(FileEnv, "")

	c, err := Load(&testConfig{}, setup)
	require.NoError(t, err)
	assert.Equal(t, "default", c.Name)
	assert.Equal(t, 10*time.Second, c.App.ShutdownTimeout)
	assert.Empty(t, c.App.LogConfigFile)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sample_name: from-file\napp:\n  shutdown_timeout: 3s\n"), 0o600))

	t.Setenv(FileEnv, path)
	c, err := Load(&testConfig{}, setup)
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.Name)
	assert.Equal(t, 3*time.Second, c.App.ShutdownTimeout)

	t.Setenv("APP_SHUTDOWN_TIMEOUT", "7s")
	c, err = Load(&testConfig{}, setup)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, c.App.ShutdownTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load(&testConfig{}, setup)
	assert.True(t, errors.Is(err, ErrReadConfig))
}
