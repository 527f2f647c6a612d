package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_defaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("CONFIG_DIR", t.TempDir())

	conf, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "DEV", conf.Env)
	assert.True(t, conf.Debug)
	assert.False(t, conf.TestMode)
	assert.Equal(t, "Academia", conf.AppName)
	assert.Equal(t, 24*time.Hour, conf.Auth.TokenTTL)
	assert.Equal(t, EnginePostgres, conf.Database.Engine)
	assert.Equal(t, "localhost:5432", conf.Database.HostPort())
	assert.Empty(t, conf.Kafka.Brokers)
}

func TestNewConfig_env(t *testing.T) {
	dir := t.TempDir()
	dotEnv := "TEST_APPNAME=Campus\nTEST_DATABASE_ENGINE=memory\nTEST_AUTH_TOKENTTL=15m\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte(dotEnv), 0o600))

	t.Setenv("ENV", "test")
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("TEST_KAFKA_BROKERS", " k1:9092, ,k2:9092")
	t.Setenv("TEST_AUTH_TOKENTTL", "30m") // real env beats .env
	t.Cleanup(func() {
		// loaded by godotenv
		_ = os.Unsetenv("TEST_APPNAME")
		_ = os.Unsetenv("TEST_DATABASE_ENGINE")
	})

	conf, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "TEST", conf.Env)
	assert.True(t, conf.TestMode)
	assert.Equal(t, "Campus", conf.AppName)
	assert.True(t, conf.Database.InMemory())
	assert.Equal(t, 30*time.Minute, conf.Auth.TokenTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, conf.Kafka.Brokers)
}

func TestNewConfig_debug(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{env: "", want: true},
		{env: "dev", want: true},
		{env: "test", want: true},
		{env: "qa", want: false},
		{env: "prod", want: false},
	}
	for _, tt := range tests {
		t.Run("env "+tt.env, func(t *testing.T) {
			t.Setenv("ENV", tt.env)
			t.Setenv("CONFIG_DIR", t.TempDir())

			conf, err := NewConfig()
			require.NoError(t, err)
			assert.Equal(t, tt.want, conf.Debug)
		})
	}

	t.Run("explicit", func(t *testing.T) {
		t.Setenv("ENV", "prod")
		t.Setenv("CONFIG_DIR", t.TempDir())
		t.Setenv("PROD_DEBUG", "true")

		conf, err := NewConfig()
		require.NoError(t, err)
		assert.True(t, conf.Debug)
	})
}

func TestNewConfig_invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "no token ttl", key: "QA_AUTH_TOKENTTL", val: "0s"},
		{name: "unknown engine", key: "QA_DATABASE_ENGINE", val: "mongo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", "qa")
			t.Setenv("CONFIG_DIR", t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}
