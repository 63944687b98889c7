package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceConfig struct {
	HTTPPort    int           `env:"LOADER_TEST_HTTP_PORT" envDefault:"8001"`
	LogLevel    string        `env:"LOADER_TEST_LOG_LEVEL" envDefault:"info"`
	Brokers     []string      `env:"LOADER_TEST_BROKERS" envDefault:"localhost:9092"`
	IdleTimeout time.Duration `env:"LOADER_TEST_IDLE_TIMEOUT" envDefault:"60s"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg serviceConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8001, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, time.Minute, cfg.IdleTimeout)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("LOADER_TEST_HTTP_PORT", "9001")
	t.Setenv("LOADER_TEST_LOG_LEVEL", "debug")
	t.Setenv("LOADER_TEST_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("LOADER_TEST_IDLE_TIMEOUT", "90s")

	var cfg serviceConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9001, cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.Equal(t, 90*time.Second, cfg.IdleTimeout)
}

type secretConfig struct {
	JWTSecret string `env:"LOADER_TEST_JWT_SECRET,required"`
}

func TestLoad_RequiredMissing(t *testing.T) {
	var cfg secretConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_RequiredPresent(t *testing.T) {
	t.Setenv("LOADER_TEST_JWT_SECRET", "a-real-secret")

	var cfg secretConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, "a-real-secret", cfg.JWTSecret)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("LOADER_TEST_HTTP_PORT", "not-a-number")

	var cfg serviceConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
