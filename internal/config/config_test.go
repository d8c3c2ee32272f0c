package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.HTTP.Port)
	require.Equal(t, "ustabul-api", cfg.Messaging.Kafka.ClientID)
	require.Equal(t, "ustabul.notifications", cfg.Messaging.Kafka.Topic)
	require.Equal(t, "ustabul-notifier", cfg.Messaging.ConsumerGroup)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "ustabul", cfg.Observability.ServiceName)
	require.Equal(t, "/metrics", cfg.Observability.PrometheusPath)
	require.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
}

func TestDisabledSubsystemsFallBackToNoop(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("MESSAGING_ENABLED", "false")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, "noop", cfg.Cache.Driver)
	require.Equal(t, "noop", cfg.Messaging.Driver)
}

func TestInvalidDriversRejected(t *testing.T) {
	t.Setenv("CACHE_DRIVER", "memcached")
	_, err := New()
	require.Error(t, err)
}

func TestPrometheusPathNormalised(t *testing.T) {
	t.Setenv("OBS_PROMETHEUS_PATH", "stats/prometheus")
	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, "/stats/prometheus", cfg.Observability.PrometheusPath)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	require.Equal(t, 7, getEnvAsInt("SOME_INT", 7))

	t.Setenv("SOME_DURATION", "90s")
	require.Equal(t, 90*time.Second, getEnvAsDuration("SOME_DURATION", time.Minute))

	t.Setenv("SOME_LIST", "a, b, ,c")
	require.Equal(t, []string{"a", "b", "c"}, getEnvAsStringSlice("SOME_LIST", nil))
}
