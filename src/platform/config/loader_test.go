package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoadOptions{
		ServiceName:  "heartbeat-test",
		EnvVarPrefix: "HEARTBEAT_TEST_UNUSED_",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:19092"}, cfg.Kafka.BootstrapServers)
	assert.Equal(t, "events.raw.v1", cfg.Kafka.Topics.Raw)
	assert.Equal(t, "events.invalid.v1", cfg.Kafka.Topics.Invalid)
	assert.Equal(t, "events.anomaly.v1", cfg.Kafka.Topics.Anomaly)
	assert.Equal(t, "events.dlq.v1", cfg.Kafka.Topics.DLQ)
	assert.Equal(t, "cg.db-writer.v1", cfg.Kafka.Groups.DBWriter)
	assert.Equal(t, "cg.anomaly.v1", cfg.Kafka.Groups.Anomaly)

	assert.Equal(t, uint16(55432), cfg.Postgres.Port)
	assert.Equal(t, int32(2), cfg.Postgres.Pool.Min)
	assert.Equal(t, int32(10), cfg.Postgres.Pool.Max)

	assert.Equal(t, 45, cfg.HeartRate.Min)
	assert.Equal(t, 185, cfg.HeartRate.Max)
	assert.Equal(t, 50, cfg.Anomaly.LowThreshold)
	assert.Equal(t, 140, cfg.Anomaly.HighThreshold)
	assert.Equal(t, 30, cfg.Anomaly.SpikeDelta)

	assert.Equal(t, 200, cfg.Sim.EventsPerSecond)
	assert.Equal(t, 4, cfg.Sim.BurstMultiplier)
	assert.Equal(t, 200*time.Millisecond, cfg.Sim.SleepInterval)
	assert.InDelta(t, 0.02, cfg.Sim.InvalidRatio, 1e-9)

	assert.Equal(t, 8000, cfg.Prometheus.Port)
	assert.Equal(t, "info", cfg.Logging.RootLevel)

	assert.Equal(t, "heartbeat-test", cfg.Application.Name)
	assert.NotEmpty(t, cfg.Application.InstanceName)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HEARTBEAT_TEST_KAFKA_TOPICS_RAW", "events.raw.v2")
	t.Setenv("HEARTBEAT_TEST_POSTGRES_HOST", "db.internal")
	t.Setenv("HEARTBEAT_TEST_ANOMALY_HIGH__THRESHOLD", "160")
	t.Setenv("HEARTBEAT_TEST_HEART__RATE_MIN", "40")

	cfg, err := Load(LoadOptions{
		ServiceName:  "heartbeat-test",
		EnvVarPrefix: "HEARTBEAT_TEST_",
	})
	require.NoError(t, err)

	assert.Equal(t, "events.raw.v2", cfg.Kafka.Topics.Raw)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 160, cfg.Anomaly.HighThreshold)
	assert.Equal(t, 40, cfg.HeartRate.Min)
}

func TestLoadYamlFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
kafka:
  topics:
    raw: events.raw.staging
postgres:
  port: 5433
sim:
  events_per_second: 10
`), 0o600))

	cfg, err := Load(LoadOptions{
		ServiceName:   "heartbeat-test",
		YamlFilePaths: []string{path},
		EnvVarPrefix:  "HEARTBEAT_TEST_UNUSED_",
	})
	require.NoError(t, err)

	assert.Equal(t, "events.raw.staging", cfg.Kafka.Topics.Raw)
	assert.Equal(t, uint16(5433), cfg.Postgres.Port)
	assert.Equal(t, 10, cfg.Sim.EventsPerSecond)
	// Untouched keys keep their defaults.
	assert.Equal(t, "events.invalid.v1", cfg.Kafka.Topics.Invalid)
}

func TestLoadMissingYamlFileIsSkipped(t *testing.T) {
	cfg, err := Load(LoadOptions{
		ServiceName:   "heartbeat-test",
		YamlFilePaths: []string{"/nonexistent/config.yaml"},
		EnvVarPrefix:  "HEARTBEAT_TEST_UNUSED_",
	})

	require.NoError(t, err)
	assert.Equal(t, "events.raw.v1", cfg.Kafka.Topics.Raw)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		description string
		key         string
		value       string
	}{
		{"empty raw topic", "HEARTBEAT_TEST_KAFKA_TOPICS_RAW", "x"},
		{"low log level typo", "HEARTBEAT_TEST_LOGGING_ROOT__LEVEL", "verbose"},
		{"spike delta zero", "HEARTBEAT_TEST_ANOMALY_SPIKE__DELTA", "0"},
		{"metrics port below 1024", "HEARTBEAT_TEST_PROMETHEUS_PORT", "80"},
	}

	for _, tc := range cases {
		t.Run(tc.description, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)

			_, err := Load(LoadOptions{
				ServiceName:  "heartbeat-test",
				EnvVarPrefix: "HEARTBEAT_TEST_",
			})
			assert.Error(t, err)
		})
	}
}
