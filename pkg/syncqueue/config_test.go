package syncqueue

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "sqlite", config.Storage.Type)
	assert.Equal(t, "syncqueue.db", config.Storage.Path)
	assert.Equal(t, 30*time.Second, config.Sync.Interval)
	assert.Equal(t, 3*time.Second, config.Sync.GracePeriod)
	assert.Equal(t, 5*time.Second, config.Sync.PollInterval)
	assert.Equal(t, time.Minute, config.Gating.CacheTTL)
	assert.Equal(t, "none", config.Events.Type)
	assert.NoError(t, config.Validate())
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
base_url: https://api.example.com
storage:
  type: memory
sync:
  interval: 10s
  grace_period: 1s
  replay_rate: 5
gating:
  url: https://api.example.com/api/sync/eligibility
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", config.BaseURL)
	assert.Equal(t, "memory", config.Storage.Type)
	assert.Equal(t, 10*time.Second, config.Sync.Interval)
	assert.Equal(t, time.Second, config.Sync.GracePeriod)
	assert.Equal(t, 5, config.Sync.ReplayRate)
	assert.Equal(t, "https://api.example.com/api/sync/eligibility", config.Gating.URL)

	// Omitted fields keep their defaults.
	assert.Equal(t, 5*time.Second, config.Sync.PollInterval)
	assert.Equal(t, time.Minute, config.Gating.CacheTTL)
	assert.Equal(t, "none", config.Events.Type)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfigFile(t, `storage: {type: "floppy"}`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "mysql requires dsn",
			mutate:  func(c *Config) { c.Storage.Type = "mysql" },
			wantErr: "storage.dsn",
		},
		{
			name:    "redis requires addr",
			mutate:  func(c *Config) { c.Storage.Type = "redis" },
			wantErr: "storage.redis.addr",
		},
		{
			name: "dynamodb requires region",
			mutate: func(c *Config) {
				c.Storage.Type = "dynamodb"
				c.Storage.Table = "snapshots"
			},
			wantErr: "storage.dynamodb.region",
		},
		{
			name: "dynamodb requires table",
			mutate: func(c *Config) {
				c.Storage.Type = "dynamodb"
				c.Storage.DynamoDB.Region = "us-east-1"
			},
			wantErr: "storage.table",
		},
		{
			name:    "unknown storage type",
			mutate:  func(c *Config) { c.Storage.Type = "floppy" },
			wantErr: "unsupported storage type",
		},
		{
			name:    "kafka requires brokers",
			mutate:  func(c *Config) { c.Events.Type = "kafka"; c.Events.Kafka.Topic = "sync" },
			wantErr: "events.kafka.brokers",
		},
		{
			name: "kafka requires topic",
			mutate: func(c *Config) {
				c.Events.Type = "kafka"
				c.Events.Kafka.Brokers = []string{"localhost:9092"}
			},
			wantErr: "events.kafka.topic",
		},
		{
			name:    "unknown events type",
			mutate:  func(c *Config) { c.Events.Type = "carrier-pigeon" },
			wantErr: "unsupported events type",
		},
		{
			name:    "negative replay rate",
			mutate:  func(c *Config) { c.Sync.ReplayRate = -1 },
			wantErr: "replay_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
