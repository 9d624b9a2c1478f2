package syncqueue

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shopstack/syncqueue/internal/storage"
)

// Config represents the root configuration for a sync queue client.
type Config struct {
	// BaseURL is prefixed to relative endpoints when executing or
	// replaying requests. Absolute endpoints are used as-is.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Storage configures where the queue snapshot is persisted.
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Sync configures the scheduler, the replay engine, and the
	// connectivity monitor.
	Sync SyncConfig `yaml:"sync" json:"sync"`

	// Gating configures the offline-sync eligibility check.
	Gating GatingConfig `yaml:"gating,omitempty" json:"gating,omitempty"`

	// Events configures the optional lifecycle event sink.
	Events EventsConfig `yaml:"events,omitempty" json:"events,omitempty"`
}

// StorageConfig selects the snapshot store backend.
type StorageConfig struct {
	// Type is one of "memory", "sqlite", "mysql", "redis", "dynamodb".
	// "sqlite" is the default and keeps the snapshot in a local file.
	Type string `yaml:"type" json:"type"`

	// Name identifies the snapshot record within the backend, allowing
	// several queues to share one table or keyspace.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Path is the SQLite database file path (sqlite only).
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// DSN is the data source name (mysql only).
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`

	// Table is the snapshot table name for SQL backends and the table
	// name for DynamoDB.
	Table string `yaml:"table,omitempty" json:"table,omitempty"`

	// Redis configures the Redis backend.
	Redis RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`

	// DynamoDB configures the DynamoDB backend.
	DynamoDB DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
}

// RedisConfig contains connection settings for the Redis snapshot store.
type RedisConfig struct {
	// Addr is the Redis endpoint (host:port).
	Addr string `yaml:"addr" json:"addr"`

	// Password is the authentication password, if any.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// DB is the Redis database number.
	DB int `yaml:"db,omitempty" json:"db,omitempty"`
}

// DynamoDBConfig contains connection settings for the DynamoDB snapshot
// store.
type DynamoDBConfig struct {
	// Region is the AWS region.
	Region string `yaml:"region" json:"region"`

	// Endpoint overrides the AWS endpoint (e.g. for LocalStack).
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// AccessKeyID and SecretAccessKey are optional static credentials;
	// when empty the default AWS credential chain is used.
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// SyncConfig contains scheduling and replay settings.
type SyncConfig struct {
	// Interval is the periodic sync cadence while online.
	Interval time.Duration `yaml:"interval,omitempty" json:"interval,omitempty"`

	// GracePeriod is how long a completed operation stays visible in the
	// queue before removal, so status consumers can show the success
	// state briefly.
	GracePeriod time.Duration `yaml:"grace_period,omitempty" json:"grace_period,omitempty"`

	// ReplayRate caps replayed requests per second. Zero means unlimited.
	ReplayRate int `yaml:"replay_rate,omitempty" json:"replay_rate,omitempty"`

	// PollInterval is how often the connectivity signal is evaluated.
	PollInterval time.Duration `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty"`

	// ProbeURL enables the HTTP connectivity probe. When empty, the
	// client assumes it is online unless a connectivity signal is
	// injected (see WithConnectivitySignal).
	ProbeURL string `yaml:"probe_url,omitempty" json:"probe_url,omitempty"`

	// ProbeTimeout bounds each probe request.
	ProbeTimeout time.Duration `yaml:"probe_timeout,omitempty" json:"probe_timeout,omitempty"`
}

// GatingConfig configures the offline-sync eligibility check.
type GatingConfig struct {
	// URL is the remote subscription-tier endpoint. When empty, only the
	// local enabled toggle gates offline sync.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// CacheTTL is how long a remote eligibility answer is reused.
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty" json:"cache_ttl,omitempty"`
}

// EventsConfig configures the optional lifecycle event sink.
type EventsConfig struct {
	// Type is "none" or "kafka".
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Kafka configures the Kafka sink (only used when Type is "kafka").
	Kafka KafkaConfig `yaml:"kafka,omitempty" json:"kafka,omitempty"`
}

// KafkaConfig contains producer settings for the Kafka event sink.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" json:"brokers"`
	Topic        string        `yaml:"topic" json:"topic"`
	BatchSize    int           `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty" json:"batch_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	RequiredAcks int           `yaml:"required_acks,omitempty" json:"required_acks,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults: a SQLite
// snapshot in the working directory, a 30 second sync interval, a 3 second
// grace period, and no event sink.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Type: storage.TypeSQLite,
			Path: "syncqueue.db",
		},
		Sync: SyncConfig{
			Interval:     30 * time.Second,
			GracePeriod:  3 * time.Second,
			PollInterval: 5 * time.Second,
			ProbeTimeout: 3 * time.Second,
		},
		Gating: GatingConfig{
			CacheTTL: time.Minute,
		},
		Events: EventsConfig{
			Type: "none",
		},
	}
}

// LoadConfig reads a YAML configuration file, applying defaults for any
// field the file omits.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "", storage.TypeMemory, storage.TypeSQLite:
	case storage.TypeMySQL:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the mysql backend")
		}
	case storage.TypeRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis backend")
		}
	case storage.TypeDynamoDB:
		if c.Storage.DynamoDB.Region == "" {
			return fmt.Errorf("storage.dynamodb.region is required for the dynamodb backend")
		}
		if c.Storage.Table == "" {
			return fmt.Errorf("storage.table is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	switch c.Events.Type {
	case "", "none":
	case "kafka":
		if len(c.Events.Kafka.Brokers) == 0 {
			return fmt.Errorf("events.kafka.brokers is required for the kafka sink")
		}
		if c.Events.Kafka.Topic == "" {
			return fmt.Errorf("events.kafka.topic is required for the kafka sink")
		}
	default:
		return fmt.Errorf("unsupported events type: %s", c.Events.Type)
	}

	if c.Sync.ReplayRate < 0 {
		return fmt.Errorf("sync.replay_rate cannot be negative")
	}
	return nil
}

// storageConfig converts the public storage section to the internal
// factory config.
func (c *Config) storageConfig() storage.Config {
	return storage.Config{
		Type:            c.Storage.Type,
		Name:            c.Storage.Name,
		Path:            c.Storage.Path,
		DSN:             c.Storage.DSN,
		Table:           c.Storage.Table,
		Addr:            c.Storage.Redis.Addr,
		Password:        c.Storage.Redis.Password,
		DB:              c.Storage.Redis.DB,
		Region:          c.Storage.DynamoDB.Region,
		Endpoint:        c.Storage.DynamoDB.Endpoint,
		AccessKeyID:     c.Storage.DynamoDB.AccessKeyID,
		SecretAccessKey: c.Storage.DynamoDB.SecretAccessKey,
	}
}
