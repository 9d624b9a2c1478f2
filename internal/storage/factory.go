package storage

import (
	"fmt"
	"log"

	"github.com/shopstack/syncqueue/internal/core"
)

// Supported snapshot store types.
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypeMySQL    = "mysql"
	TypeRedis    = "redis"
	TypeDynamoDB = "dynamodb"
)

// Config selects and configures a snapshot store backend.
type Config struct {
	// Type is one of "memory", "sqlite", "mysql", "redis", "dynamodb".
	Type string

	// Name identifies the snapshot record within the backend, allowing
	// several queues to share one table/keyspace. Defaults to "default".
	Name string

	// Path is the SQLite database file path (sqlite only).
	Path string

	// DSN is the MySQL data source name (mysql only).
	DSN string

	// Table is the snapshot table name for SQL backends and the table
	// name for DynamoDB.
	Table string

	// Addr, Password, DB configure the Redis backend.
	Addr     string
	Password string
	DB       int

	// Region, Endpoint, AccessKeyID, SecretAccessKey configure DynamoDB.
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewSnapshotStore creates the snapshot store selected by the config.
func NewSnapshotStore(cfg Config) (core.SnapshotStore, error) {
	switch cfg.Type {
	case TypeMemory, "":
		log.Printf("[STORAGE] Using in-memory snapshot store (no durability)")
		return NewMemoryStore(), nil

	case TypeSQLite:
		path := cfg.Path
		if path == "" {
			path = "syncqueue.db"
		}
		log.Printf("[STORAGE] Using SQLite snapshot store at %s", path)
		return NewSQLStore(DriverSQLite, path, cfg.Table, cfg.Name)

	case TypeMySQL:
		log.Printf("[STORAGE] Using MySQL snapshot store")
		return NewSQLStore(DriverMySQL, cfg.DSN, cfg.Table, cfg.Name)

	case TypeRedis:
		log.Printf("[STORAGE] Using Redis snapshot store at %s", cfg.Addr)
		key := cfg.Name
		if key != "" {
			key = "syncqueue:snapshot:" + key
		}
		return NewRedisStore(cfg.Addr, cfg.Password, cfg.DB, key)

	case TypeDynamoDB:
		log.Printf("[STORAGE] Using DynamoDB snapshot store (table: %s)", cfg.Table)
		return NewDynamoDBStore(cfg.Region, cfg.Table, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey, cfg.Name)

	default:
		return nil, fmt.Errorf("unsupported snapshot store type: %s", cfg.Type)
	}
}
