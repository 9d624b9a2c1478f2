package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registered database/sql drivers for the supported SQL backends.
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	// DriverSQLite is the modernc.org pure-Go SQLite driver name.
	DriverSQLite = "sqlite"

	// DriverMySQL is the go-sql-driver MySQL driver name.
	DriverMySQL = "mysql"
)

// SQLStore implements core.SnapshotStore on top of database/sql.
// The snapshot lives in a single named row, upserted on every save.
// SQLite (a local file) is the default for client deployments; MySQL is
// supported for server-side deployments that share an existing instance.
type SQLStore struct {
	db     *sql.DB
	driver string
	table  string
	name   string
}

// NewSQLStore opens (or creates) the snapshot table using the given driver
// and DSN. name identifies the snapshot row, allowing several queues to
// share one table.
func NewSQLStore(driver, dsn, table, name string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported SQL driver: %s", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("DSN is required")
	}
	if table == "" {
		table = "sync_snapshots"
	}
	if name == "" {
		name = "default"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver, table: table, name: name}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.ensureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// ensureTable creates the snapshot table if it does not exist.
func (s *SQLStore) ensureTable(ctx context.Context) error {
	var ddl string
	switch s.driver {
	case DriverMySQL:
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name VARCHAR(64) PRIMARY KEY,
			data LONGBLOB NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`, s.table)
	default:
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.table)
	}

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create snapshot table %s: %w", s.table, err)
	}
	return nil
}

// Save upserts the snapshot row.
func (s *SQLStore) Save(ctx context.Context, data []byte) error {
	var query string
	switch s.driver {
	case DriverMySQL:
		query = fmt.Sprintf(
			"INSERT INTO %s (name, data) VALUES (?, ?) ON DUPLICATE KEY UPDATE data = VALUES(data)",
			s.table)
	default:
		query = fmt.Sprintf(
			"INSERT INTO %s (name, data) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP",
			s.table)
	}

	if _, err := s.db.ExecContext(ctx, query, s.name, data); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", s.name, err)
	}
	return nil
}

// Load reads the snapshot row. Returns (nil, nil) when the row is absent.
func (s *SQLStore) Load(ctx context.Context) ([]byte, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE name = ?", s.table)

	var data []byte
	err := s.db.QueryRowContext(ctx, query, s.name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", s.name, err)
	}
	return data, nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
