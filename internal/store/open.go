package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salesops-cli/internal/config"
)

// Driver names shared by the store and sink configuration.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverFile     = "file"
	DriverS3       = "s3"
)

// Open returns the run store selected by cfg. The caller runs Migrate.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "salesops.db"
		}
		return NewSQLite(dsn)
	case DriverPostgres:
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

// OpenSink returns the document sink selected by cfg. Database sinks reuse
// the run store, so the drivers must match.
func OpenSink(ctx context.Context, cfg config.SinkConfig, st Store) (Sink, error) {
	switch cfg.Driver {
	case DriverFile, "":
		dir := cfg.Dir
		if dir == "" {
			dir = "reports"
		}
		return NewFileSink(dir), nil
	case DriverS3:
		return NewS3Sink(ctx, cfg.S3)
	case DriverSQLite:
		if s, ok := st.(*SQLiteStore); ok {
			return s, nil
		}
	case DriverPostgres:
		if s, ok := st.(*PostgresStore); ok {
			return s, nil
		}
	default:
		return nil, eris.Errorf("unsupported sink driver: %s", cfg.Driver)
	}
	return nil, eris.Errorf("sink driver %s requires store driver %s", cfg.Driver, cfg.Driver)
}
