package sqlite

// DefaultBatchSize is the number of rows committed per transaction.
const DefaultBatchSize = 1000

// Config holds SQLite sink configuration.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:rows.db?_pragma=busy_timeout(5000)"
	//   "rows.db" (interpreted by the driver)
	DSN string

	// Table is the target table, e.g. "iris". Dotted names such as
	// "main.iris" are quoted per segment.
	Table string

	// BatchSize is the number of rows per transaction (default 1000).
	BatchSize int
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}
