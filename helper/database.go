package helper

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Database bundles the SQL connection with the logger the handlers use.
type Database struct {
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase opens (creating if necessary) the SQLite database file
// `<DataDir>/<name>.db` and applies the connection pragmas.
func NewDatabase(name string, config *Configuration, logger *slog.Logger) (*Database, error) {
	if config == nil {
		return nil, NewError("database configuration validation", fmt.Errorf("configuration is nil"))
	}

	if err := os.MkdirAll(config.DataDir, 0750); err != nil {
		return nil, NewError("create data directory", err)
	}

	path := filepath.Join(config.DataDir, name+".db")
	instance, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, NewError("open database", err)
	}

	// modernc.org/sqlite serializes writes internally, but a single
	// connection avoids SQLITE_BUSY between concurrent readers and the
	// writer entirely.
	instance.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 5000;`,
	} {
		if _, err := instance.Exec(pragma); err != nil {
			return nil, NewError("apply pragma", err)
		}
	}

	if err := instance.Ping(); err != nil {
		return nil, NewError("ping database", err)
	}

	logger.Info("Opened database", slog.String("path", path))

	return &Database{
		Instance: instance,
		Logger:   logger,
	}, nil
}
