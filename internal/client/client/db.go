package client

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/cartkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/cartkeeper/internal/filex"
	"github.com/dmitrijs2005/cartkeeper/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// gooseLogger routes goose output to a logging.Logger at debug level.
type gooseLogger struct {
	l logging.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Debug(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Error(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}

// RunMigrations applies the embedded goose migrations to db. A nil logger
// discards goose output.
func RunMigrations(ctx context.Context, db *sql.DB, logger logging.Logger) error {
	if logger == nil {
		logger = logging.Discard()
	}
	goose.SetLogger(gooseLogger{l: logger.With("module", "migrations")})
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// InitDatabase opens (creating if needed) the local SQLite database at path
// and migrates it. A single connection is used: SQLite serializes writers
// anyway and ":memory:" databases are per connection.
func InitDatabase(ctx context.Context, path string, logger logging.Logger) (*sql.DB, error) {
	path, err := filex.EnsureParentDir(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
