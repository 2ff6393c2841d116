package bootstrap

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/sealbid/core/config"
	coredatabase "github.com/m3rciful/sealbid/core/database"
	"github.com/m3rciful/sealbid/core/logger"
)

// Options control the bootstrap pipeline. The database steps run only when
// the ledger is backed by PostgreSQL.
type Options struct {
	Config *coreconfig.Config

	// Migrations holds the *.up.sql/*.down.sql files under MigrationsDir.
	Migrations    fs.FS
	MigrationsDir string

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(ctx context.Context, cfg coreconfig.DatabaseConfig, fsys fs.FS, dir string) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// DB is nil unless the postgres ledger driver is selected.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger and, for the postgres ledger, connects to the
// database and applies migrations.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	if opts.Config.Ledger.Driver != coreconfig.LedgerPostgres {
		return &Result{}, nil
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, opts.Config.DB)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	if opts.Migrations != nil {
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(ctx, opts.Config.DB, opts.Migrations, opts.MigrationsDir); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}

	return &Result{DB: db}, nil
}
