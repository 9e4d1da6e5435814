package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/curenova/go-auth/storage/migrations"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// goose keeps its base FS and dialect in package globals
var gooseMu sync.Mutex

// Migrate applies every pending migration
func Migrate(ctx context.Context, db *bun.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(gooseDialect(db)); err != nil {
		return fmt.Errorf("migration dialect error: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}

// OpenAndMigrate opens dsn and brings the schema up to date
func OpenAndMigrate(ctx context.Context, dsn string) (*bun.DB, error) {
	db, err := Open(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func gooseDialect(db *bun.DB) string {
	if db.Dialect().Name() == dialect.PG {
		return "postgres"
	}
	return "sqlite3"
}
