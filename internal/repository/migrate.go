package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var migrations embed.FS

// Migrate applies every pending migration for the connection's dialect.
func Migrate(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	var (
		dialect goose.Dialect
		dir     string
	)
	switch name := db.Dialector.Name(); name {
	case DriverPostgres:
		dialect, dir = goose.DialectPostgres, "migrations/postgres"
	case DriverMySQL:
		dialect, dir = goose.DialectMySQL, "migrations/mysql"
	default:
		return fmt.Errorf("no migrations for dialect %q", name)
	}

	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("access db handle: %w", err)
	}

	provider, err := goose.NewProvider(dialect, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	for _, res := range results {
		logger.Info("migration applied",
			zap.Int64("version", res.Source.Version),
			zap.String("file", res.Source.Path),
			zap.Duration("duration", res.Duration))
	}
	logger.Info("database migrations up to date", zap.Int("applied", len(results)))
	return nil
}
