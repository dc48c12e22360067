package db

import (
	"github.com/caesium-cloud/hera/internal/models"
	"github.com/caesium-cloud/hera/pkg/env"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connection opens the schedule center database selected by the
// environment. Postgres is used for shared deployments; sqlite is
// the default for a single center.
func Connection() (*gorm.DB, error) {
	vars := env.Variables()
	return Open(vars.DatabaseType, vars.DatabaseDSN)
}

func Open(kind, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch kind {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, errors.Errorf("unsupported database type %q", kind)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s database", kind)
	}

	return gdb, nil
}

// Migrate brings the schema of every schedule center model up to date.
func Migrate(gdb *gorm.DB) error {
	return errors.Wrap(gdb.AutoMigrate(models.All...), "failed to migrate schema")
}
