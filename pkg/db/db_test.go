package db

import (
	"path/filepath"
	"testing"

	"github.com/caesium-cloud/hera/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite(t *testing.T) {
	gdb, err := Open("sqlite", filepath.Join(t.TempDir(), "hera.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	require.NoError(t, gdb.Create(&models.Job{Name: "nightly"}).Error)

	var count int64
	require.NoError(t, gdb.Model(&models.Job{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Close())
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open("dqlite", "")
	assert.EqualError(t, err, `unsupported database type "dqlite"`)
}
