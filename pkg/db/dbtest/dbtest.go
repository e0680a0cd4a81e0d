// Package dbtest opens isolated in-memory sqlite databases for repository tests.
package dbtest

import (
	"testing"

	"github.com/0111v/projeto-faculdade/pkg/config"
	"github.com/0111v/projeto-faculdade/pkg/db"
	"github.com/0111v/projeto-faculdade/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Open returns a client backed by a fresh sqlite database with every model migrated.
func Open(t testing.TB) *db.Client {
	t.Helper()

	cfg := config.DBConfig{
		Driver: config.DriverSQLite,
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on",
	}
	client, err := db.New(t.Context(), cfg, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := Migrate(client.DB()); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return client
}

// Migrate creates the tables for every persisted model.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(models.All()...)
}
