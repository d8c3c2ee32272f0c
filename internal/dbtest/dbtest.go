// Package dbtest opens throwaway in-memory SQLite databases so repository
// and service tests can run against the real query layer.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/ustabul/ustabul/internal/database"
	"github.com/ustabul/ustabul/internal/entity"
)

// New returns connections backed by a fresh in-memory SQLite database with
// the full schema created. The database is private to the test and closed
// on cleanup.
func New(t *testing.T) *database.Connections {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A single connection keeps the in-memory database alive and visible to
	// every query in the test.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	ctx := context.Background()
	models := []interface{}{
		(*entity.Category)(nil),
		(*entity.Customer)(nil),
		(*entity.Master)(nil),
		(*entity.Order)(nil),
		(*entity.Application)(nil),
		(*entity.Review)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("create table for %T: %v", model, err)
		}
	}

	return &database.Connections{Writer: db, Reader: db}
}
