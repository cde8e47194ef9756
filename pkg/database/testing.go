package database

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"
)

var memSeq atomic.Int64

// OpenTest returns a migrated, private in-memory sqlite database that is
// closed when the test ends.
func OpenTest(t testing.TB) *gorm.DB {
	t.Helper()
	// shared cache keeps one database across pool connections; the name keeps tests apart
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared&_foreign_keys=1", memSeq.Add(1))
	db, err := Open(DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
