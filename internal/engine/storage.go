package engine

import (
	"fmt"
	"os"

	"tablecore/internal/infra/modelstore/memory"
	"tablecore/internal/infra/modelstore/postgres"
	"tablecore/internal/infra/modelstore/sqlite"
	"tablecore/pkg/tabular"
)

// StoreDriver identifies a concrete model store implementation.
type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"   // in-memory only (tests / ephemeral)
	StoreSQLite   StoreDriver = "sqlite"   // embedded sqlite file
	StorePostgres StoreDriver = "postgres" // PostgreSQL server
)

// OpenModelStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	TABLECORE_STORE_DRIVER: memory|sqlite|postgres (default sqlite)
//	TABLECORE_SQLITE_PATH: path to sqlite file (default ./tablecore.db)
//	TABLECORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenModelStore() (tabular.ModelStore, error) {
	driver := os.Getenv("TABLECORE_STORE_DRIVER")
	if driver == "" {
		driver = string(StoreSQLite)
	}
	switch StoreDriver(driver) {
	case StoreMemory:
		return memory.NewStore(), nil
	case StoreSQLite:
		path := os.Getenv("TABLECORE_SQLITE_PATH")
		return sqlite.NewStore(path)
	case StorePostgres:
		dsn := os.Getenv("TABLECORE_POSTGRES_DSN")
		return postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %s", driver)
	}
}
