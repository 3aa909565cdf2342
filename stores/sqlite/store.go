package sqlite

import (
	"context"
	"database/sql"
	"log"

	"customizer/stores/sqlstore"

	_ "modernc.org/sqlite"
)

// NewStore opens (or creates) the SQLite database and its tables.
func NewStore(dataSourceName string) *sqlstore.Store {
	store, err := Open(context.Background(), dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}
	return store
}

func Open(ctx context.Context, dataSourceName string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return sqlstore.New(ctx, db, sqlstore.SQLite)
}
