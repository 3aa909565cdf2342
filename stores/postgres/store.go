package postgres

import (
	"context"
	"database/sql"
	"log"
	"time"

	"customizer/stores/sqlstore"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// NewStore connects to PostgreSQL via the pgx driver and creates tables.
func NewStore(databaseURL string) *sqlstore.Store {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := Open(ctx, databaseURL)
	if err != nil {
		log.Fatalf("failed to open postgres database: %v", err)
	}
	return store
}

func Open(ctx context.Context, databaseURL string) (*sqlstore.Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlstore.New(ctx, db, sqlstore.Postgres)
}
