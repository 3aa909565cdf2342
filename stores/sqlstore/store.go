// Package sqlstore implements the stores on database/sql. The sqlite and
// postgres packages supply the driver and dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"customizer/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Dialect covers the differences between the supported databases.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2) instead of ?.
	Numbered bool
	BlobType string
	TimeType string
}

var (
	SQLite   = Dialect{Name: "sqlite", BlobType: "BLOB", TimeType: "DATETIME"}
	Postgres = Dialect{Name: "postgres", Numbered: true, BlobType: "BYTEA", TimeType: "TIMESTAMPTZ"}
)

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type Store struct {
	db *sql.DB
	d  Dialect
}

// New creates the tables if needed.
func New(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	s := &Store{db: db, d: d}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS designs (
			id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			product_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			thumbnail TEXT NOT NULL DEFAULT '',
			scene %s,
			created_at %s NOT NULL,
			updated_at %s NOT NULL,
			PRIMARY KEY (user_id, id)
		)`, s.d.BlobType, s.d.TimeType, s.d.TimeType),
		`CREATE TABLE IF NOT EXISTS product_views (
			product_id TEXT PRIMARY KEY,
			views TEXT NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS assets (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL,
			data %s NOT NULL,
			created_at %s NOT NULL
		)`, s.d.BlobType, s.d.TimeType),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create %s schema: %w", s.d.Name, err)
		}
	}
	return nil
}

func (s *Store) q(query string) string {
	return s.d.Rebind(query)
}

// DesignStore implementation

func (s *Store) List(ctx context.Context, userID string) ([]*core.Design, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		"SELECT id, product_id, name, thumbnail, created_at, updated_at FROM designs WHERE user_id = ? ORDER BY updated_at DESC"), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	designs := []*core.Design{}
	for rows.Next() {
		d := core.Design{UserID: userID}
		if err := rows.Scan(&d.ID, &d.ProductID, &d.Name, &d.Thumbnail, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		designs = append(designs, &d)
	}
	return designs, rows.Err()
}

func (s *Store) Get(ctx context.Context, userID, id string) (*core.Design, error) {
	d := core.Design{ID: id, UserID: userID}
	err := s.db.QueryRowContext(ctx, s.q(
		"SELECT product_id, name, thumbnail, scene, created_at, updated_at FROM designs WHERE user_id = ? AND id = ?"), userID, id).
		Scan(&d.ProductID, &d.Name, &d.Thumbnail, &d.Scene, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("design %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}

func (s *Store) Save(ctx context.Context, design *core.Design) error {
	if design.UserID == "" || design.ID == "" {
		return fmt.Errorf("design needs a user and an id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var createdAt time.Time
	err = tx.QueryRowContext(ctx, s.q("SELECT created_at FROM designs WHERE user_id = ? AND id = ?"), design.UserID, design.ID).Scan(&createdAt)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	now := time.Now().UTC()
	if exists {
		design.CreatedAt = createdAt
		_, err = tx.ExecContext(ctx, s.q(
			"UPDATE designs SET product_id = ?, name = ?, thumbnail = ?, scene = ?, updated_at = ? WHERE user_id = ? AND id = ?"),
			design.ProductID, design.Name, design.Thumbnail, design.Scene, now, design.UserID, design.ID)
	} else {
		design.CreatedAt = now
		_, err = tx.ExecContext(ctx, s.q(
			"INSERT INTO designs (id, user_id, product_id, name, thumbnail, scene, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
			design.ID, design.UserID, design.ProductID, design.Name, design.Thumbnail, design.Scene, now, now)
	}
	if err != nil {
		return err
	}
	design.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"user_id": design.UserID, "design_id": design.ID, "db": s.d.Name}).Info("Design saved successfully")
	return nil
}

func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM designs WHERE user_id = ? AND id = ?"), userID, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("design %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// ProductStore implementation

func (s *Store) GetViews(ctx context.Context, productID string) ([]core.ProductView, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.q("SELECT views FROM product_views WHERE product_id = ?"), productID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", productID, core.ErrNotFound)
		}
		return nil, err
	}
	var views []core.ProductView
	if err := json.Unmarshal([]byte(raw), &views); err != nil {
		return nil, fmt.Errorf("product %s: corrupt views: %w", productID, err)
	}
	return views, nil
}

func (s *Store) SaveViews(ctx context.Context, productID string, views []core.ProductView) error {
	raw, err := json.Marshal(views)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q(
		"INSERT INTO product_views (product_id, views) VALUES (?, ?) ON CONFLICT (product_id) DO UPDATE SET views = excluded.views"),
		productID, string(raw))
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"product_id": productID, "views": len(views)}).Info("Product views saved")
	return nil
}

// AssetStore implementation

func (s *Store) PutAsset(ctx context.Context, asset *core.Asset) (string, error) {
	id := ulid.Make().String()
	_, err := s.db.ExecContext(ctx, s.q(
		"INSERT INTO assets (id, user_id, name, content_type, data, created_at) VALUES (?, ?, ?, ?, ?, ?)"),
		id, asset.UserID, asset.Name, asset.ContentType, asset.Data, time.Now().UTC())
	if err != nil {
		return "", err
	}
	logrus.WithFields(logrus.Fields{"asset_id": id, "data_length": len(asset.Data)}).Info("Asset stored")
	return id, nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (*core.Asset, error) {
	a := core.Asset{ID: id}
	err := s.db.QueryRowContext(ctx, s.q(
		"SELECT user_id, name, content_type, data, created_at FROM assets WHERE id = ?"), id).
		Scan(&a.UserID, &a.Name, &a.ContentType, &a.Data, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("asset %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}
