// Package store persists spatial artifacts in DuckDB.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
)

const schema = `CREATE TABLE IF NOT EXISTS spatial_records (
	id         VARCHAR PRIMARY KEY,
	kind       VARCHAR NOT NULL,
	geometry   VARCHAR NOT NULL,
	lng        DOUBLE NOT NULL,
	lat        DOUBLE NOT NULL,
	radius     DOUBLE,
	units      VARCHAR,
	created_at TIMESTAMP NOT NULL
)`

// ErrNotFound is returned by Get for an unknown ID.
var ErrNotFound = errors.New("record not found")

// Record is one stored artifact.
type Record struct {
	ID        string
	Kind      string
	Geometry  json.RawMessage
	Lng       float64
	Lat       float64
	Radius    float64
	Units     string
	CreatedAt time.Time
}

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Store is a DuckDB-backed record store.
type Store struct {
	db *sql.DB
}

// Open opens {DataDir}/duckdb/{DBName}.duckdb, creating it if needed. An
// empty DataDir opens an in-memory database.
func Open(cfg Config) (*Store, error) {
	dsn := ""
	if cfg.DataDir != "" {
		dir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "sichatas"
		}
		dsn = filepath.Join(dir, name+".duckdb")
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert stores rec, assigning its ID and creation time.
func (s *Store) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.Kind == "" {
		return Record{}, errors.New("record kind is required")
	}
	if !json.Valid(rec.Geometry) {
		return Record{}, errors.New("record geometry is not valid JSON")
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spatial_records (id, kind, geometry, lng, lat, radius, units, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, string(rec.Geometry), rec.Lng, rec.Lat, rec.Radius, rec.Units, rec.CreatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("inserting %s record: %w", rec.Kind, err)
	}
	return rec, nil
}

const selectRecord = `SELECT id, kind, geometry, lng, lat, coalesce(radius, 0), coalesce(units, ''), created_at
	FROM spatial_records`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r    Record
		geom string
	)
	if err := row.Scan(&r.ID, &r.Kind, &geom, &r.Lng, &r.Lat, &r.Radius, &r.Units, &r.CreatedAt); err != nil {
		return Record{}, err
	}
	r.Geometry = json.RawMessage(geom)
	return r, nil
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, selectRecord+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("reading record %s: %w", id, err)
	}
	return r, nil
}

// List returns records oldest first.
func (s *Store) List(ctx context.Context, offset, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+` ORDER BY created_at, rowid LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM spatial_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}
