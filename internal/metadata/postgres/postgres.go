// Package postgres provides a PostgreSQL-backed descriptor store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/draftdesk/draftdesk/internal/apperr"
	"github.com/draftdesk/draftdesk/internal/logging"
	"github.com/draftdesk/draftdesk/internal/metadata"
	"github.com/draftdesk/draftdesk/internal/metrics"
)

// Store is a PostgreSQL descriptor store.
type Store struct {
	db *sql.DB
}

// New opens a connection pool to PostgreSQL.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpdateConnectionMetrics updates the database connection metrics.
func (s *Store) UpdateConnectionMetrics() {
	stats := s.db.Stats()
	metrics.SetDBConnectionsOpen(stats.OpenConnections)
}

// Migrate runs SQL migration files.
func (s *Store) Migrate(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}

	for _, f := range files {
		logging.Info("running migration", zap.String("file", filepath.Base(f)))
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}

	return nil
}

// Put inserts a new descriptor. Inserting an existing id fails; callers
// check Exists before committing a freshly generated id.
func (s *Store) Put(ctx context.Context, d *metadata.Descriptor) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attachments (id, name, mime_type, size, extension, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.Name, d.MIMEType, d.Size, d.Extension, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attachment %s: %w", d.ID, err)
	}
	return nil
}

// Get returns the descriptor for id.
func (s *Store) Get(ctx context.Context, id string) (*metadata.Descriptor, error) {
	var d metadata.Descriptor
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, mime_type, size, extension, created_at
		 FROM attachments WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.MIMEType, &d.Size, &d.Extension, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.CodeNotFound, "file not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query attachment %s: %w", id, err)
	}
	return &d, nil
}

// Exists reports whether a descriptor is stored under id.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM attachments WHERE id = $1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query attachment %s: %w", id, err)
	}
	return true, nil
}

// Delete removes the descriptor for id, reporting whether a row existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete attachment %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
