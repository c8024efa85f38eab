package collab

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/draftdesk/draftdesk/internal/apperr"
	"github.com/draftdesk/draftdesk/internal/metrics"
)

// PostgresStore persists document snapshots in the documents table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection pool. The pool stays
// owned by the caller; Close here is a no-op.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE name = $1`, name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.CodeNotFound, "document not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("query document %s: %w", name, err)
	}
	metrics.RecordStorageOperation("postgres", "doc_load", time.Since(start))
	return data, nil
}

// Save upserts the snapshot. Last write wins.
func (s *PostgresStore) Save(ctx context.Context, name string, data []byte) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (name, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		name, data, time.Now())
	if err != nil {
		return fmt.Errorf("save document %s: %w", name, err)
	}
	metrics.RecordStorageOperation("postgres", "doc_save", time.Since(start))
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, octet_length(data), updated_at FROM documents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.Name, &info.Size, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, name string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("delete document %s: %w", name, err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *PostgresStore) Close() error {
	return nil
}
