package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/framefit/framefit/internal/domain"
)

const auditSchemaSQL = `
CREATE TABLE IF NOT EXISTS upload_logs (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	file_id TEXT NOT NULL,
	bytes BIGINT NOT NULL,
	width INT NOT NULL,
	height INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS export_logs (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	object_key TEXT NOT NULL,
	bytes BIGINT NOT NULL,
	directives INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

type PostgresAuditStore struct {
	db *sql.DB
}

func NewPostgresAuditStore(ctx context.Context, dsn string) (*PostgresAuditStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresAuditStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresAuditStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, auditSchemaSQL); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *PostgresAuditStore) Close() error {
	return s.db.Close()
}

func (s *PostgresAuditStore) CreateUploadLog(ctx context.Context, entry domain.UploadLog) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO upload_logs (session_id, file_id, bytes, width, height, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.SessionID,
		entry.FileID,
		entry.Bytes,
		entry.Width,
		entry.Height,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload log: %w", err)
	}
	return nil
}

func (s *PostgresAuditStore) CreateExportLog(ctx context.Context, entry domain.ExportLog) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO export_logs (session_id, object_key, bytes, directives, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.SessionID,
		entry.ObjectKey,
		entry.Bytes,
		entry.Directives,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert export log: %w", err)
	}
	return nil
}
