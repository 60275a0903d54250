// Package store persists the relay's configuration surface —
// listener credentials and the admin-action audit log — in SQLite.
// The in-memory session/channel/variable tables the relay dispatches
// against are never persisted here; only operational bookkeeping is.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Credential is one configured listener password and the authLevel it
// grants on a successful relay op-0 authenticate.
type Credential struct {
	ID       int64
	Password []byte
	Level    int32
}

// AuditRow is one recorded admin action.
type AuditRow struct {
	ID        int64
	Action    string
	UserID    uint64
	CreatedAt time.Time
}

// Store persists server configuration state in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite store opened", "path", path)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	password BLOB NOT NULL,
	auth_level INTEGER NOT NULL,
	created_at_unix_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action TEXT NOT NULL,
	user_id INTEGER NOT NULL,
	created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_log(created_at_unix_ms);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run sqlite migrations: %w", err)
	}

	slog.Debug("sqlite migrations applied")
	return nil
}

// AddCredential inserts a new listener credential.
func (s *Store) AddCredential(ctx context.Context, password []byte, level int32) error {
	if len(password) < 1 || len(password) >= 24 {
		return fmt.Errorf("password must be 1-23 bytes")
	}
	const q = `INSERT INTO credentials (password, auth_level, created_at_unix_ms) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, password, level, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// Credentials returns every configured credential, used to populate the
// relay's in-memory auth table at startup.
func (s *Store) Credentials(ctx context.Context) ([]Credential, error) {
	const q = `SELECT id, password, auth_level FROM credentials ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.ID, &c.Password, &c.Level); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordAudit appends one audit row for a privileged admin action
// (relay op 0 authenticate, op 3 userId claim).
func (s *Store) RecordAudit(ctx context.Context, action string, userID uint64) error {
	const q = `INSERT INTO audit_log (action, user_id, created_at_unix_ms) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, action, userID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

// RecentAudit returns the most recent audit rows, newest first.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]AuditRow, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, action, user_id, created_at_unix_ms FROM audit_log ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		var createdAtMS int64
		if err := rows.Scan(&r.ID, &r.Action, &r.UserID, &createdAtMS); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdAtMS).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
