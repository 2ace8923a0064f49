package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/logging"
)

// SQLiteOptions configures a SQLiteStore.
type SQLiteOptions struct {
	Logger logging.Logger
}

// SQLiteStore persists sessions and transcripts in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	log logging.Logger
}

// OpenSQLite opens (or creates) a SQLite database at path and runs
// migrations. Use ":memory:" for an in-memory database (useful for tests).
func OpenSQLite(path string, optFns ...func(o *SQLiteOptions)) (*SQLiteStore, error) {
	opts := SQLiteOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	if path == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, log: logging.OrNoOp(opts.Logger)}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s.log.Info("session.sqlite.open", "path", path)
	return s, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&count); err != nil {
			return fmt.Errorf("checking migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		s.log.Info("session.sqlite.migrate", "version", m.Version, "name", m.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// Create inserts a new session row.
func (s *SQLiteStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, "INSERT INTO sessions (id) VALUES (?)", id); err != nil {
		return "", fmt.Errorf("sqlite create session: %w", err)
	}
	return id, nil
}

// Exists reports whether a session row is present.
func (s *SQLiteStore) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE id = ?", id).Scan(&count); err != nil {
		return false, fmt.Errorf("sqlite session lookup: %w", err)
	}
	return count > 0, nil
}

// Append stores messages in one transaction, creating the session if needed.
func (s *SQLiteStore) Append(ctx context.Context, id string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO sessions (id) VALUES (?)", id); err != nil {
		return fmt.Errorf("sqlite append: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (session_id, role, author, content, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("sqlite append: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, id, m.Role, m.Author, m.Text, createdAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("sqlite append: %w", err)
		}
	}

	return tx.Commit()
}

// Messages returns the transcript in insertion order.
func (s *SQLiteStore) Messages(ctx context.Context, id string) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, author, content, created_at FROM messages WHERE session_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("sqlite history: %w", err)
	}
	defer rows.Close()

	var msgs []core.Message
	for rows.Next() {
		var (
			m         core.Message
			createdAt string
		)
		if err := rows.Scan(&m.Role, &m.Author, &m.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite history: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			m.CreatedAt = ts
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
