package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/relay-ai/relay/pkg/types"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a SQLite database at the given DSN.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			status TEXT NOT NULL,
			source TEXT NOT NULL,
			turn_count INTEGER NOT NULL DEFAULT 0,
			has_pending_tools INTEGER NOT NULL DEFAULT 0,
			provider_id TEXT NOT NULL DEFAULT '',
			model_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			last_activity_at INTEGER NOT NULL,
			completed_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner, source, created_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_calls TEXT,
			tool_call_id TEXT NOT NULL DEFAULT '',
			tool_name TEXT NOT NULL DEFAULT '',
			is_error INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create inserts a new session.
func (s *SQLiteStore) Create(ctx context.Context, session *types.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, owner, status, source, turn_count, has_pending_tools,
			provider_id, model_id, title, error, created_at, last_activity_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Owner, session.Status, session.Source,
		session.TurnCount, boolToInt(session.HasPendingTools),
		session.ProviderID, session.ModelID, session.Title, session.Error,
		session.Time.Created, session.Time.LastActivity, session.Time.Completed)
	return err
}

// Get retrieves a session by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner, status, source, turn_count, has_pending_tools,
			provider_id, model_id, title, error, created_at, last_activity_at, completed_at
		 FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// Messages returns the full message history in append order.
func (s *SQLiteStore) Messages(ctx context.Context, id string) ([]types.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, type, content, tool_calls, tool_call_id, tool_name, is_error, created_at
		 FROM messages WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []types.Message
	for rows.Next() {
		var m types.Message
		var toolCalls sql.NullString
		var isError int
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Type, &m.Content,
			&toolCalls, &m.ToolCallID, &m.ToolName, &isError, &m.Time.Created); err != nil {
			return nil, err
		}
		m.IsError = isError != 0
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("corrupt tool_calls for message %s: %w", m.ID, err)
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Update replaces the message history and applies the metadata patch in a
// single transaction.
func (s *SQLiteStore) Update(ctx context.Context, id string, messages []types.Message, patch SessionPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sets, args := patchClauses(patch)
	if len(sets) > 0 {
		args = append(args, id)
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE sessions SET %s WHERE id = ?`, strings.Join(sets, ", ")), args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
	} else {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return err
	}
	for i, m := range messages {
		var toolCalls any
		if len(m.ToolCalls) > 0 {
			data, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return err
			}
			toolCalls = string(data)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, session_id, seq, role, type, content, tool_calls,
				tool_call_id, tool_name, is_error, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, id, i, m.Role, m.Type, m.Content, toolCalls,
			m.ToolCallID, m.ToolName, boolToInt(m.IsError), m.Time.Created); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Delete removes a session and its messages.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	// Cascade does not fire without foreign_keys pragma on every connection,
	// delete explicitly.
	_, err = s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id)
	return err
}

// List returns the owner's sessions, newest first.
func (s *SQLiteStore) List(ctx context.Context, owner string, filter ListFilter) ([]*types.Session, error) {
	query := `SELECT id, owner, status, source, turn_count, has_pending_tools,
		provider_id, model_id, title, error, created_at, last_activity_at, completed_at
		FROM sessions WHERE owner = ?`
	args := []any{owner}

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// FindRecentPending returns the newest not-completed session for the owner
// and source created within the window.
func (s *SQLiteStore) FindRecentPending(ctx context.Context, owner string, source types.SessionSource, window time.Duration) (*types.Session, error) {
	cutoff := time.Now().Add(-window).UnixMilli()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner, status, source, turn_count, has_pending_tools,
			provider_id, model_id, title, error, created_at, last_activity_at, completed_at
		 FROM sessions
		 WHERE owner = ? AND source = ? AND status != ? AND created_at > ?
		 ORDER BY created_at DESC LIMIT 1`,
		owner, source, types.SessionStatusCompleted, cutoff)
	return scanSession(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*types.Session, error) {
	var session types.Session
	var pending int
	var completed sql.NullInt64
	err := row.Scan(&session.ID, &session.Owner, &session.Status, &session.Source,
		&session.TurnCount, &pending, &session.ProviderID, &session.ModelID,
		&session.Title, &session.Error,
		&session.Time.Created, &session.Time.LastActivity, &completed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	session.HasPendingTools = pending != 0
	if completed.Valid {
		session.Time.Completed = &completed.Int64
	}
	return &session, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// patchClauses builds SET clauses for the non-nil patch fields.
func patchClauses(patch SessionPatch) ([]string, []any) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.TurnCount != nil {
		add("turn_count", *patch.TurnCount)
	}
	if patch.HasPendingTools != nil {
		add("has_pending_tools", boolToInt(*patch.HasPendingTools))
	}
	if patch.ProviderID != nil {
		add("provider_id", *patch.ProviderID)
	}
	if patch.ModelID != nil {
		add("model_id", *patch.ModelID)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Error != nil {
		add("error", *patch.Error)
	}
	if patch.LastActivity != nil {
		add("last_activity_at", *patch.LastActivity)
	}
	if patch.Completed != nil {
		add("completed_at", *patch.Completed)
	}
	return sets, args
}
