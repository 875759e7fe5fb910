package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists sessions and scoring history in an app-owned SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  token TEXT NOT NULL,
  username TEXT NOT NULL DEFAULT '',
  user_json TEXT NOT NULL DEFAULT '{}',
  expires_at DATETIME,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS score_history (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  result_json TEXT NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_history_user_time ON score_history(username, created_at DESC);`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) SaveSession(ctx context.Context, sess Session) error {
	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return err
	}
	var expires any
	if sess.ExpiresAt != nil {
		expires = sess.ExpiresAt.UTC()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO sessions (id, token, username, user_json, expires_at, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  token = excluded.token,
  username = excluded.username,
  user_json = excluded.user_json,
  expires_at = excluded.expires_at;
`, sess.ID, sess.Token, sess.Username, string(userJSON), expires, sess.CreatedAt.UTC())
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var (
		sess      Session
		userJSON  string
		expiresAt sql.NullTime
		createdAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, token, username, user_json, expires_at, created_at
FROM sessions
WHERE id = ?;
`, id).Scan(&sess.ID, &sess.Token, &sess.Username, &userJSON, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if userJSON != "" {
		_ = json.Unmarshal([]byte(userJSON), &sess.User)
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		sess.ExpiresAt = &t
	}
	if createdAt.Valid {
		sess.CreatedAt = createdAt.Time.UTC()
	}
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory inserts the entry and trims the user's history down to the
// most recent limit rows in one transaction.
func (s *SQLiteStore) AppendHistory(ctx context.Context, entry HistoryEntry, limit int) error {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return err
	}
	resultJSON, err := json.Marshal(entry.Result)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO score_history (id, username, payload_json, result_json, created_at)
VALUES (?, ?, ?, ?, ?);
`, entry.ID, entry.Username, string(payloadJSON), string(resultJSON), entry.CreatedAt.UTC()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM score_history
WHERE username = ?
  AND id NOT IN (
    SELECT id FROM score_history
    WHERE username = ?
    ORDER BY created_at DESC, id DESC
    LIMIT ?
  );
`, entry.Username, entry.Username, limit); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListHistory(ctx context.Context, username string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, username, payload_json, result_json, created_at
FROM score_history
WHERE username = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;
`, username, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			entry       HistoryEntry
			payloadJSON string
			resultJSON  string
			createdAt   sql.NullTime
		)
		if err := rows.Scan(&entry.ID, &entry.Username, &payloadJSON, &resultJSON, &createdAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(payloadJSON), &entry.Payload)
		_ = json.Unmarshal([]byte(resultJSON), &entry.Result)
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time.UTC()
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
