package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	checkpoint_id TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	payload       BLOB NOT NULL,
	saved_at      TEXT NOT NULL,
	expires_at    TEXT
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_session
ON checkpoints(session_id, saved_at DESC);

CREATE TABLE IF NOT EXISTS current_checkpoint (
	session_id    TEXT PRIMARY KEY,
	checkpoint_id TEXT NOT NULL,
	FOREIGN KEY (checkpoint_id) REFERENCES checkpoints(checkpoint_id)
);
`

// #endregion schema

// #region sqlite-store

// SQLiteStore is the durable backend. Prior checkpoints for a session are
// superseded by the current pointer, never deleted, so history and rollback
// stay available.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying handle for sibling tables (e.g. the audit log).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// #endregion sqlite-store

// #region save

// Save writes the checkpoint row and the session's current pointer in one
// transaction: fully persisted or an error, never partially written.
func (s *SQLiteStore) Save(ctx context.Context, c HybridCheckpoint, ttl time.Duration) (string, error) {
	if c.CheckpointID == "" {
		c.CheckpointID = uuid.New().String()
	}
	now := time.Now().UTC().Round(0)
	c.UpdatedAt = now

	payload, err := Encode(c)
	if err != nil {
		return "", err
	}

	var expiresPtr interface{}
	if ttl > 0 {
		expiresPtr = now.Add(ttl).Format(time.RFC3339Nano)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkpoints (checkpoint_id, session_id, payload, saved_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(checkpoint_id) DO UPDATE SET
		   payload = excluded.payload, saved_at = excluded.saved_at, expires_at = excluded.expires_at`,
		c.CheckpointID, c.SessionID, payload, now.Format(time.RFC3339Nano), expiresPtr,
	)
	if err != nil {
		return "", fmt.Errorf("insert checkpoint: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO current_checkpoint (session_id, checkpoint_id) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET checkpoint_id = excluded.checkpoint_id`,
		c.SessionID, c.CheckpointID,
	)
	if err != nil {
		return "", fmt.Errorf("set current: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return c.CheckpointID, nil
}

// #endregion save

// #region load

func (s *SQLiteStore) Load(ctx context.Context, id string) (HybridCheckpoint, error) {
	var payload []byte
	var expires sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM checkpoints WHERE checkpoint_id = ?`, id,
	).Scan(&payload, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return HybridCheckpoint{}, fmt.Errorf("load %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return HybridCheckpoint{}, fmt.Errorf("load %s: %w", id, err)
	}

	if expiredAt(expires) {
		// Lazy reap, mirroring the memory backend.
		if _, err := s.deleteTx(ctx, id); err != nil {
			log.Printf("[STORE] reap expired checkpoint %s: %v", id, err)
		}
		return HybridCheckpoint{}, fmt.Errorf("load %s: %w", id, ErrNotFound)
	}

	return Decode(payload)
}

// #endregion load

// #region delete

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	existed, err := s.deleteTx(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", id, err)
	}
	return existed, nil
}

// deleteTx removes a checkpoint row. The session's current pointer may
// reference it, so the pointer row is cleared in the same transaction or the
// foreign key rejects the delete.
func (s *SQLiteStore) deleteTx(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM current_checkpoint WHERE checkpoint_id = ?`, id); err != nil {
		return false, fmt.Errorf("clear current: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE checkpoint_id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return n > 0, nil
}

// #endregion delete

// #region list

func (s *SQLiteStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]HybridCheckpoint, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload, expires_at FROM checkpoints
		 WHERE session_id = ? ORDER BY saved_at DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []HybridCheckpoint
	for rows.Next() {
		var payload []byte
		var expires sql.NullString
		if err := rows.Scan(&payload, &expires); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if expiredAt(expires) {
			continue
		}
		c, err := Decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// #endregion list

// #region expiry

func expiredAt(expires sql.NullString) bool {
	if !expires.Valid {
		return false
	}
	t, err := time.Parse(time.RFC3339Nano, expires.String)
	if err != nil {
		return false
	}
	return time.Now().After(t)
}

// #endregion expiry
