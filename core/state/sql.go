package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/catchbot/core/codec"
)

const sessionsTable = "conversation_sessions"

// SQLStore keeps sessions in a relational table. It works with the postgres
// (lib/pq) and sqlite (modernc.org/sqlite) drivers; queries are rebound to
// the driver's placeholder style.
type SQLStore struct {
	db *sqlx.DB
}

type sessionRow struct {
	UserID    int64  `db:"user_id"`
	Flow      string `db:"flow"`
	Step      string `db:"step"`
	Payload   []byte `db:"payload"`
	Version   int64  `db:"version"`
	UpdatedAt int64  `db:"updated_at"`
}

// payload is the CBOR body of a session row.
type payload struct {
	Scratch Scratch      `cbor:"scratch"`
	Items   []Item       `cbor:"items"`
	Prompts []MessageRef `cbor:"prompts"`
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// EnsureSchema creates the sessions table when it does not exist. Postgres
// deployments also get it from migrations; sqlite files rely on this.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	blob := "BLOB"
	if s.db.DriverName() == "postgres" {
		blob = "BYTEA"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		user_id    BIGINT PRIMARY KEY,
		flow       TEXT NOT NULL,
		step       TEXT NOT NULL,
		payload    %s NOT NULL,
		version    BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`, sessionsTable, blob)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("state: ensure schema: %w", err)
	}
	return nil
}

// Load returns the user's session or nil when none exists.
func (s *SQLStore) Load(ctx context.Context, userID int64) (*Session, error) {
	var row sessionRow
	q := s.db.Rebind(`SELECT user_id, flow, step, payload, version, updated_at FROM ` + sessionsTable + ` WHERE user_id = ?`)
	if err := s.db.GetContext(ctx, &row, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("state: load session: %w", err)
	}
	var body payload
	if err := codec.Unmarshal(row.Payload, &body); err != nil {
		return nil, fmt.Errorf("state: decode session: %w", err)
	}
	return &Session{
		UserID:    row.UserID,
		Flow:      row.Flow,
		Step:      row.Step,
		Scratch:   body.Scratch,
		Items:     body.Items,
		Prompts:   body.Prompts,
		Version:   row.Version,
		UpdatedAt: time.Unix(0, row.UpdatedAt),
	}, nil
}

// Save inserts a new session (Version zero) or updates the stored one when
// its version still matches.
func (s *SQLStore) Save(ctx context.Context, sess *Session) error {
	data, err := codec.Marshal(payload{Scratch: sess.Scratch, Items: sess.Items, Prompts: sess.Prompts})
	if err != nil {
		return fmt.Errorf("state: encode session: %w", err)
	}
	next := sess.Version + 1

	var res sql.Result
	if sess.Version == 0 {
		q := s.db.Rebind(`INSERT INTO ` + sessionsTable + ` (user_id, flow, step, payload, version, updated_at)
			VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (user_id) DO NOTHING`)
		res, err = s.db.ExecContext(ctx, q, sess.UserID, sess.Flow, sess.Step, data, next, sess.UpdatedAt.UnixNano())
	} else {
		q := s.db.Rebind(`UPDATE ` + sessionsTable + ` SET flow = ?, step = ?, payload = ?, version = ?, updated_at = ?
			WHERE user_id = ? AND version = ?`)
		res, err = s.db.ExecContext(ctx, q, sess.Flow, sess.Step, data, next, sess.UpdatedAt.UnixNano(), sess.UserID, sess.Version)
	}
	if err != nil {
		return fmt.Errorf("state: save session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("state: save session: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	sess.Version = next
	return nil
}

// Delete removes the user's session; a missing row is not an error.
func (s *SQLStore) Delete(ctx context.Context, userID int64) error {
	q := s.db.Rebind(`DELETE FROM ` + sessionsTable + ` WHERE user_id = ?`)
	if _, err := s.db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("state: delete session: %w", err)
	}
	return nil
}
