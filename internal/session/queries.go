package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes mapped to sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, letting the same queries
// run inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries bundles the raw SQL operations on sessions and messages.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// CreateSessionParams carries one session insert.
type CreateSessionParams struct {
	ID    string
	Title string
}

const createSessionSQL = `
INSERT INTO sessions (id, title)
VALUES ($1, $2)
RETURNING id, title, created_at, updated_at`

// CreateSession inserts a session row. Duplicate ids surface as
// ErrSessionExists.
func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	var s Session
	err := q.db.QueryRow(ctx, createSessionSQL, arg.ID, arg.Title).
		Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isPGError(err, pgUniqueViolation) {
			return Session{}, fmt.Errorf("%w: %s", ErrSessionExists, arg.ID)
		}
		return Session{}, fmt.Errorf("inserting session: %w", err)
	}
	return s, nil
}

const getSessionSQL = `
SELECT id, title, created_at, updated_at
FROM sessions
WHERE id = $1`

// GetSession fetches one session row.
func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	var s Session
	err := q.db.QueryRow(ctx, getSessionSQL, id).
		Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return Session{}, fmt.Errorf("fetching session: %w", err)
	}
	return s, nil
}

const listSessionsSQL = `
SELECT id, title, created_at, updated_at
FROM sessions
ORDER BY updated_at DESC
LIMIT $1 OFFSET $2`

// ListSessions returns sessions newest-activity first.
func (q *Queries) ListSessions(ctx context.Context, limit, offset int32) ([]Session, error) {
	rows, err := q.db.Query(ctx, listSessionsSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

const lockSessionSQL = `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`

// LockSession takes a row lock on the session so concurrent appends to the
// same session serialize and seq assignment stays gap-free.
func (q *Queries) LockSession(ctx context.Context, id string) error {
	var got string
	if err := q.db.QueryRow(ctx, lockSessionSQL, id).Scan(&got); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return fmt.Errorf("locking session: %w", err)
	}
	return nil
}

// InsertMessageParams carries one message insert.
type InsertMessageParams struct {
	SessionID string
	Role      string
	Content   string
}

const insertMessageSQL = `
INSERT INTO messages (session_id, role, content, seq)
SELECT $1, $2, $3, COALESCE(MAX(seq), 0) + 1
FROM messages
WHERE session_id = $1
RETURNING id, session_id, role, content, seq, created_at`

// InsertMessage appends a message with the next sequence number. A missing
// session surfaces as ErrSessionNotFound via the foreign key.
func (q *Queries) InsertMessage(ctx context.Context, arg InsertMessageParams) (Message, error) {
	var m Message
	err := q.db.QueryRow(ctx, insertMessageSQL, arg.SessionID, arg.Role, arg.Content).
		Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Seq, &m.CreatedAt)
	if err != nil {
		if isPGError(err, pgForeignKeyViolation) {
			return Message{}, fmt.Errorf("%w: %s", ErrSessionNotFound, arg.SessionID)
		}
		return Message{}, fmt.Errorf("inserting message: %w", err)
	}
	return m, nil
}

const touchSessionSQL = `UPDATE sessions SET updated_at = now() WHERE id = $1`

// TouchSession bumps the session's updated_at.
func (q *Queries) TouchSession(ctx context.Context, id string) error {
	if _, err := q.db.Exec(ctx, touchSessionSQL, id); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

const recentMessagesSQL = `
SELECT id, session_id, role, content, seq, created_at
FROM (
	SELECT id, session_id, role, content, seq, created_at
	FROM messages
	WHERE session_id = $1
	ORDER BY seq DESC
	LIMIT $2
) tail
ORDER BY seq ASC`

// RecentMessages returns the last limit messages oldest-first. An unknown
// session yields an empty slice, not an error.
func (q *Queries) RecentMessages(ctx context.Context, sessionID string, limit int32) ([]Message, error) {
	rows, err := q.db.Query(ctx, recentMessagesSQL, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Seq, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

// isPGError reports whether err carries the given PostgreSQL error code.
func isPGError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
