package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier defines the database operations the Store consumes. Interfaces
// are defined by the consumer; *Queries is the production implementation
// and tests substitute mocks.
type Querier interface {
	CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, limit, offset int32) ([]Session, error)
	LockSession(ctx context.Context, id string) error
	InsertMessage(ctx context.Context, arg InsertMessageParams) (Message, error)
	TouchSession(ctx context.Context, id string) error
	RecentMessages(ctx context.Context, sessionID string, limit int32) ([]Message, error)
}

// Store manages session persistence.
//
// Safe for concurrent use: per-session writes serialize on a row lock taken
// inside the append transaction.
type Store struct {
	queries Querier
	pool    *pgxpool.Pool // nil in unit tests; disables the transactional path
	logger  *slog.Logger
}

// NewStore creates a Store. pool may be nil for tests with a mock querier;
// logger may be nil.
func NewStore(querier Querier, pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: querier, pool: pool, logger: logger}
}

// CreateSession creates a new conversation session. The id comes from
// NewSessionID when the orchestrator starts a fresh thread; it is never a
// caller-supplied raw value. Returns ErrSessionExists on collision.
func (s *Store) CreateSession(ctx context.Context, id, title string) (*Session, error) {
	sess, err := s.queries.CreateSession(ctx, CreateSessionParams{ID: id, Title: title})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.logger.Debug("created session", "id", sess.ID, "title", sess.Title)
	return &sess, nil
}

// Session fetches one session. Returns ErrSessionNotFound when absent.
func (s *Store) Session(ctx context.Context, id string) (*Session, error) {
	sess, err := s.queries.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns sessions ordered by most recent activity.
func (s *Store) ListSessions(ctx context.Context, limit, offset int32) ([]Session, error) {
	return s.queries.ListSessions(ctx, limit, offset)
}

// AppendMessage appends one turn to a session's history. Returns
// ErrSessionNotFound when the session does not exist and ErrInvalidRole for
// roles outside user/assistant/system.
//
// With a pool, the lock + insert + touch run in one transaction so
// concurrent appends to the same session keep a strict sequence order.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, content string) (*Message, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	if s.pool == nil {
		return s.appendMessageNonTransactional(ctx, sessionID, role, content)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Debug("transaction rollback (may be already committed)", "error", rbErr)
		}
	}()

	txQueries := NewQueries(tx)

	if err := txQueries.LockSession(ctx, sessionID); err != nil {
		return nil, err
	}

	msg, err := txQueries.InsertMessage(ctx, InsertMessageParams{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	})
	if err != nil {
		return nil, err
	}

	if err := txQueries.TouchSession(ctx, sessionID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("appended message", "session_id", sessionID, "role", role, "seq", msg.Seq)
	return &msg, nil
}

// appendMessageNonTransactional is the mock-querier path for unit tests.
// Production always goes through the transactional path.
func (s *Store) appendMessageNonTransactional(ctx context.Context, sessionID, role, content string) (*Message, error) {
	if err := s.queries.LockSession(ctx, sessionID); err != nil {
		return nil, err
	}
	msg, err := s.queries.InsertMessage(ctx, InsertMessageParams{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	})
	if err != nil {
		return nil, err
	}
	if err := s.queries.TouchSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RecentMessages returns the last limit messages in chronological
// (oldest-first) order. Fewer rows when the session is shorter; an empty
// slice when the session does not exist: absent history is a valid state,
// not an error.
func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int32) ([]Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	msgs, err := s.queries.RecentMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading recent messages: %w", err)
	}
	s.logger.Debug("loaded recent messages", "session_id", sessionID, "count", len(msgs))
	return msgs, nil
}
