package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wayfarer0/wayfarer/internal/log"
)

// mockStoreQuerier implements Querier with scripted results and call
// tracking. It simulates the append-only message log in memory.
type mockStoreQuerier struct {
	sessions map[string]Session
	messages map[string][]Message

	createErr error
	lockErr   error
	insertErr error
	recentErr error

	lockCalls   int
	insertCalls int
	touchCalls  int
}

func newMockStoreQuerier() *mockStoreQuerier {
	return &mockStoreQuerier{
		sessions: make(map[string]Session),
		messages: make(map[string][]Message),
	}
}

func (m *mockStoreQuerier) CreateSession(_ context.Context, arg CreateSessionParams) (Session, error) {
	if m.createErr != nil {
		return Session{}, m.createErr
	}
	if _, ok := m.sessions[arg.ID]; ok {
		return Session{}, ErrSessionExists
	}
	s := Session{ID: arg.ID, Title: arg.Title, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.sessions[arg.ID] = s
	return s, nil
}

func (m *mockStoreQuerier) GetSession(_ context.Context, id string) (Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *mockStoreQuerier) ListSessions(_ context.Context, limit, offset int32) ([]Session, error) {
	var out []Session
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockStoreQuerier) LockSession(_ context.Context, id string) error {
	m.lockCalls++
	if m.lockErr != nil {
		return m.lockErr
	}
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (m *mockStoreQuerier) InsertMessage(_ context.Context, arg InsertMessageParams) (Message, error) {
	m.insertCalls++
	if m.insertErr != nil {
		return Message{}, m.insertErr
	}
	if _, ok := m.sessions[arg.SessionID]; !ok {
		return Message{}, ErrSessionNotFound
	}
	seq := int32(len(m.messages[arg.SessionID]) + 1)
	msg := Message{
		ID:        int64(seq),
		SessionID: arg.SessionID,
		Role:      arg.Role,
		Content:   arg.Content,
		Seq:       seq,
		CreatedAt: time.Now(),
	}
	m.messages[arg.SessionID] = append(m.messages[arg.SessionID], msg)
	return msg, nil
}

func (m *mockStoreQuerier) TouchSession(_ context.Context, id string) error {
	m.touchCalls++
	return nil
}

func (m *mockStoreQuerier) RecentMessages(_ context.Context, sessionID string, limit int32) ([]Message, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	msgs := m.messages[sessionID]
	if int32(len(msgs)) > limit {
		msgs = msgs[int32(len(msgs))-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func newTestStore(q Querier) *Store {
	return NewStore(q, nil, log.NewNop())
}

func TestCreateSession(t *testing.T) {
	q := newMockStoreQuerier()
	store := newTestStore(q)

	sess, err := store.CreateSession(context.Background(), "sess_1_abc", "best parks in Tokyo")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.ID != "sess_1_abc" {
		t.Errorf("ID = %q", sess.ID)
	}

	_, err = store.CreateSession(context.Background(), "sess_1_abc", "again")
	if !errors.Is(err, ErrSessionExists) {
		t.Errorf("duplicate create: got %v, want ErrSessionExists", err)
	}
}

func TestAppendMessage(t *testing.T) {
	q := newMockStoreQuerier()
	store := newTestStore(q)

	if _, err := store.CreateSession(context.Background(), "s1", "t"); err != nil {
		t.Fatal(err)
	}

	msg, err := store.AppendMessage(context.Background(), "s1", RoleUser, "hello")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if msg.Seq != 1 {
		t.Errorf("Seq = %d, want 1", msg.Seq)
	}
	if q.touchCalls != 1 {
		t.Errorf("touch called %d times, want 1", q.touchCalls)
	}

	msg2, err := store.AppendMessage(context.Background(), "s1", RoleAssistant, "hi there")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if msg2.Seq != 2 {
		t.Errorf("Seq = %d, want 2", msg2.Seq)
	}
}

func TestAppendMessageUnknownSession(t *testing.T) {
	store := newTestStore(newMockStoreQuerier())

	_, err := store.AppendMessage(context.Background(), "missing", RoleUser, "x")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("got %v, want ErrSessionNotFound", err)
	}
}

func TestAppendMessageInvalidRole(t *testing.T) {
	q := newMockStoreQuerier()
	store := newTestStore(q)

	_, err := store.AppendMessage(context.Background(), "s1", "robot", "x")
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("got %v, want ErrInvalidRole", err)
	}
	if q.insertCalls != 0 {
		t.Error("insert attempted for invalid role")
	}
}

func TestRecentMessagesWindowing(t *testing.T) {
	q := newMockStoreQuerier()
	store := newTestStore(q)

	if _, err := store.CreateSession(context.Background(), "s1", "t"); err != nil {
		t.Fatal(err)
	}
	contents := []string{"one", "two", "three", "four", "five"}
	for _, c := range contents {
		if _, err := store.AppendMessage(context.Background(), "s1", RoleUser, c); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := store.RecentMessages(context.Background(), "s1", 3)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	// Last three, oldest first.
	want := []string{"three", "four", "five"}
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Errorf("msgs[%d] = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestRecentMessagesUnknownSessionIsEmpty(t *testing.T) {
	store := newTestStore(newMockStoreQuerier())

	msgs, err := store.RecentMessages(context.Background(), "nope", 8)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
}

func TestRecentMessagesAppendOnlyExtension(t *testing.T) {
	q := newMockStoreQuerier()
	store := newTestStore(q)
	ctx := context.Background()

	if _, err := store.CreateSession(ctx, "s1", "t"); err != nil {
		t.Fatal(err)
	}

	var previous []Message
	for turn := 1; turn <= 4; turn++ {
		if _, err := store.AppendMessage(ctx, "s1", RoleUser, strings.Repeat("x", turn)); err != nil {
			t.Fatal(err)
		}
		current, err := store.RecentMessages(ctx, "s1", 100)
		if err != nil {
			t.Fatal(err)
		}
		if len(current) != len(previous)+1 {
			t.Fatalf("turn %d: got %d messages, want %d", turn, len(current), len(previous)+1)
		}
		// Prefix must be unchanged: no message disappears or reorders.
		for i := range previous {
			if current[i].Content != previous[i].Content || current[i].Seq != previous[i].Seq {
				t.Errorf("turn %d: history rewritten at %d", turn, i)
			}
		}
		previous = current
	}
}

func TestRecentMessagesInvalidLimit(t *testing.T) {
	store := newTestStore(newMockStoreQuerier())
	if _, err := store.RecentMessages(context.Background(), "s1", 0); err == nil {
		t.Error("accepted non-positive limit")
	}
}
