package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/casedesk/casedesk/internal/observability"
)

type Speaker string

const (
	SpeakerUser Speaker = "User"
	SpeakerBot  Speaker = "Bot"
)

type Entry struct {
	Speaker   Speaker
	Text      string
	CreatedAt time.Time
}

// History is an append-only conversation log. Append stores the question and
// its answer as two adjacent entries, User first; implementations must never
// interleave two exchanges.
type History interface {
	Append(ctx context.Context, question, answer string) error
	Entries(ctx context.Context) ([]Entry, error)
}

// Memory keeps entries for the lifetime of the process only.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: func() time.Time { return time.Now().UTC() }}
}

func (m *Memory) Append(_ context.Context, question, answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	at := m.now()
	m.entries = append(m.entries,
		Entry{Speaker: SpeakerUser, Text: question, CreatedAt: at},
		Entry{Speaker: SpeakerBot, Text: answer, CreatedAt: at},
	)
	observability.AddConversationEntries(2)
	return nil
}

func (m *Memory) Entries(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

// Sessions hands out one History per session key. The factory decides the
// backing store.
type Sessions[K comparable] struct {
	mu      sync.Mutex
	byKey   map[K]History
	factory func(K) History
}

func NewSessions[K comparable](factory func(K) History) *Sessions[K] {
	return &Sessions[K]{byKey: map[K]History{}, factory: factory}
}

func (s *Sessions[K]) Get(key K) History {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, ok := s.byKey[key]
	if !ok {
		history = s.factory(key)
		s.byKey[key] = history
	}
	return history
}
