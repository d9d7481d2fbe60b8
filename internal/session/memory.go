package session

import (
	"context"
	"sync"
	"time"

	"github.com/duckmesh/askhr/internal/modelclient"
)

// MemoryStore keeps histories in process memory. The map lock is held only to find or create a
// conversation; each conversation has its own lock.
type MemoryStore struct {
	maxTurns     int
	systemPrompt string
	now          func() time.Time

	mu            sync.Mutex
	conversations map[string]*conversation
}

type conversation struct {
	mu       sync.Mutex
	messages []Message
}

type MemoryOption func(*MemoryStore)

func WithSystemPrompt(prompt string) MemoryOption {
	return func(s *MemoryStore) { s.systemPrompt = prompt }
}

func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(maxTurns int, options ...MemoryOption) *MemoryStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	s := &MemoryStore{
		maxTurns:      maxTurns,
		systemPrompt:  SystemPrompt,
		now:           time.Now,
		conversations: map[string]*conversation{},
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *MemoryStore) conversation(key string, create bool) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[key]
	if !ok && create {
		c = &conversation{messages: []Message{{
			Role:      modelclient.RoleSystem,
			Content:   s.systemPrompt,
			Timestamp: s.now().UTC(),
		}}}
		s.conversations[key] = c
	}
	return c
}

func (s *MemoryStore) Load(ctx context.Context, key string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := s.conversation(key, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...), nil
}

func (s *MemoryStore) Append(ctx context.Context, key string, messages ...Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := s.conversation(key, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, message := range messages {
		if message.Timestamp.IsZero() {
			message.Timestamp = s.now().UTC()
		}
		c.messages = append(c.messages, message)
	}
	if overflow := len(c.messages) - 1 - s.maxTurns; overflow > 0 {
		c.messages = append(c.messages[:1], c.messages[1+overflow:]...)
	}
	return nil
}

func (s *MemoryStore) History(ctx context.Context, key string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	c := s.conversation(key, false)
	if c == nil {
		return []Message{}, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	rest := c.messages[1:]
	if len(rest) > limit {
		rest = rest[len(rest)-limit:]
	}
	return append([]Message{}, rest...), nil
}

func (s *MemoryStore) Clear(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.conversations, key)
	s.mu.Unlock()
	return nil
}

// Len reports how many conversations are held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}
