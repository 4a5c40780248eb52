package rag

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conversation is an ordered question/answer history.
type Conversation struct {
	id        string
	createdAt time.Time

	mu       sync.RWMutex
	turns    []Turn
	lastUsed time.Time
}

// NewConversation creates an empty conversation.
func NewConversation(id string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		id:        id,
		createdAt: now,
		lastUsed:  now,
	}
}

// ID returns the conversation identifier.
func (c *Conversation) ID() string {
	return c.id
}

// CreatedAt returns when the conversation was started.
func (c *Conversation) CreatedAt() time.Time {
	return c.createdAt
}

// Append adds a turn, stamping it if At is zero.
func (c *Conversation) Append(t Turn) {
	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, t)
	if t.At.After(c.lastUsed) {
		c.lastUsed = t.At
	}
}

// Clear drops every turn.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}

// Turns returns a copy of the history, oldest first.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Last returns the most recent turn.
func (c *Conversation) Last() (Turn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}

// LastUsed returns when the conversation was last appended to or looked up.
func (c *Conversation) LastUsed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUsed
}

func (c *Conversation) touch(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if at.After(c.lastUsed) {
		c.lastUsed = at
	}
}

const (
	// DefaultMaxConversations caps the conversations kept in memory.
	DefaultMaxConversations = 1000
	// DefaultConversationTTL is how long an unused conversation is kept.
	DefaultConversationTTL = 24 * time.Hour
)

// ConversationStore keeps conversations in memory by ID. Conversations idle
// for longer than the TTL are dropped, and when the store is full the least
// recently used one is evicted.
type ConversationStore struct {
	mu    sync.Mutex
	convs map[string]*Conversation
	max   int
	ttl   time.Duration
	now   func() time.Time
}

// StoreOption configures a ConversationStore.
type StoreOption func(*ConversationStore)

// WithMaxConversations sets the capacity. Non-positive values keep the default.
func WithMaxConversations(n int) StoreOption {
	return func(s *ConversationStore) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithConversationTTL sets the idle expiry. Non-positive values keep the default.
func WithConversationTTL(d time.Duration) StoreOption {
	return func(s *ConversationStore) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// NewConversationStore creates an empty store.
func NewConversationStore(opts ...StoreOption) *ConversationStore {
	s := &ConversationStore{
		convs: make(map[string]*Conversation),
		max:   DefaultMaxConversations,
		ttl:   DefaultConversationTTL,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// New returns a conversation with a fresh UUID without registering it.
func (s *ConversationStore) New() *Conversation {
	conv := NewConversation(uuid.NewString())
	conv.lastUsed = s.now()
	return conv
}

// Create starts and registers a conversation with a fresh UUID.
func (s *ConversationStore) Create() *Conversation {
	conv := s.New()
	s.Add(conv)
	return conv
}

// Add registers conv, evicting expired or least recently used conversations
// to stay within capacity.
func (s *ConversationStore) Add(conv *Conversation) {
	now := s.now()
	conv.touch(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	if _, ok := s.convs[conv.ID()]; !ok {
		for len(s.convs) >= s.max {
			s.evictOldestLocked()
		}
	}
	s.convs[conv.ID()] = conv
}

// Get looks a conversation up by ID. Expired conversations are not returned.
func (s *ConversationStore) Get(id string) (*Conversation, bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, false
	}
	if now.Sub(conv.LastUsed()) > s.ttl {
		delete(s.convs, id)
		return nil, false
	}
	conv.touch(now)
	return conv, true
}

// Delete removes a conversation, reporting whether it existed.
func (s *ConversationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return false
	}
	delete(s.convs, id)
	return true
}

// Len returns the number of live conversations.
func (s *ConversationStore) Len() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	return len(s.convs)
}

func (s *ConversationStore) pruneLocked(now time.Time) {
	for id, conv := range s.convs {
		if now.Sub(conv.LastUsed()) > s.ttl {
			delete(s.convs, id)
		}
	}
}

func (s *ConversationStore) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, conv := range s.convs {
		if used := conv.LastUsed(); oldestID == "" || used.Before(oldest) {
			oldestID, oldest = id, used
		}
	}
	delete(s.convs, oldestID)
}
