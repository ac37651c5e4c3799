// Package instance owns the live client instances and their bounded message stores.
package instance

import (
	"sync"
	"sync/atomic"
	"time"

	"msgharness/internal/lru"
	"msgharness/pkg/harness"
)

// Instance is one logged-in client simulation.
//
// Identity fields are immutable after Create. Messages is mutated by both the
// correlator and explicit operations, always through MessageStore.Update.
type Instance struct {
	ID        string
	Name      string
	Backend   harness.Backend
	Session   harness.Session
	Messages  *MessageStore
	CreatedAt time.Time

	// opMu serializes send-then-store flows started through the registry.
	opMu    sync.Mutex
	closing atomic.Bool
}

// ClientID returns the session client id, or an empty string when no session is bound.
func (i *Instance) ClientID() string {
	if i == nil || i.Session == nil {
		return ""
	}

	return i.Session.ClientID()
}

// Closing reports whether a delete has started logging the session out.
func (i *Instance) Closing() bool {
	return i.closing.Load()
}

// MessageStore is one instance's bounded message cache behind its own lock.
type MessageStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, harness.MessagePayload]
}

// NewMessageStore creates a store holding at most capacity messages.
func NewMessageStore(capacity int) (*MessageStore, error) {
	cache, err := lru.New[string, harness.MessagePayload](capacity)
	if err != nil {
		return nil, err
	}

	return &MessageStore{cache: cache}, nil
}

// Update runs fn with exclusive access to the cache.
//
// The lock is released even when fn panics.
func (s *MessageStore) Update(fn func(cache harness.MessageCache)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.cache)
}

// Get returns a copy of one message without refreshing its recency.
func (s *MessageStore) Get(messageID string) (harness.MessagePayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, exists := s.cache.Peek(messageID)
	if !exists {
		return harness.MessagePayload{}, false
	}

	return payload.Clone(), true
}

// Contains reports whether messageID is resident.
func (s *MessageStore) Contains(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cache.Contains(messageID)
}

// Snapshot returns copies of all messages, most recently used first.
func (s *MessageStore) Snapshot() []harness.MessagePayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.cache.Snapshot()
	cloned := make([]harness.MessagePayload, 0, len(stored))
	for _, payload := range stored {
		cloned = append(cloned, payload.Clone())
	}

	return cloned
}

// Len returns the number of resident messages.
func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cache.Len()
}

// Capacity returns the store bound.
func (s *MessageStore) Capacity() int {
	return s.cache.Capacity()
}

// filterConversation keeps the payloads of one conversation; an empty id keeps all.
func filterConversation(payloads []harness.MessagePayload, conversationID string) []harness.MessagePayload {
	if conversationID == "" {
		return payloads
	}

	filtered := make([]harness.MessagePayload, 0, len(payloads))
	for _, payload := range payloads {
		if payload.ConversationID == conversationID {
			filtered = append(filtered, payload)
		}
	}

	return filtered
}
