// Package lru provides a fixed-capacity key/value cache with least-recently-used eviction.
package lru

import (
	"container/list"
	"errors"
	"fmt"
)

// DefaultCapacity is used by callers that do not configure a capacity.
const DefaultCapacity = 100

// ErrInvalidCapacity indicates a non-positive capacity.
var ErrInvalidCapacity = errors.New("lru: capacity must be > 0")

// Option mutates cache construction.
type Option[K comparable, V any] func(*Cache[K, V])

// WithEvictionCallback observes entries dropped because the cache exceeded capacity.
//
// The callback runs synchronously inside Set; explicit Delete calls do not trigger it.
func WithEvictionCallback[K comparable, V any](onEvict func(key K, value V)) Option[K, V] {
	return func(cache *Cache[K, V]) {
		if onEvict != nil {
			cache.onEvict = onEvict
		}
	}
}

// Entry is one key/value pair returned by Entries.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Cache is a bounded LRU map. It is not safe for concurrent use.
type Cache[K comparable, V any] struct {
	capacity int
	recency  *list.List
	index    map[K]*list.Element
	onEvict  func(K, V)
}

// New creates a cache holding at most capacity entries.
func New[K comparable, V any](capacity int, options ...Option[K, V]) (*Cache[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("new cache with capacity %d: %w", capacity, ErrInvalidCapacity)
	}

	cache := &Cache[K, V]{
		capacity: capacity,
		recency:  list.New(),
		index:    make(map[K]*list.Element, capacity),
	}
	for _, option := range options {
		option(cache)
	}

	return cache, nil
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	element, exists := c.index[key]
	if !exists {
		var zero V
		return zero, false
	}
	c.recency.MoveToFront(element)

	return entryOf[K, V](element).Value, true
}

// Peek returns the value for key without touching recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	element, exists := c.index[key]
	if !exists {
		var zero V
		return zero, false
	}

	return entryOf[K, V](element).Value, true
}

// Contains reports whether key is resident without touching recency.
func (c *Cache[K, V]) Contains(key K) bool {
	_, exists := c.index[key]

	return exists
}

// Set inserts or replaces key and marks it most recently used.
// It reports whether an entry was evicted to stay within capacity.
func (c *Cache[K, V]) Set(key K, value V) bool {
	if element, exists := c.index[key]; exists {
		entryOf[K, V](element).Value = value
		c.recency.MoveToFront(element)
		return false
	}

	c.index[key] = c.recency.PushFront(&Entry[K, V]{Key: key, Value: value})

	return c.trimToCapacity()
}

// Delete removes key and reports whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	element, exists := c.index[key]
	if !exists {
		return false
	}
	c.recency.Remove(element)
	delete(c.index, key)

	return true
}

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int {
	return len(c.index)
}

// Capacity returns the configured bound.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// Snapshot returns all values, most recently used first.
func (c *Cache[K, V]) Snapshot() []V {
	values := make([]V, 0, len(c.index))
	for element := c.recency.Front(); element != nil; element = element.Next() {
		values = append(values, entryOf[K, V](element).Value)
	}

	return values
}

// Entries returns all key/value pairs, most recently used first.
func (c *Cache[K, V]) Entries() []Entry[K, V] {
	entries := make([]Entry[K, V], 0, len(c.index))
	for element := c.recency.Front(); element != nil; element = element.Next() {
		entries = append(entries, *entryOf[K, V](element))
	}

	return entries
}

// Purge drops every entry without invoking the eviction callback.
func (c *Cache[K, V]) Purge() {
	c.recency.Init()
	c.index = make(map[K]*list.Element, c.capacity)
}

func (c *Cache[K, V]) trimToCapacity() bool {
	evicted := false
	for len(c.index) > c.capacity {
		back := c.recency.Back()
		if back == nil {
			break
		}
		oldest := entryOf[K, V](back)
		c.recency.Remove(back)
		delete(c.index, oldest.Key)
		evicted = true
		if c.onEvict != nil {
			c.onEvict(oldest.Key, oldest.Value)
		}
	}

	return evicted
}

func entryOf[K comparable, V any](element *list.Element) *Entry[K, V] {
	return element.Value.(*Entry[K, V])
}
