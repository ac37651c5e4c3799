// Package backend resolves symbolic backend names to endpoint descriptors.
package backend

import (
	"fmt"
	"sort"
	"strings"

	"msgharness/pkg/harness"
)

const (
	// NameProduction is the public production backend.
	NameProduction = "production"
	// NameStaging is the shared staging backend.
	NameStaging = "staging"
	// NameLoopback is the in-process loopback backend.
	NameLoopback = "loopback"
)

// Builtin returns the descriptors every selector knows about.
func Builtin() []harness.Backend {
	return []harness.Backend{
		{
			Name:         NameProduction,
			RestURL:      "https://prod-nginz-https.wire.com",
			WebSocketURL: "wss://prod-nginz-ssl.wire.com",
		},
		{
			Name:         NameStaging,
			RestURL:      "https://staging-nginz-https.zinfra.io",
			WebSocketURL: "wss://staging-nginz-ssl.zinfra.io",
		},
		{
			Name:         NameLoopback,
			RestURL:      "loopback://local",
			WebSocketURL: "loopback://local/events",
		},
	}
}

// Option mutates selector construction.
type Option func(*selectorConfig)

type selectorConfig struct {
	defaultName string
	custom      []harness.Backend
}

// WithDefault selects which backend an empty name resolves to.
func WithDefault(name string) Option {
	return func(cfg *selectorConfig) {
		if name = normalizeName(name); name != "" {
			cfg.defaultName = name
		}
	}
}

// WithBackends adds or overrides descriptors.
func WithBackends(backends ...harness.Backend) Option {
	return func(cfg *selectorConfig) {
		cfg.custom = append(cfg.custom, backends...)
	}
}

// Selector is an immutable name to descriptor table.
type Selector struct {
	defaultName string
	byName      map[string]harness.Backend
	names       []string
}

// NewSelector builds a selector from built-in and configured descriptors.
func NewSelector(options ...Option) (*Selector, error) {
	cfg := selectorConfig{defaultName: NameStaging}
	for _, option := range options {
		option(&cfg)
	}

	byName := make(map[string]harness.Backend)
	for _, descriptor := range Builtin() {
		byName[descriptor.Name] = descriptor
	}
	for index, descriptor := range cfg.custom {
		descriptor.Name = normalizeName(descriptor.Name)
		if descriptor.Name == "" {
			return nil, fmt.Errorf("new selector backends[%d]: empty name", index)
		}
		if descriptor.RestURL == "" {
			return nil, fmt.Errorf("new selector backend %s: empty rest url", descriptor.Name)
		}
		if descriptor.WebSocketURL == "" {
			return nil, fmt.Errorf("new selector backend %s: empty websocket url", descriptor.Name)
		}
		byName[descriptor.Name] = descriptor
	}
	if _, exists := byName[cfg.defaultName]; !exists {
		return nil, fmt.Errorf("new selector: unknown default backend %s", cfg.defaultName)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Selector{
		defaultName: cfg.defaultName,
		byName:      byName,
		names:       names,
	}, nil
}

// Resolve returns the descriptor for name; an empty name resolves to the default.
func (s *Selector) Resolve(name string) (harness.Backend, error) {
	if s == nil {
		return harness.Backend{}, fmt.Errorf("resolve backend: nil selector")
	}

	name = normalizeName(name)
	if name == "" {
		name = s.defaultName
	}
	descriptor, exists := s.byName[name]
	if !exists {
		return harness.Backend{}, fmt.Errorf("resolve backend %q: %w", name, harness.ErrValidation)
	}

	return descriptor, nil
}

// Default returns the default backend name.
func (s *Selector) Default() string {
	return s.defaultName
}

// Names returns all known backend names in sorted order.
func (s *Selector) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)

	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
