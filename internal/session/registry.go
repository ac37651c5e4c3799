// Package session maps configured session provider types to connector builders.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"msgharness/pkg/harness"
)

// Definition describes the configured session provider.
type Definition struct {
	// Type identifies which builder constructs the connector.
	Type string
	// Config stores provider-type-specific JSON payload.
	Config []byte
}

// BuilderFunc builds one connector from one definition.
type BuilderFunc func(ctx context.Context, definition Definition, logger *slog.Logger) (harness.Connector, error)

// Descriptor binds one provider type token to its builder.
type Descriptor struct {
	// Type is the provider type token from configuration (for example "loopback").
	Type string
	// Builder constructs the connector for this type.
	Builder BuilderFunc
}

// Registry maps provider types to connector builders.
type Registry struct {
	builders map[string]BuilderFunc
	types    []string
}

// NewRegistry creates one immutable provider registry from descriptors.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	builders := make(map[string]BuilderFunc, len(descriptors))
	types := make([]string, 0, len(descriptors))
	for _, descriptor := range descriptors {
		if descriptor.Type == "" {
			return nil, fmt.Errorf("new registry: empty descriptor type")
		}
		if descriptor.Builder == nil {
			return nil, fmt.Errorf("new registry type %s: nil builder", descriptor.Type)
		}
		if _, exists := builders[descriptor.Type]; exists {
			return nil, fmt.Errorf("new registry type %s: duplicate", descriptor.Type)
		}

		builders[descriptor.Type] = descriptor.Builder
		types = append(types, descriptor.Type)
	}
	sort.Strings(types)

	return &Registry{
		builders: builders,
		types:    types,
	}, nil
}

// Types returns all registered provider types in sorted order.
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}

	types := make([]string, len(r.types))
	copy(types, r.types)

	return types
}

// Build constructs the connector for definition.
func (r *Registry) Build(ctx context.Context, definition Definition, logger *slog.Logger) (harness.Connector, error) {
	if r == nil {
		return nil, fmt.Errorf("build session provider: nil registry")
	}

	providerType := strings.ToLower(strings.TrimSpace(definition.Type))
	if providerType == "" {
		return nil, fmt.Errorf("build session provider: empty type")
	}
	builder, exists := r.builders[providerType]
	if !exists {
		return nil, fmt.Errorf("build session provider %s: unsupported type (known: %s)",
			providerType, strings.Join(r.types, ", "))
	}
	if logger == nil {
		logger = slog.Default()
	}

	connector, err := builder(ctx, definition, logger)
	if err != nil {
		return nil, fmt.Errorf("build session provider %s: %w", providerType, err)
	}
	if connector == nil {
		return nil, fmt.Errorf("build session provider %s: nil connector", providerType)
	}

	return connector, nil
}
