package session

import (
	"context"
	"fmt"
	"log/slog"

	"msgharness/internal/session/loopback"
	"msgharness/pkg/harness"
)

// NewBuiltinRegistry constructs the provider registry with all built-in providers.
func NewBuiltinRegistry() (*Registry, error) {
	return NewRegistry([]Descriptor{
		{
			Type: loopback.ProviderType,
			Builder: func(
				_ context.Context,
				definition Definition,
				builderLogger *slog.Logger,
			) (harness.Connector, error) {
				hub, err := loopback.NewHubFromConfig(builderLogger, definition.Config)
				if err != nil {
					return nil, fmt.Errorf("build loopback hub from config: %w", err)
				}

				return hub, nil
			},
		},
	})
}
