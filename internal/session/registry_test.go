package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"msgharness/internal/session/loopback"
	"msgharness/pkg/harness"
)

func TestNewRegistryRejectsInvalidDescriptors(t *testing.T) {
	t.Parallel()

	builder := func(context.Context, Definition, *slog.Logger) (harness.Connector, error) {
		return loopback.NewHub(), nil
	}

	tests := []struct {
		name        string
		descriptors []Descriptor
		wantErr     string
	}{
		{
			name:        "empty type",
			descriptors: []Descriptor{{Builder: builder}},
			wantErr:     "empty descriptor type",
		},
		{
			name:        "nil builder",
			descriptors: []Descriptor{{Type: "x"}},
			wantErr:     "nil builder",
		},
		{
			name:        "duplicate",
			descriptors: []Descriptor{{Type: "x", Builder: builder}, {Type: "x", Builder: builder}},
			wantErr:     "duplicate",
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewRegistry(testCase.descriptors)
			if err == nil || !strings.Contains(err.Error(), testCase.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, testCase.wantErr)
			}
		})
	}
}

func TestBuildPropagatesBuilderErrors(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry([]Descriptor{{
		Type: "broken",
		Builder: func(context.Context, Definition, *slog.Logger) (harness.Connector, error) {
			return nil, errors.New("broken build")
		},
	}})
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}

	if _, err := registry.Build(context.Background(), Definition{Type: "broken"}, nil); err == nil {
		t.Fatal("expected build error")
	}
	if _, err := registry.Build(context.Background(), Definition{Type: "unknown"}, nil); err == nil {
		t.Fatal("expected unsupported type error")
	}
	if _, err := registry.Build(context.Background(), Definition{}, nil); err == nil {
		t.Fatal("expected empty type error")
	}
}

func TestBuiltinRegistryBuildsLoopback(t *testing.T) {
	t.Parallel()

	registry, err := NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("new builtin registry failed: %v", err)
	}
	if got := registry.Types(); len(got) != 1 || got[0] != loopback.ProviderType {
		t.Fatalf("types = %v, want [%s]", got, loopback.ProviderType)
	}

	connector, err := registry.Build(context.Background(), Definition{
		Type:   " Loopback ",
		Config: []byte(`{"accounts":[{"email":"a@example.com","password":"pw"}],"inbox_buffer":8}`),
	}, slog.Default())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	_, err = connector.Login(context.Background(), harness.Backend{Name: "loopback"}, harness.Credentials{
		Email:    "a@example.com",
		Password: "nope",
	}, harness.DeviceInfo{})
	if !errors.Is(err, harness.ErrAuthentication) {
		t.Fatalf("login error = %v, want ErrAuthentication", err)
	}

	if _, err := registry.Build(context.Background(), Definition{
		Type:   loopback.ProviderType,
		Config: []byte(`{"accounts":[{"password":"pw"}]}`),
	}, nil); err == nil {
		t.Fatal("expected config validation error")
	}
}
