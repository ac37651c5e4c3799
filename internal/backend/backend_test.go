package backend

import (
	"errors"
	"testing"

	"msgharness/pkg/harness"
)

func TestSelectorResolve(t *testing.T) {
	selector, err := NewSelector(WithBackends(harness.Backend{
		Name:         "Local-Dev",
		RestURL:      "http://localhost:8080",
		WebSocketURL: "ws://localhost:8081",
	}))
	if err != nil {
		t.Fatalf("new selector: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		wantName string
		wantRest string
		wantErr  error
	}{
		{name: "empty resolves to default", input: "", wantName: NameStaging, wantRest: "https://staging-nginz-https.zinfra.io"},
		{name: "production", input: "production", wantName: NameProduction, wantRest: "https://prod-nginz-https.wire.com"},
		{name: "case and whitespace insensitive", input: "  STAGING ", wantName: NameStaging},
		{name: "custom backend", input: "local-dev", wantName: "local-dev", wantRest: "http://localhost:8080"},
		{name: "unknown backend", input: "mars", wantErr: harness.ErrValidation},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := selector.Resolve(testCase.input)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					t.Fatalf("error = %v, want %v", err, testCase.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != testCase.wantName {
				t.Fatalf("name = %q, want %q", got.Name, testCase.wantName)
			}
			if testCase.wantRest != "" && got.RestURL != testCase.wantRest {
				t.Fatalf("rest = %q, want %q", got.RestURL, testCase.wantRest)
			}
		})
	}
}

func TestNewSelectorValidation(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
	}{
		{name: "empty custom name", options: []Option{WithBackends(harness.Backend{RestURL: "a", WebSocketURL: "b"})}},
		{name: "missing rest url", options: []Option{WithBackends(harness.Backend{Name: "x", WebSocketURL: "b"})}},
		{name: "missing websocket url", options: []Option{WithBackends(harness.Backend{Name: "x", RestURL: "a"})}},
		{name: "unknown default", options: []Option{WithDefault("nowhere")}},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if _, err := NewSelector(testCase.options...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSelectorNamesAndDefault(t *testing.T) {
	t.Parallel()

	selector, err := NewSelector(WithDefault(NameLoopback))
	if err != nil {
		t.Fatalf("new selector: %v", err)
	}
	if selector.Default() != NameLoopback {
		t.Fatalf("default = %q, want %q", selector.Default(), NameLoopback)
	}

	got := selector.Names()
	want := []string{NameLoopback, NameProduction, NameStaging}
	if len(got) != len(want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for idx := range want {
		if got[idx] != want[idx] {
			t.Fatalf("names = %v, want %v", got, want)
		}
	}
}
