package instance

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"msgharness/internal/backend"
	"msgharness/pkg/harness"
)

type fakeConnector struct {
	mu        sync.Mutex
	loginErr  error
	listenErr error
	sessions  []*fakeSession
}

func (c *fakeConnector) Login(
	_ context.Context,
	_ harness.Backend,
	credentials harness.Credentials,
	_ harness.DeviceInfo,
) (harness.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loginErr != nil {
		return nil, c.loginErr
	}
	session := &fakeSession{
		clientID:  fmt.Sprintf("client-%d", len(c.sessions)+1),
		userID:    "user-" + credentials.Email,
		handlers:  make(map[harness.MessageKind][]harness.PayloadHandler),
		listenErr: c.listenErr,
	}
	c.sessions = append(c.sessions, session)

	return session, nil
}

func (c *fakeConnector) session(idx int) *fakeSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sessions[idx]
}

type fakeSession struct {
	clientID  string
	userID    string
	listenErr error

	mu          sync.Mutex
	handlers    map[harness.MessageKind][]harness.PayloadHandler
	listening   bool
	logouts     int
	logoutErr   error
	logoutGate  chan struct{}
	sendErr     error
	sent        []harness.MessagePayload
	nextMessage int
}

func (s *fakeSession) ClientID() string { return s.clientID }

func (s *fakeSession) UserID() string { return s.userID }

func (s *fakeSession) Subscribe(kind harness.MessageKind, handler harness.PayloadHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[kind] = append(s.handlers[kind], handler)
}

func (s *fakeSession) Listen(context.Context) error {
	if s.listenErr != nil {
		return s.listenErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listening = true

	return nil
}

func (s *fakeSession) Send(_ context.Context, payload harness.MessagePayload) (harness.MessagePayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.listening {
		return harness.MessagePayload{}, harness.ErrSessionNotReady
	}
	if s.sendErr != nil {
		return harness.MessagePayload{}, s.sendErr
	}

	sent := payload.Clone()
	if sent.ID == "" {
		s.nextMessage++
		sent.ID = fmt.Sprintf("%s-msg-%d", s.clientID, s.nextMessage)
	}
	sent.From = s.userID
	if content, isAsset := sent.Content.(harness.AssetContent); isAsset {
		content.Uploaded = &harness.AssetUploaded{
			Key:    "asset-key",
			OtrKey: []byte("otr"),
			SHA256: []byte("sha"),
		}
		sent.Content = content
	}
	s.sent = append(s.sent, sent)

	return sent, nil
}

func (s *fakeSession) Fingerprint(context.Context) (string, error) {
	return "fp-" + s.clientID, nil
}

func (s *fakeSession) Logout(ctx context.Context) error {
	s.mu.Lock()
	gate := s.logoutGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logouts++
	if s.logoutErr != nil {
		return s.logoutErr
	}
	s.listening = false

	return nil
}

func (s *fakeSession) logoutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.logouts
}

func (s *fakeSession) sentPayloads() []harness.MessagePayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]harness.MessagePayload(nil), s.sent...)
}

// deliver runs the subscribed handlers synchronously, as one inbound event.
func (s *fakeSession) deliver(payload harness.MessagePayload) {
	s.mu.Lock()
	handlers := append([]harness.PayloadHandler(nil), s.handlers[payload.Kind]...)
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(context.Background(), payload)
	}
}

func newTestRegistry(t *testing.T, connector harness.Connector, options ...Option) *Registry {
	t.Helper()

	selector, err := backend.NewSelector()
	if err != nil {
		t.Fatalf("new selector failed: %v", err)
	}
	registry, err := NewRegistry(selector, connector, options...)
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}
	t.Cleanup(func() {
		_ = registry.Shutdown(context.Background())
	})

	return registry
}

func mustCreate(t *testing.T, registry *Registry, email string) string {
	t.Helper()

	instanceID, err := registry.Create(context.Background(), CreateOptions{
		Name:        email,
		Credentials: harness.Credentials{Email: email, Password: "pw"},
		Device:      harness.DeviceInfo{Class: harness.DeviceClassDesktop},
	})
	if err != nil {
		t.Fatalf("create %s failed: %v", email, err)
	}

	return instanceID
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	next := 0

	return func() string {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("instance-%d", next)
	}
}
