package loopback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"msgharness/pkg/harness"
)

type sessionState int

const (
	stateLoggedIn sessionState = iota
	stateListening
	stateClosed
)

// Session is one client logged into a Hub.
type Session struct {
	hub      *Hub
	backend  harness.Backend
	device   harness.DeviceInfo
	clientID string
	userID   string

	mu       sync.RWMutex
	state    sessionState
	handlers map[harness.MessageKind][]harness.PayloadHandler
	inbox    *inbox
}

var _ harness.Session = (*Session)(nil)

// ClientID returns the registered client id.
func (s *Session) ClientID() string {
	return s.clientID
}

// UserID returns the logged-in user id.
func (s *Session) UserID() string {
	return s.userID
}

// Subscribe registers handler for one kind. Handlers of one kind run in registration order.
func (s *Session) Subscribe(kind harness.MessageKind, handler harness.PayloadHandler) {
	if handler == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[kind] = append(s.handlers[kind], handler)
}

// Listen starts the inbox worker and joins the hub fan-out. Calling it twice is a no-op.
func (s *Session) Listen(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateListening:
		s.mu.Unlock()
		return nil
	case stateClosed:
		s.mu.Unlock()
		return s.notReady(harness.BackendOperationListen)
	}
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return &harness.BackendError{
			Operation: harness.BackendOperationListen,
			Kind:      harness.BackendErrorKindTransport,
			Backend:   s.backend.Name,
			Cause:     err,
		}
	}

	s.inbox = newInbox(s.clientID, s.hub.inboxBuffer, s.dispatch, s.hub.reportAsyncError)
	s.inbox.start()
	s.state = stateListening
	s.mu.Unlock()

	s.hub.register(s)
	s.hub.logger.DebugContext(ctx, "loopback listening", "client_id", s.clientID)

	return nil
}

// Send stamps payload, fans it out to the other listening sessions, and returns it.
func (s *Session) Send(ctx context.Context, payload harness.MessagePayload) (harness.MessagePayload, error) {
	if !s.listening() {
		return harness.MessagePayload{}, s.notReady(harness.BackendOperationSend)
	}
	if err := payload.Validate(); err != nil {
		return harness.MessagePayload{}, err
	}

	sent := payload.Clone()
	if sent.ID == "" {
		sent.ID = s.hub.newID()
	}
	sent.From = s.userID
	sent.Timestamp = s.hub.clock().UTC()
	sent.Confirmations = nil
	sent.Reactions = nil

	if content, isAsset := sent.Content.(harness.AssetContent); isAsset {
		uploaded, err := s.hub.upload(content)
		if err != nil {
			return harness.MessagePayload{}, s.transportError(harness.BackendOperationSend, err)
		}
		sent.Content = uploaded
	}

	if err := s.hub.fanOut(ctx, s, sent); err != nil {
		return harness.MessagePayload{}, s.transportError(harness.BackendOperationSend, err)
	}

	return sent, nil
}

// Fingerprint returns the hex SHA-256 of the client id.
func (s *Session) Fingerprint(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", s.transportError(harness.BackendOperationFingerprint, err)
	}

	s.mu.RLock()
	closed := s.state == stateClosed
	s.mu.RUnlock()
	if closed {
		return "", s.notReady(harness.BackendOperationFingerprint)
	}

	digest := sha256.Sum256([]byte(s.clientID))

	return hex.EncodeToString(digest[:]), nil
}

// Logout leaves the hub and waits for the inbox worker. Calling it twice is a no-op.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return nil
	}
	wasListening := s.state == stateListening
	s.state = stateClosed
	inbox := s.inbox
	s.mu.Unlock()

	if !wasListening {
		return nil
	}

	s.hub.unregister(s)
	if err := inbox.shutdown(ctx); err != nil {
		return s.transportError(harness.BackendOperationLogout, err)
	}
	s.hub.logger.DebugContext(ctx, "loopback logout", "client_id", s.clientID)

	return nil
}

// dispatch runs on the inbox worker.
func (s *Session) dispatch(ctx context.Context, payload harness.MessagePayload) {
	s.mu.RLock()
	handlers := append([]harness.PayloadHandler(nil), s.handlers[payload.Kind]...)
	s.mu.RUnlock()

	for _, handler := range handlers {
		handler(ctx, payload)
	}
}

func (s *Session) listening() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == stateListening
}

func (s *Session) notReady(operation harness.BackendOperation) error {
	return fmt.Errorf("loopback %s client %s: %w", operation, s.clientID, harness.ErrSessionNotReady)
}

func (s *Session) transportError(operation harness.BackendOperation, cause error) error {
	return &harness.BackendError{
		Operation: operation,
		Kind:      harness.BackendErrorKindTransport,
		Backend:   s.backend.Name,
		Cause:     cause,
	}
}
