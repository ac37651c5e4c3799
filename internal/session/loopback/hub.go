// Package loopback is an in-process messaging backend.
//
// Every session logged into one Hub receives the payloads the other sessions
// send, in send order, through its own inbox worker.
package loopback

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"msgharness/pkg/harness"
)

const defaultInboxBuffer = 256

// invalidCredentialsMessage is returned verbatim to callers on rejected logins.
const invalidCredentialsMessage = "Invalid email or password"

// Account is one login accepted by the hub.
type Account struct {
	// Email is the login name, matched case-insensitively.
	Email string `json:"email"`
	// Password must match exactly.
	Password string `json:"password"`
	// UserID is optional; it defaults to a stable id derived from Email.
	UserID string `json:"user_id,omitempty"`
}

// Option mutates hub configuration.
type Option func(*Hub)

// WithAccounts restricts logins to the given accounts.
// A hub without accounts accepts any non-empty email.
func WithAccounts(accounts ...Account) Option {
	return func(hub *Hub) {
		for _, account := range accounts {
			email := normalizeEmail(account.Email)
			if email == "" {
				continue
			}
			hub.accounts[email] = account
		}
	}
}

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(hub *Hub) {
		if logger != nil {
			hub.logger = logger
		}
	}
}

// WithInboxBuffer sets the per-session queue length.
func WithInboxBuffer(buffer int) Option {
	return func(hub *Hub) {
		if buffer > 0 {
			hub.inboxBuffer = buffer
		}
	}
}

// WithClock overrides payload timestamps.
func WithClock(clock func() time.Time) Option {
	return func(hub *Hub) {
		if clock != nil {
			hub.clock = clock
		}
	}
}

// WithIDGenerator overrides message and client id generation.
func WithIDGenerator(newID func() string) Option {
	return func(hub *Hub) {
		if newID != nil {
			hub.newID = newID
		}
	}
}

// Hub is the shared in-process backend. It implements harness.Connector.
type Hub struct {
	logger      *slog.Logger
	clock       func() time.Time
	newID       func() string
	inboxBuffer int
	accounts    map[string]Account

	mu        sync.RWMutex
	listeners map[string]*Session
}

// NewHub creates an empty hub.
func NewHub(options ...Option) *Hub {
	hub := &Hub{
		logger:      slog.Default(),
		clock:       time.Now,
		newID:       uuid.NewString,
		inboxBuffer: defaultInboxBuffer,
		accounts:    make(map[string]Account),
		listeners:   make(map[string]*Session),
	}
	for _, option := range options {
		option(hub)
	}

	return hub
}

var _ harness.Connector = (*Hub)(nil)

// Login authenticates one account and returns a session that is not yet listening.
func (h *Hub) Login(
	ctx context.Context,
	backend harness.Backend,
	credentials harness.Credentials,
	device harness.DeviceInfo,
) (harness.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &harness.BackendError{
			Operation: harness.BackendOperationLogin,
			Kind:      harness.BackendErrorKindTransport,
			Backend:   backend.Name,
			Cause:     err,
		}
	}

	userID, err := h.authenticate(credentials)
	if err != nil {
		return nil, &harness.BackendError{
			Operation: harness.BackendOperationLogin,
			Kind:      harness.BackendErrorKindAuthentication,
			Backend:   backend.Name,
			Code:      http.StatusForbidden,
			Message:   invalidCredentialsMessage,
			Cause:     err,
		}
	}

	session := &Session{
		hub:      h,
		backend:  backend,
		device:   device,
		clientID: h.newID(),
		userID:   userID,
		handlers: make(map[harness.MessageKind][]harness.PayloadHandler),
	}
	h.logger.DebugContext(ctx,
		"loopback login",
		"backend", backend.Name,
		"client_id", session.clientID,
		"user_id", userID,
		"device_class", device.Class,
	)

	return session, nil
}

// Listeners returns the number of sessions currently receiving payloads.
func (h *Hub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.listeners)
}

func (h *Hub) authenticate(credentials harness.Credentials) (string, error) {
	email := normalizeEmail(credentials.Email)
	if email == "" {
		return "", errors.New("empty email")
	}
	if len(h.accounts) == 0 {
		return userIDFor(email), nil
	}

	account, exists := h.accounts[email]
	if !exists || account.Password != credentials.Password {
		return "", fmt.Errorf("account %s rejected", email)
	}
	if account.UserID != "" {
		return account.UserID, nil
	}

	return userIDFor(email), nil
}

func (h *Hub) register(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.listeners[session.clientID] = session
}

func (h *Hub) unregister(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.listeners, session.clientID)
}

// fanOut enqueues payload on every listening session except the sender.
// Sessions closing concurrently are skipped.
func (h *Hub) fanOut(ctx context.Context, sender *Session, payload harness.MessagePayload) error {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.listeners))
	for clientID, session := range h.listeners {
		if clientID == sender.clientID {
			continue
		}
		targets = append(targets, session)
	}
	h.mu.RUnlock()

	var errs []error
	for _, target := range targets {
		err := target.inbox.enqueue(ctx, payload.Clone())
		switch {
		case err == nil:
		case errors.Is(err, ErrInboxClosed):
			h.logger.DebugContext(ctx, "loopback skip closed inbox", "client_id", target.clientID)
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// upload stands in for the asset service: it assigns a key and the cipher material.
func (h *Hub) upload(content harness.AssetContent) (harness.AssetContent, error) {
	if content.Uploaded != nil && content.Uploaded.Key != "" {
		return content, nil
	}

	otrKey := make([]byte, 32)
	if _, err := rand.Read(otrKey); err != nil {
		return harness.AssetContent{}, fmt.Errorf("generate asset key: %w", err)
	}
	digest := sha256.Sum256(content.Data)
	content.Uploaded = &harness.AssetUploaded{
		Key:    "3-" + h.newID(),
		Token:  h.newID(),
		Domain: "loopback.local",
		OtrKey: otrKey,
		SHA256: digest[:],
	}

	return content, nil
}

func (h *Hub) reportAsyncError(ctx context.Context, scope string, err error) {
	h.logger.ErrorContext(ctx, "loopback delivery failed", "inbox", scope, "error", err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// userIDFor derives a stable user id so repeated logins share one identity.
func userIDFor(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
}
