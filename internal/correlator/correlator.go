package correlator

import (
	"context"
	"fmt"
	"log/slog"

	"msgharness/pkg/harness"
)

// Outcome reports what Apply did with one event.
type Outcome string

const (
	// OutcomeApplied means the store was mutated.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped means the event targeted entries that are not resident.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeIgnored means no rule exists for the event kind.
	OutcomeIgnored Outcome = "ignored"
)

// Store serializes mutations of one instance's message cache.
type Store interface {
	// Update runs fn with exclusive access to the cache.
	Update(fn func(cache harness.MessageCache))
}

// Observer receives one notification per applied event.
type Observer func(kind harness.MessageKind, outcome Outcome)

// Option mutates correlator configuration.
type Option func(*Correlator)

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(correlator *Correlator) {
		if logger != nil {
			correlator.logger = logger
		}
	}
}

// WithObserver registers an outcome observer, typically a metrics counter.
func WithObserver(observer Observer) Option {
	return func(correlator *Correlator) {
		if observer != nil {
			correlator.observer = observer
		}
	}
}

// Correlator holds the immutable mutation rule table keyed by event kind.
type Correlator struct {
	rules    map[harness.MessageKind]Rule
	logger   *slog.Logger
	observer Observer
}

// New creates a correlator with the default rule table.
func New(options ...Option) *Correlator {
	correlator := &Correlator{
		rules:    defaultRules(),
		logger:   slog.Default(),
		observer: func(harness.MessageKind, Outcome) {},
	}
	for _, option := range options {
		option(correlator)
	}

	return correlator
}

// Apply runs the one rule registered for payload.Kind against cache.
func (c *Correlator) Apply(cache harness.MessageCache, payload harness.MessagePayload) Outcome {
	if cache == nil {
		return OutcomeSkipped
	}

	rule, exists := c.rules[payload.Kind]
	if !exists {
		return OutcomeIgnored
	}

	return rule(cache, payload)
}

// Attach subscribes one handler per known kind on session.
//
// Each handler applies its payload under store's lock, so mutations of one
// store never interleave. Attach must be called before session.Listen.
func (c *Correlator) Attach(ctx context.Context, session harness.Session, store Store) error {
	if session == nil {
		return fmt.Errorf("attach correlator: nil session")
	}
	if store == nil {
		return fmt.Errorf("attach correlator: nil store")
	}

	clientID := session.ClientID()
	for _, kind := range harness.MessageKinds() {
		session.Subscribe(kind, c.handler(clientID, store))
	}
	c.logger.DebugContext(ctx, "correlator attached", "client_id", clientID)

	return nil
}

func (c *Correlator) handler(clientID string, store Store) harness.PayloadHandler {
	return func(ctx context.Context, payload harness.MessagePayload) {
		outcome := OutcomeSkipped
		err := runSafely(fmt.Sprintf("apply %s %s", payload.Kind, payload.ID), func() {
			store.Update(func(cache harness.MessageCache) {
				outcome = c.Apply(cache, payload)
			})
		})
		if err != nil {
			c.logger.ErrorContext(ctx,
				"correlator rule failed",
				"client_id", clientID,
				"kind", payload.Kind,
				"message_id", payload.ID,
				"error", err,
			)
		}

		c.observer(payload.Kind, outcome)
		c.logger.DebugContext(ctx,
			"event applied",
			"client_id", clientID,
			"kind", payload.Kind,
			"message_id", payload.ID,
			"conversation_id", payload.ConversationID,
			"outcome", outcome,
		)
	}
}

// runSafely converts a panic inside fn into an error tagged with scope.
func runSafely(scope string, fn func()) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
	}()

	fn()

	return nil
}
