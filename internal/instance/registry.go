package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"msgharness/internal/correlator"
	"msgharness/internal/lru"
	"msgharness/internal/metrics"
	"msgharness/pkg/harness"
)

const (
	defaultMaxInstances      = 100
	defaultMessageCapacity   = lru.DefaultCapacity
	defaultEvictLogoutWindow = 10 * time.Second
)

// BackendResolver maps a symbolic backend name to its descriptor.
type BackendResolver interface {
	Resolve(name string) (harness.Backend, error)
}

// Option mutates registry configuration.
type Option func(*Registry)

// WithMaxInstances bounds how many instances the registry holds.
func WithMaxInstances(maxInstances int) Option {
	return func(registry *Registry) {
		if maxInstances > 0 {
			registry.maxInstances = maxInstances
		}
	}
}

// WithMessageCapacity bounds each instance's message store.
func WithMessageCapacity(capacity int) Option {
	return func(registry *Registry) {
		if capacity > 0 {
			registry.messageCapacity = capacity
		}
	}
}

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(registry *Registry) {
		if logger != nil {
			registry.logger = logger
		}
	}
}

// WithMetrics injects collectors.
func WithMetrics(collectors *metrics.Metrics) Option {
	return func(registry *Registry) {
		if collectors != nil {
			registry.metrics = collectors
		}
	}
}

// WithLogoutOnEvict makes capacity eviction log the evicted session out in the background.
func WithLogoutOnEvict(enabled bool) Option {
	return func(registry *Registry) {
		registry.logoutOnEvict = enabled
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(registry *Registry) {
		if clock != nil {
			registry.clock = clock
		}
	}
}

// WithIDGenerator overrides instance id generation.
func WithIDGenerator(newID func() string) Option {
	return func(registry *Registry) {
		if newID != nil {
			registry.newID = newID
		}
	}
}

// CreateOptions describes one instance to log in.
type CreateOptions struct {
	// Name is an optional operator label.
	Name string
	// Backend is the symbolic backend name; empty selects the default.
	Backend string
	// Credentials are forwarded to the connector.
	Credentials harness.Credentials
	// Device describes the simulated client.
	Device harness.DeviceInfo
}

// Registry is the bounded, process-wide map of live instances.
type Registry struct {
	backends        BackendResolver
	connector       harness.Connector
	correlator      *correlator.Correlator
	logger          *slog.Logger
	metrics         *metrics.Metrics
	clock           func() time.Time
	newID           func() string
	maxInstances    int
	messageCapacity int
	logoutOnEvict   bool

	mu        sync.Mutex
	instances *lru.Cache[string, *Instance]
	evicted   []*Instance

	evictions sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry(backends BackendResolver, connector harness.Connector, options ...Option) (*Registry, error) {
	if backends == nil {
		return nil, fmt.Errorf("new registry: nil backend resolver")
	}
	if connector == nil {
		return nil, fmt.Errorf("new registry: nil connector")
	}

	registry := &Registry{
		backends:        backends,
		connector:       connector,
		logger:          slog.Default(),
		clock:           time.Now,
		newID:           uuid.NewString,
		maxInstances:    defaultMaxInstances,
		messageCapacity: defaultMessageCapacity,
	}
	for _, option := range options {
		option(registry)
	}
	if registry.metrics == nil {
		registry.metrics = metrics.NewNop()
	}

	registry.correlator = correlator.New(
		correlator.WithLogger(registry.logger),
		correlator.WithObserver(func(kind harness.MessageKind, outcome correlator.Outcome) {
			registry.metrics.EventsApplied.WithLabelValues(string(kind), string(outcome)).Inc()
		}),
	)

	instances, err := lru.New[string, *Instance](
		registry.maxInstances,
		lru.WithEvictionCallback(func(_ string, evicted *Instance) {
			registry.evicted = append(registry.evicted, evicted)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("new registry: %w", err)
	}
	registry.instances = instances

	return registry, nil
}

// Create logs in a new client, starts its event delivery, and registers it.
//
// When the registry is full the least recently used instance is dropped.
func (r *Registry) Create(ctx context.Context, options CreateOptions) (string, error) {
	backend, err := r.backends.Resolve(options.Backend)
	if err != nil {
		return "", fmt.Errorf("create instance: %w", err)
	}

	session, err := r.connector.Login(ctx, backend, options.Credentials, options.Device)
	if err != nil {
		r.metrics.LoginFailures.WithLabelValues(backend.Name).Inc()
		if _, hasMessage := harness.UserMessage(err); hasMessage {
			return "", fmt.Errorf("backend %s: %w", backend.Name, err)
		}
		return "", err
	}

	store, err := NewMessageStore(r.messageCapacity)
	if err != nil {
		r.logoutQuietly(ctx, session)
		return "", fmt.Errorf("create instance: %w", err)
	}

	instance := &Instance{
		ID:        r.newID(),
		Name:      options.Name,
		Backend:   backend,
		Session:   session,
		Messages:  store,
		CreatedAt: r.clock(),
	}

	if err := r.correlator.Attach(ctx, session, store); err != nil {
		r.logoutQuietly(ctx, session)
		return "", fmt.Errorf("create instance %s: %w", instance.ID, err)
	}
	if err := session.Listen(ctx); err != nil {
		r.logoutQuietly(ctx, session)
		return "", fmt.Errorf("create instance %s: listen: %w", instance.ID, err)
	}

	r.mu.Lock()
	r.instances.Set(instance.ID, instance)
	evicted := r.evicted
	r.evicted = nil
	r.metrics.Instances.Set(float64(r.instances.Len()))
	r.mu.Unlock()

	r.metrics.InstancesCreated.Inc()
	for _, dropped := range evicted {
		r.handleEvicted(ctx, dropped)
	}

	r.logger.InfoContext(ctx,
		"instance created",
		"instance_id", instance.ID,
		"name", instance.Name,
		"backend", backend.Name,
		"client_id", session.ClientID(),
	)

	return instance.ID, nil
}

// Delete logs the instance out and removes it.
//
// If logout fails the instance stays registered. A second Delete while one is in
// progress fails with harness.ErrSessionNotReady.
func (r *Registry) Delete(ctx context.Context, instanceID string) error {
	r.mu.Lock()
	instance, exists := r.instances.Peek(instanceID)
	if !exists {
		r.mu.Unlock()
		return harness.NewInstanceNotFound(instanceID)
	}
	if !instance.closing.CompareAndSwap(false, true) {
		r.mu.Unlock()
		return fmt.Errorf("instance %s: delete in progress: %w", instanceID, harness.ErrSessionNotReady)
	}
	r.mu.Unlock()

	if err := instance.Session.Logout(ctx); err != nil {
		instance.closing.Store(false)
		return fmt.Errorf("delete instance %s: logout: %w", instanceID, err)
	}

	r.mu.Lock()
	r.instances.Delete(instanceID)
	r.metrics.Instances.Set(float64(r.instances.Len()))
	r.mu.Unlock()

	r.metrics.InstancesDeleted.Inc()
	r.logger.InfoContext(ctx, "instance deleted", "instance_id", instanceID)

	return nil
}

// Exists reports whether instanceID is registered without refreshing its recency.
func (r *Registry) Exists(instanceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.instances.Contains(instanceID)
}

// Get returns one instance and marks it most recently used.
func (r *Registry) Get(instanceID string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, exists := r.instances.Get(instanceID)
	if !exists {
		return nil, harness.NewInstanceNotFound(instanceID)
	}

	return instance, nil
}

// List returns every registered instance keyed by id.
func (r *Registry) List() map[string]*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	listed := make(map[string]*Instance, r.instances.Len())
	for _, entry := range r.instances.Entries() {
		listed[entry.Key] = entry.Value
	}

	return listed
}

// Len returns the number of registered instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.instances.Len()
}

// GetMessages returns the stored messages of one instance, most recently used first.
// An empty conversationID returns every stored message.
func (r *Registry) GetMessages(instanceID string, conversationID string) ([]harness.MessagePayload, error) {
	instance, err := r.Get(instanceID)
	if err != nil {
		return nil, err
	}

	return filterConversation(instance.Messages.Snapshot(), conversationID), nil
}

// Shutdown logs out every instance and waits for background eviction logouts.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	entries := r.instances.Entries()
	r.instances.Purge()
	r.mu.Unlock()

	var errs []error
	for _, entry := range entries {
		entry.Value.closing.Store(true)
		if err := entry.Value.Session.Logout(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logout instance %s: %w", entry.Key, err))
		}
	}
	r.metrics.Instances.Set(0)

	waitDone := make(chan struct{})
	go func() {
		r.evictions.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait eviction logouts: %w", ctx.Err()))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown registry: %w", errors.Join(errs...))
	}
	r.logger.InfoContext(ctx, "registry shut down", "instances", len(entries))

	return nil
}

func (r *Registry) handleEvicted(ctx context.Context, instance *Instance) {
	r.metrics.InstancesEvicted.Inc()
	r.logger.WarnContext(ctx,
		"instance evicted at capacity",
		"instance_id", instance.ID,
		"client_id", instance.ClientID(),
		"max_instances", r.maxInstances,
		"logout", r.logoutOnEvict,
	)
	if !r.logoutOnEvict {
		return
	}

	instance.closing.Store(true)
	r.evictions.Add(1)
	go func() {
		defer r.evictions.Done()

		logoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultEvictLogoutWindow)
		defer cancel()
		if err := instance.Session.Logout(logoutCtx); err != nil {
			r.logger.WarnContext(logoutCtx,
				"evicted instance logout failed",
				"instance_id", instance.ID,
				"error", err,
			)
		}
	}()
}

func (r *Registry) logoutQuietly(ctx context.Context, session harness.Session) {
	if err := session.Logout(ctx); err != nil {
		r.logger.WarnContext(ctx, "logout after failed create", "client_id", session.ClientID(), "error", err)
	}
}
