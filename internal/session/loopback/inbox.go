package loopback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"msgharness/pkg/harness"
)

// ErrInboxClosed indicates that a session inbox no longer accepts payloads.
var ErrInboxClosed = errors.New("loopback: inbox closed")

// inbox owns one session's ordered delivery queue and its single worker.
// Queue closure is driven by context cancellation rather than channel close.
type inbox struct {
	name     string
	queue    chan harness.MessagePayload
	dispatch func(ctx context.Context, payload harness.MessagePayload)
	onError  func(ctx context.Context, scope string, err error)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

func newInbox(
	name string,
	buffer int,
	dispatch func(ctx context.Context, payload harness.MessagePayload),
	onError func(ctx context.Context, scope string, err error),
) *inbox {
	inboxCtx, cancel := context.WithCancel(context.Background())

	return &inbox{
		name:     name,
		queue:    make(chan harness.MessagePayload, buffer),
		dispatch: dispatch,
		onError:  onError,
		ctx:      inboxCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// start launches the worker. A single worker keeps delivery in enqueue order.
func (b *inbox) start() {
	go b.run()
}

// enqueue waits for queue capacity, caller cancellation, or inbox closure.
func (b *inbox) enqueue(ctx context.Context, payload harness.MessagePayload) error {
	if b.closed.Load() {
		return fmt.Errorf("enqueue %s: %w", b.name, ErrInboxClosed)
	}

	select {
	case b.queue <- payload:
		return nil
	case <-b.ctx.Done():
		return fmt.Errorf("enqueue %s: %w", b.name, ErrInboxClosed)
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", b.name, ctx.Err())
	}
}

func (b *inbox) run() {
	defer close(b.done)

	for {
		select {
		case <-b.ctx.Done():
			return
		case payload := <-b.queue:
			scope := fmt.Sprintf("inbox %s deliver %s %s", b.name, payload.Kind, payload.ID)
			if err := runSafely(scope, func() {
				b.dispatch(b.ctx, payload)
			}); err != nil && b.onError != nil {
				b.onError(b.ctx, b.name, err)
			}
		}
	}
}

func (b *inbox) signalClose() {
	b.once.Do(func() {
		b.closed.Store(true)
		b.cancel()
	})
}

// shutdown stops the worker and waits for it, or returns when ctx expires.
// Payloads still queued are dropped.
func (b *inbox) shutdown(ctx context.Context) error {
	b.signalClose()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown inbox %s: %w", b.name, ctx.Err())
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
