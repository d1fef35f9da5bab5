package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sink delivers envelopes to an external system.
type Sink interface {
	Deliver(ctx context.Context, env Envelope) error
}

type SinkFunc func(ctx context.Context, env Envelope) error

func (f SinkFunc) Deliver(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

const (
	defaultQueueSize       = 1024
	defaultWorkers         = 4
	defaultDeliveryTimeout = 5 * time.Second
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher is a bounded in-process queue drained by a worker pool.
// Publish never blocks: when the queue is full the event is dropped and
// counted.
type Dispatcher struct {
	sink            Sink
	queue           chan Envelope
	workers         int
	deliveryTimeout time.Duration

	published *metrics.Counter
	dropped   *metrics.Counter
	delivered *metrics.Counter
	failed    *metrics.Counter

	mu      sync.RWMutex
	closed  atomic.Bool
	started atomic.Bool
	group   *errgroup.Group
}

type Option func(*Dispatcher)

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Envelope, n)
		}
	}
}

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithDeliveryTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.deliveryTimeout = t
		}
	}
}

func NewDispatcher(sink Sink, reg *metrics.Registry, opts ...Option) *Dispatcher {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	d := &Dispatcher{
		sink:            sink,
		queue:           make(chan Envelope, defaultQueueSize),
		workers:         defaultWorkers,
		deliveryTimeout: defaultDeliveryTimeout,
		published:       reg.Counter("events.published"),
		dropped:         reg.Counter("events.dropped"),
		delivered:       reg.Counter("events.delivered"),
		failed:          reg.Counter("events.failed"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the workers. It is a no-op when called twice.
func (d *Dispatcher) Start() {
	if !d.started.CompareAndSwap(false, true) {
		return
	}

	d.group = &errgroup.Group{}
	for i := 0; i < d.workers; i++ {
		d.group.Go(func() error {
			for env := range d.queue {
				d.deliver(env)
			}
			return nil
		})
	}

	logger.L().Info("event dispatcher started",
		zap.Int("workers", d.workers),
		zap.Int("queue_size", cap(d.queue)),
	)
}

func (d *Dispatcher) deliver(env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), d.deliveryTimeout)
	defer cancel()

	if err := d.sink.Deliver(ctx, env); err != nil {
		d.failed.Inc()
		logger.L().Warn("event delivery failed",
			zap.String("topic", env.Topic),
			zap.String("key", env.Key),
			zap.Error(err),
		)
		return
	}
	d.delivered.Inc()
}

// Publish enqueues env and reports whether it was accepted.
func (d *Dispatcher) Publish(env Envelope) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed.Load() {
		d.dropped.Inc()
		return false
	}

	select {
	case d.queue <- env:
		d.published.Inc()
		return true
	default:
		d.dropped.Inc()
		logger.L().Warn("event queue full, dropping event",
			zap.String("topic", env.Topic),
			zap.String("key", env.Key),
		)
		return false
	}
}

// Close stops accepting events and waits for queued ones to drain or ctx to
// expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed.CompareAndSwap(false, true) {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	close(d.queue)
	d.mu.Unlock()

	if !d.started.Load() {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- d.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) Notifier() Notifier {
	return &dispatchNotifier{d: d}
}

func (d *Dispatcher) ViewTracker() ViewTracker {
	return &dispatchViewTracker{d: d}
}

type dispatchNotifier struct {
	d *Dispatcher
}

func (n *dispatchNotifier) Notify(msg Notification) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	key := msg.OrderID
	if key == "" {
		key = msg.OwnerKey
	}
	n.d.Publish(Envelope{Topic: TopicNotifications, Key: key, Payload: msg})
}

type dispatchViewTracker struct {
	d *Dispatcher
}

func (t *dispatchViewTracker) RecordView(v ShareView) {
	if v.ViewedAt.IsZero() {
		v.ViewedAt = time.Now().UTC()
	}
	t.d.Publish(Envelope{Topic: TopicShareViews, Key: v.ShareToken, Payload: v})
}
