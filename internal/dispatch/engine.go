package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/charlesng35/campusalert/internal/warnings"
	"github.com/charlesng35/campusalert/pkg/logger"
	"github.com/charlesng35/campusalert/pkg/metrics"
)

const (
	DefaultDailyQuota  = 3
	DefaultSendTimeout = 10 * time.Second
)

// FlushFailurePolicy decides what happens to a queued notification whose
// scheduled delivery fails.
type FlushFailurePolicy string

const (
	// FlushRequeue puts the notification back with its original position and age.
	FlushRequeue FlushFailurePolicy = "requeue"
	// FlushDiscard drops the notification after logging the failure.
	FlushDiscard FlushFailurePolicy = "discard"
)

// ParseFlushFailurePolicy accepts "requeue" or "discard". Empty input selects requeue.
func ParseFlushFailurePolicy(raw string) (FlushFailurePolicy, error) {
	switch FlushFailurePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FlushRequeue:
		return FlushRequeue, nil
	case FlushDiscard:
		return FlushDiscard, nil
	default:
		return FlushRequeue, fmt.Errorf("unknown flush failure policy %q", raw)
	}
}

// Config holds the engine tunables. Zero values fall back to defaults except
// DailyQuota, where zero leaves no instant sends for low priority notifications.
type Config struct {
	Policy       Policy
	DailyQuota   int
	SendTimeout  time.Duration
	FlushFailure FlushFailurePolicy
	Priorities   map[warnings.Category]Priority
	Clock        clockwork.Clock
	Logger       *zap.Logger
}

// Outcome reports what the engine did with a submitted warning.
type Outcome struct {
	Notification Notification `json:"notification"`
	Action       Action       `json:"action"`
	// SendErr is set when an instant send failed and the notification was queued instead.
	SendErr error `json:"-"`
}

// Status is a point-in-time view of the engine state.
type Status struct {
	QueueDepth     int            `json:"queue_depth"`
	Pending        []Notification `json:"pending"`
	QuotaUsed      int            `json:"quota_used"`
	QuotaLimit     int            `json:"quota_limit"`
	QuotaRemaining int            `json:"quota_remaining"`
}

// Engine owns the notification queue and daily quota. All mutations are
// serialised by a single mutex; gateway sends run outside it.
type Engine struct {
	mu      sync.Mutex
	queue   *Queue
	quota   Quota
	factory *Factory
	policy  Policy
	gateway Gateway

	sendTimeout  time.Duration
	flushFailure FlushFailurePolicy
	clock        clockwork.Clock
	log          *zap.Logger
}

// NewEngine constructs an engine delivering through gateway.
func NewEngine(gateway Gateway, cfg Config) (*Engine, error) {
	if gateway == nil {
		return nil, ErrGatewayRequired
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	flushFailure, err := ParseFlushFailurePolicy(string(cfg.FlushFailure))
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = logger.WithModule("dispatch")
	}

	return &Engine{
		queue:        NewQueue(),
		quota:        NewQuota(cfg.DailyQuota),
		factory:      NewFactory(cfg.Priorities, clock),
		policy:       cfg.Policy.withDefaults(),
		gateway:      gateway,
		sendTimeout:  timeout,
		flushFailure: flushFailure,
		clock:        clock,
		log:          log,
	}, nil
}

// Submit derives a notification from w and dispatches it. A failed instant
// send is not an error: the notification is queued and the failure recorded
// on the outcome. The returned error is non-nil only when ctx is already done.
func (e *Engine) Submit(ctx context.Context, w warnings.Warning) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	n := e.factory.Create(w)

	e.mu.Lock()
	action := e.policy.Evaluate(n, e.quota.Remaining(), e.clock.Now())
	metrics.DispatchDecisions.WithLabelValues(strings.ToLower(string(action))).Inc()

	switch action {
	case ActionDiscard:
		err := n.transition(StateDiscarded)
		e.mu.Unlock()
		e.log.Debug("notification discarded",
			zap.String("notification_id", n.ID),
			zap.String("category", string(n.Category)),
		)
		return Outcome{Notification: n, Action: action}, err
	case ActionEnqueue:
		err := e.enqueueLocked(&n)
		e.mu.Unlock()
		return Outcome{Notification: n, Action: action}, err
	}

	e.quota.reserve()
	e.mu.Unlock()

	sendErr := e.send(ctx, n)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.quota.release()

	if sendErr == nil {
		e.quota.consume()
		metrics.Deliveries.WithLabelValues("instant", "success").Inc()
		metrics.QuotaUsed.Set(float64(e.quota.Used()))
		return Outcome{Notification: n, Action: action}, n.transition(StateSent)
	}

	metrics.Deliveries.WithLabelValues("instant", "failure").Inc()
	e.log.Warn("instant send failed, queueing notification",
		zap.String("notification_id", n.ID),
		zap.Error(sendErr),
	)
	if err := e.enqueueLocked(&n); err != nil {
		return Outcome{Notification: n, Action: action, SendErr: sendErr}, err
	}
	return Outcome{Notification: n, Action: action, SendErr: sendErr}, nil
}

func (e *Engine) enqueueLocked(n *Notification) error {
	if err := n.transition(StateQueued); err != nil {
		return err
	}
	e.queue.Push(*n)
	metrics.QueueDepth.Set(float64(e.queue.Len()))
	return nil
}

// Evict expires every queued notification whose residency at now exceeds the
// maximum residency and returns them.
func (e *Engine) Evict(now time.Time) []Notification {
	e.mu.Lock()
	removed := e.queue.RemoveOlderThan(now, e.policy.MaxResidency)
	metrics.QueueDepth.Set(float64(e.queue.Len()))
	e.mu.Unlock()

	for i := range removed {
		if err := removed[i].transition(StateExpired); err != nil {
			e.log.Error("expire notification", zap.Error(err))
		}
	}
	if len(removed) > 0 {
		metrics.QueueEvictions.Add(float64(len(removed)))
		e.log.Info("expired queued notifications", zap.Int("count", len(removed)))
	}
	return removed
}

// Flush delivers the most urgent queued notification. It returns nil, nil when
// the queue is empty. On delivery failure the notification is requeued or
// discarded according to the flush failure policy and the failure is returned.
func (e *Engine) Flush(ctx context.Context) (*Notification, error) {
	e.mu.Lock()
	item, ok := e.queue.popEntry()
	metrics.QueueDepth.Set(float64(e.queue.Len()))
	e.mu.Unlock()
	if !ok {
		return nil, nil
	}

	n := item.notification
	sendErr := e.send(ctx, n)

	e.mu.Lock()
	defer e.mu.Unlock()

	if sendErr == nil {
		e.quota.consume()
		metrics.Deliveries.WithLabelValues("flush", "success").Inc()
		metrics.QuotaUsed.Set(float64(e.quota.Used()))
		err := n.transition(StateSent)
		return &n, err
	}

	metrics.Deliveries.WithLabelValues("flush", "failure").Inc()
	switch e.flushFailure {
	case FlushDiscard:
		if err := n.transition(StateDiscarded); err != nil {
			return &n, err
		}
		e.log.Warn("scheduled send failed, notification dropped",
			zap.String("notification_id", n.ID),
			zap.Error(sendErr),
		)
	default:
		e.queue.pushEntry(item)
		metrics.QueueDepth.Set(float64(e.queue.Len()))
		e.log.Warn("scheduled send failed, notification requeued",
			zap.String("notification_id", n.ID),
			zap.Error(sendErr),
		)
	}
	return &n, sendErr
}

// ResetQuota zeroes the daily send counter.
func (e *Engine) ResetQuota() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.quota.Reset()
	metrics.QuotaUsed.Set(0)
	e.log.Info("daily quota reset", zap.Int("limit", e.quota.Limit()))
}

// Status returns a snapshot of queue and quota state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending := e.queue.Snapshot()
	return Status{
		QueueDepth:     len(pending),
		Pending:        pending,
		QuotaUsed:      e.quota.Used(),
		QuotaLimit:     e.quota.Limit(),
		QuotaRemaining: e.quota.Remaining(),
	}
}

func (e *Engine) send(ctx context.Context, n Notification) error {
	sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	defer cancel()

	if err := e.gateway.Send(sendCtx, n); err != nil {
		return &DeliveryError{NotificationID: n.ID, Err: err}
	}
	return nil
}
