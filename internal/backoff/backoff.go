package backoff

import (
	"context"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/wasmCloud/lattice-controller/internal/bus"
	"github.com/wasmCloud/lattice-controller/internal/cmn"
	"github.com/wasmCloud/lattice-controller/internal/logging"
	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/scaler"
)

// NotificationKind tags a cross-replica coordination message published on
// the manager's notifications subject (§4.4 "other replicas observing the
// notification apply the same expected-event list mutation").
type NotificationKind string

const (
	NotifyRegister NotificationKind = "register_expected_events"
	NotifyRemove   NotificationKind = "remove_expected_event"
	NotifyClear    NotificationKind = "clear_expected_events"
)

// Notification is the payload published and consumed on the notifications
// subject; ScalerID scopes it to the one logical scaler it concerns, since
// every replica runs its own Wrapper instance for the same scaler id.
type Notification struct {
	ScalerID string `json:"scaler_id"`
	// CorrelationID ties a Register/Remove/Clear triple together in logs
	// across replicas; it plays no role in list mutation itself.
	CorrelationID string           `json:"correlation_id"`
	Kind          NotificationKind `json:"kind"`
	Expectations  []Expectation    `json:"expectations,omitempty"` // Register
	Discharged    Expectation      `json:"discharged,omitempty"`   // Remove
}

// Wrapper wraps a Scaler with an expected-event list: while the list is
// non-empty, HandleEvent and Reconcile emit no commands except to drain a
// matching event, and a cleanup timer clears the list if nothing ever
// arrives to confirm or refute it (§4.4, §8 property 4).
type Wrapper struct {
	inner scaler.Scaler

	bus            bus.Bus
	notifySubject  bus.Subject
	cleanupTimeout time.Duration
	log            zerolog.Logger

	mu      sync.Mutex
	pending []Expectation
	timer   *time.Timer
}

func New(inner scaler.Scaler, lattice string, b bus.Bus, notifySubject bus.Subject, cleanupTimeout time.Duration) *Wrapper {
	return &Wrapper{
		inner:          inner,
		bus:            b,
		notifySubject:  notifySubject,
		cleanupTimeout: cleanupTimeout,
		log:            logging.ForScaler(lattice, "", inner.ID()),
	}
}

func (w *Wrapper) ID() string            { return w.inner.ID() }
func (w *Wrapper) Status() scaler.Status { return w.inner.Status() }

// UpdateConfig always takes effect: a manifest update supersedes whatever
// the scaler was previously settling.
func (w *Wrapper) UpdateConfig(ctx context.Context, spec model.ComponentSpec) ([]model.Command, error) {
	return w.settle(ctx, func() ([]model.Command, error) { return w.inner.UpdateConfig(ctx, spec) })
}

func (w *Wrapper) Reconcile(ctx context.Context) ([]model.Command, error) {
	if w.hasPending() {
		return nil, nil
	}
	return w.settle(ctx, func() ([]model.Command, error) { return w.inner.Reconcile(ctx) })
}

func (w *Wrapper) HandleEvent(ctx context.Context, ev model.Event) ([]model.Command, error) {
	if w.tryDrain(ctx, ev) {
		return nil, nil
	}
	if w.hasPending() {
		return nil, nil
	}
	return w.settle(ctx, func() ([]model.Command, error) { return w.inner.HandleEvent(ctx, ev) })
}

func (w *Wrapper) Cleanup(ctx context.Context) ([]model.Command, error) {
	commands, err := w.inner.Cleanup(ctx)
	w.clear(ctx)
	return commands, err
}

// Start subscribes to the notifications subject so this replica's copy of
// the expected-event list stays in sync with whichever replica actually
// issued the commands (§4.4). The returned error is only a subscribe
// failure; delivered notifications are applied in a background goroutine
// until ctx is cancelled.
func (w *Wrapper) Start(ctx context.Context) error {
	msgs, err := w.bus.Subscribe(ctx, w.notifySubject)
	if err != nil {
		return err
	}
	go func() {
		for msg := range msgs {
			var n Notification
			if err := jsoniter.Unmarshal(msg.Payload(), &n); err != nil {
				w.log.Warn().Err(err).Msg("discarding malformed backoff notification")
				msg.Ack(ctx)
				continue
			}
			if n.ScalerID == w.ID() {
				w.apply(n)
			}
			msg.Ack(ctx)
		}
	}()
	return nil
}

func (w *Wrapper) hasPending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending) > 0
}

// tryDrain checks ev against every pending expectation, removing and
// acknowledging the first match. It logs, but does not act on, a
// same-fingerprint-different-count near-miss (open question 1).
func (w *Wrapper) tryDrain(ctx context.Context, ev model.Event) bool {
	w.mu.Lock()
	for i, exp := range w.pending {
		if exp.matches(ev) {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			empty := len(w.pending) == 0
			if empty {
				w.stopTimerLocked()
			} else {
				w.armTimerLocked()
			}
			w.mu.Unlock()
			w.publish(ctx, Notification{ScalerID: w.ID(), CorrelationID: cmn.GenUUID(), Kind: NotifyRemove, Discharged: exp})
			return true
		}
		if exp.ambiguous(ev) {
			w.log.Warn().
				Str("event_kind", string(ev.Kind())).
				Msg("components-started matched fingerprint but not count while a scale command was outstanding")
		}
	}
	w.mu.Unlock()
	return false
}

// settle runs the scaler, derives an expectation for every command it
// returns that has a tracked counterpart event, and installs the result as
// the new pending list (replacing whatever was there, which settle's
// callers only invoke when that was empty — except UpdateConfig, which
// supersedes intentionally).
func (w *Wrapper) settle(ctx context.Context, run func() ([]model.Command, error)) ([]model.Command, error) {
	commands, err := run()
	if err != nil {
		return nil, err
	}

	var next []Expectation
	for _, cmd := range commands {
		if exp, ok := expectationsForCommand(cmd); ok {
			next = append(next, exp)
		}
	}

	w.mu.Lock()
	w.pending = next
	if len(next) > 0 {
		w.armTimerLocked()
	} else {
		w.stopTimerLocked()
	}
	w.mu.Unlock()

	if len(next) > 0 {
		w.publish(ctx, Notification{ScalerID: w.ID(), CorrelationID: cmn.GenUUID(), Kind: NotifyRegister, Expectations: next})
	}
	return commands, nil
}

// clear drops the pending list unconditionally, used both by the cleanup
// timer firing and by an explicit Cleanup call.
func (w *Wrapper) clear(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	w.pending = nil
	w.stopTimerLocked()
	w.mu.Unlock()
	w.publish(ctx, Notification{ScalerID: w.ID(), CorrelationID: cmn.GenUUID(), Kind: NotifyClear})
}

// apply replays a notification from another replica onto this replica's
// own list; it never re-publishes, since the notification it is applying
// already came from a publish.
func (w *Wrapper) apply(n Notification) {
	w.log.Debug().Str("correlation_id", n.CorrelationID).Str("kind", string(n.Kind)).Msg("applying cross-replica backoff notification")
	w.mu.Lock()
	defer w.mu.Unlock()
	switch n.Kind {
	case NotifyRegister:
		w.pending = n.Expectations
		if len(w.pending) > 0 {
			w.armTimerLocked()
		} else {
			w.stopTimerLocked()
		}
	case NotifyRemove:
		for i, exp := range w.pending {
			if expectationEqual(exp, n.Discharged) {
				w.pending = append(w.pending[:i], w.pending[i+1:]...)
				break
			}
		}
		if len(w.pending) == 0 {
			w.stopTimerLocked()
		} else {
			w.armTimerLocked()
		}
	case NotifyClear:
		w.pending = nil
		w.stopTimerLocked()
	}
}

// armTimerLocked (re)starts the cleanup timer; mu must be held. Firing
// clears the list unconditionally, the settling window's backstop against
// an event that never arrives (§4.4 "cleanup_timeout").
func (w *Wrapper) armTimerLocked() {
	w.stopTimerLocked()
	w.timer = time.AfterFunc(w.cleanupTimeout, func() {
		w.clear(context.Background())
	})
}

func (w *Wrapper) stopTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Wrapper) publish(ctx context.Context, n Notification) {
	payload, err := jsoniter.Marshal(n)
	if err != nil {
		w.log.Warn().Err(err).Msg("failed to marshal backoff notification")
		return
	}
	if err := w.bus.Publish(ctx, w.notifySubject, payload); err != nil {
		// Best-effort: the Store remains authoritative and a late or lost
		// notification only costs another replica a redundant reconcile.
		w.log.Warn().Err(err).Msg("failed to publish backoff notification")
	}
}
