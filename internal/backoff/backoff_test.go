package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmCloud/lattice-controller/internal/bus/membus"
	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/scaler"
)

const testLattice = "default"

// fakeScaler is a minimal Scaler whose Reconcile/HandleEvent results are
// scripted by the test, so the Wrapper's suppression logic can be checked
// in isolation from any real scaler's placement math.
type fakeScaler struct {
	id            string
	reconcileCmds []model.Command
	reconcileCall int
	eventCalls    int
}

func (f *fakeScaler) ID() string            { return f.id }
func (f *fakeScaler) Status() scaler.Status { return scaler.Status{Phase: scaler.Ready} }
func (f *fakeScaler) UpdateConfig(ctx context.Context, spec model.ComponentSpec) ([]model.Command, error) {
	return nil, nil
}
func (f *fakeScaler) HandleEvent(ctx context.Context, ev model.Event) ([]model.Command, error) {
	f.eventCalls++
	return nil, nil
}
func (f *fakeScaler) Reconcile(ctx context.Context) ([]model.Command, error) {
	f.reconcileCall++
	return f.reconcileCmds, nil
}
func (f *fakeScaler) Cleanup(ctx context.Context) ([]model.Command, error) { return nil, nil }

func scaleCommand(hostID string, count int) model.ScaleComponent {
	return model.ScaleComponent{
		CommandMeta: model.CommandMeta{
			LatticeID:   testLattice,
			Annotations: map[string]string{model.ManifestAnnotationKey: "my-app", model.ScalerAnnotationKey: "componentspread-my-app-web"},
		},
		ComponentID: "web",
		ImageRef:    "registry/web:0.1.0",
		HostID:      hostID,
		Count:       count,
	}
}

func startedEvent(hostID string, count int) model.ComponentsStarted {
	return model.ComponentsStarted{
		Meta: model.Meta{
			LatticeID:   testLattice,
			Annotations: map[string]string{model.ManifestAnnotationKey: "my-app", model.ScalerAnnotationKey: "componentspread-my-app-web"},
		},
		HostID:   hostID,
		ImageRef: "registry/web:0.1.0",
		Count:    count,
	}
}

func TestReconcileSuppressedWhilePending(t *testing.T) {
	ctx := context.Background()
	inner := &fakeScaler{id: "componentspread-my-app-web", reconcileCmds: []model.Command{scaleCommand("host-1", 2)}}
	b := membus.New()
	w := New(inner, testLattice, b, "notifications.test", time.Minute)

	commands, err := w.Reconcile(ctx)
	require.NoError(t, err)
	assert.Len(t, commands, 1)

	commands, err = w.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, commands, "reconcile should be suppressed while pending")
	assert.Equal(t, 1, inner.reconcileCall, "inner scaler should only reconcile once")
}

func TestMatchingEventDrainsExpectation(t *testing.T) {
	ctx := context.Background()
	inner := &fakeScaler{id: "componentspread-my-app-web", reconcileCmds: []model.Command{scaleCommand("host-1", 2)}}
	b := membus.New()
	w := New(inner, testLattice, b, "notifications.test", time.Minute)

	_, err := w.Reconcile(ctx)
	require.NoError(t, err)

	commands, err := w.HandleEvent(ctx, startedEvent("host-1", 2))
	require.NoError(t, err)
	assert.Empty(t, commands, "a draining event should produce no commands")
	assert.False(t, w.hasPending(), "expectation list should be empty after a matching event")

	// With the list drained, the next reconcile reaches the inner scaler.
	_, err = w.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.reconcileCall, "inner scaler should reconcile again after drain")
}

func TestNonMatchingEventLeavesExpectationPending(t *testing.T) {
	ctx := context.Background()
	inner := &fakeScaler{id: "componentspread-my-app-web", reconcileCmds: []model.Command{scaleCommand("host-1", 2)}}
	b := membus.New()
	w := New(inner, testLattice, b, "notifications.test", time.Minute)

	_, err := w.Reconcile(ctx)
	require.NoError(t, err)

	// Different host: does not discharge the pending expectation.
	_, err = w.HandleEvent(ctx, startedEvent("host-2", 2))
	require.NoError(t, err)
	assert.True(t, w.hasPending(), "expectation list should still be pending")
	assert.Zero(t, inner.eventCalls, "inner scaler should not be invoked while suppressed")
}

func TestCleanupClearsPendingList(t *testing.T) {
	ctx := context.Background()
	inner := &fakeScaler{id: "componentspread-my-app-web", reconcileCmds: []model.Command{scaleCommand("host-1", 2)}}
	b := membus.New()
	w := New(inner, testLattice, b, "notifications.test", time.Minute)

	_, err := w.Reconcile(ctx)
	require.NoError(t, err)
	_, err = w.Cleanup(ctx)
	require.NoError(t, err)
	assert.False(t, w.hasPending(), "cleanup should clear the pending list")
}

func TestCleanupTimeoutClearsPendingList(t *testing.T) {
	ctx := context.Background()
	inner := &fakeScaler{id: "componentspread-my-app-web", reconcileCmds: []model.Command{scaleCommand("host-1", 2)}}
	b := membus.New()
	w := New(inner, testLattice, b, "notifications.test", 20*time.Millisecond)

	_, err := w.Reconcile(ctx)
	require.NoError(t, err)
	require.True(t, w.hasPending(), "expected a pending expectation right after reconcile")

	deadline := time.Now().Add(time.Second)
	for w.hasPending() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, w.hasPending(), "cleanup timer should clear the pending list")
}

func TestCrossReplicaNotificationSyncsSecondWrapper(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := membus.New()
	innerA := &fakeScaler{id: "componentspread-my-app-web", reconcileCmds: []model.Command{scaleCommand("host-1", 2)}}
	innerB := &fakeScaler{id: "componentspread-my-app-web"}
	wa := New(innerA, testLattice, b, "notifications.test", time.Minute)
	wb := New(innerB, testLattice, b, "notifications.test", time.Minute)

	require.NoError(t, wb.Start(ctx))

	_, err := wa.Reconcile(ctx)
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for !wb.hasPending() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, wb.hasPending(), "replica b should learn the expectation via notification")

	// Replica a drains its own copy off the same real event, publishing a
	// remove notification of its own; replica b must discharge via the
	// fingerprint predicate rather than a list position, since the two
	// replicas' removals race independently (§5 cross-replica convergence).
	_, err = wa.HandleEvent(ctx, startedEvent("host-1", 2))
	require.NoError(t, err)

	_, err = wb.HandleEvent(ctx, startedEvent("host-1", 2))
	require.NoError(t, err)
	assert.False(t, wb.hasPending(), "replica b should drain its own copy of the expectation")

	deadline = time.Now().Add(time.Second)
	for wa.hasPending() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, wa.hasPending(), "replica a should have drained its own copy of the expectation")
}
