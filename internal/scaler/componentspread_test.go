package scaler

import (
	"context"
	"testing"

	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/store"
	"github.com/wasmCloud/lattice-controller/internal/store/memstore"
)

const lattice = "default"

func newMemstore(t *testing.T) *memstore.MemStore {
	t.Helper()
	m, err := memstore.Open(":memory:")
	if err != nil {
		t.Fatalf("open memstore: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// TestReconcileSpreadsEvenlyAcrossTwoHosts mirrors the end-to-end scenario:
// two hosts, four desired instances, zero running: reconcile emits exactly
// two scale-component commands, one per host with count 2.
func TestReconcileSpreadsEvenlyAcrossTwoHosts(t *testing.T) {
	ctx := context.Background()
	m := newMemstore(t)

	for _, id := range []string{"host-1", "host-2"} {
		if err := m.Store(ctx, lattice, store.KindHost, id, model.NewHost(id)); err != nil {
			t.Fatalf("store host %s: %v", id, err)
		}
	}

	spec := model.ComponentSpec{Name: "echo", ImageRef: "registry/echo:0.1.0", Replicas: 4}
	s := NewComponentSpread(lattice, "my-app", spec, m)

	commands, err := s.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(commands) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(commands))
	}
	for _, cmd := range commands {
		sc := cmd.(model.ScaleComponent)
		if sc.Count != 2 {
			t.Fatalf("expected count 2 per host, got %d on %s", sc.Count, sc.HostID)
		}
	}
	if s.Status().Phase != Compensating {
		t.Fatalf("expected compensating status, got %v", s.Status().Phase)
	}
}

func TestReconcileNoEligibleHostsFails(t *testing.T) {
	ctx := context.Background()
	m := newMemstore(t)

	spec := model.ComponentSpec{
		Name: "echo", ImageRef: "registry/echo:0.1.0", Replicas: 2,
		Spread: []model.SpreadConstraint{{Requirements: map[string]string{"zone": "us-east"}}},
	}
	s := NewComponentSpread(lattice, "my-app", spec, m)

	commands, err := s.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(commands) != 0 {
		t.Fatalf("expected no commands, got %d", len(commands))
	}
	if s.Status().Phase != Failed {
		t.Fatalf("expected failed status, got %v", s.Status().Phase)
	}
}

func TestReconcileIsIdempotentOnceSatisfied(t *testing.T) {
	ctx := context.Background()
	m := newMemstore(t)
	if err := m.Store(ctx, lattice, store.KindHost, "host-1", model.NewHost("host-1")); err != nil {
		t.Fatalf("store host: %v", err)
	}

	spec := model.ComponentSpec{Name: "echo", ImageRef: "registry/echo:0.1.0", Replicas: 2}
	s := NewComponentSpread(lattice, "my-app", spec, m)

	first, err := s.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected one scale command, got %d", len(first))
	}

	// Simulate the resulting instances landing in the Store (what the
	// Event Worker would do after a matching ComponentsStarted event).
	c := model.NewComponent("echo")
	scalerID := s.ID()
	c.AddInstance("host-1", model.InstanceDescriptor{InstanceID: "i1", Annotations: map[string]string{model.ScalerAnnotationKey: scalerID}})
	c.AddInstance("host-1", model.InstanceDescriptor{InstanceID: "i2", Annotations: map[string]string{model.ScalerAnnotationKey: scalerID}})
	if err := m.Store(ctx, lattice, store.KindComponent, c.ID, c); err != nil {
		t.Fatalf("store component: %v", err)
	}

	second, err := s.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected no further commands once satisfied, got %d", len(second))
	}
	if s.Status().Phase != Ready {
		t.Fatalf("expected ready status, got %v", s.Status().Phase)
	}
}

func TestCleanupScalesDownManagedInstances(t *testing.T) {
	ctx := context.Background()
	m := newMemstore(t)

	spec := model.ComponentSpec{Name: "echo", ImageRef: "registry/echo:0.1.0", Replicas: 1}
	s := NewComponentSpread(lattice, "my-app", spec, m)
	scalerID := s.ID()

	c := model.NewComponent("echo")
	c.AddInstance("host-1", model.InstanceDescriptor{InstanceID: "i1", Annotations: map[string]string{model.ScalerAnnotationKey: scalerID}})
	if err := m.Store(ctx, lattice, store.KindComponent, c.ID, c); err != nil {
		t.Fatalf("store component: %v", err)
	}

	commands, err := s.Cleanup(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if len(commands) != 1 {
		t.Fatalf("expected one teardown command, got %d", len(commands))
	}
	if sc := commands[0].(model.ScaleComponent); sc.Count != 0 || sc.HostID != "host-1" {
		t.Fatalf("expected scale-to-zero on host-1, got %+v", sc)
	}
	if s.Status().Phase != Undeployed {
		t.Fatalf("expected undeployed status, got %v", s.Status().Phase)
	}
}
