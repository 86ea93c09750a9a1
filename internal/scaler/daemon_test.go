package scaler

import (
	"context"
	"testing"

	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/store"
)

func TestDaemonReconcileOneInstancePerEligibleHost(t *testing.T) {
	ctx := context.Background()
	m := newMemstore(t)

	for _, id := range []string{"host-1", "host-2", "host-3"} {
		if err := m.Store(ctx, lattice, store.KindHost, id, model.NewHost(id)); err != nil {
			t.Fatalf("store host %s: %v", id, err)
		}
	}

	spec := model.ComponentSpec{Name: "healthcheck", Kind: model.KindComponent, ImageRef: "registry/hc:0.1.0", Daemon: true}
	d := NewDaemon(lattice, "my-app", spec, m)

	commands, err := d.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(commands) != 3 {
		t.Fatalf("expected one command per host, got %d", len(commands))
	}
}

func TestDaemonReconcileStopsOnIneligibleHost(t *testing.T) {
	ctx := context.Background()
	m := newMemstore(t)

	spec := model.ComponentSpec{Name: "healthcheck", Kind: model.KindComponent, Daemon: true}
	d := NewDaemon(lattice, "my-app", spec, m)

	h := model.NewHost("host-1")
	if err := m.Store(ctx, lattice, store.KindHost, h.ID, h); err != nil {
		t.Fatalf("store host: %v", err)
	}

	c := model.NewComponent("healthcheck")
	c.AddInstance("host-1", model.InstanceDescriptor{InstanceID: "i1", Annotations: map[string]string{model.ScalerAnnotationKey: d.ID()}})
	if err := m.Store(ctx, lattice, store.KindComponent, c.ID, c); err != nil {
		t.Fatalf("store component: %v", err)
	}

	// No labels set on the host, so a label requirement makes it ineligible.
	d.spec.Spread = []model.SpreadConstraint{{Requirements: map[string]string{"zone": "us-east"}}}

	commands, err := d.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(commands) != 1 {
		t.Fatalf("expected one teardown command, got %d", len(commands))
	}
	if sc := commands[0].(model.ScaleComponent); sc.Count != 0 {
		t.Fatalf("expected scale-to-zero, got count %d", sc.Count)
	}
}
