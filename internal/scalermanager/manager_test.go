package scalermanager

import (
	"context"
	"testing"
	"time"

	"github.com/wasmCloud/lattice-controller/internal/backoff"
	"github.com/wasmCloud/lattice-controller/internal/bus"
	"github.com/wasmCloud/lattice-controller/internal/bus/membus"
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

func newManager(t *testing.T) *Manager {
	t.Helper()
	return New(lattice, newMemstore(t), membus.New(), bus.Subject("notifications.test"), time.Minute)
}

func webManifest(replicas int) model.Manifest {
	return model.Manifest{
		Name:    "my-app",
		Version: "v1",
		Components: []model.ComponentSpec{
			{Name: "web", Kind: model.KindComponent, ImageRef: "registry/web:0.1.0", Replicas: replicas},
		},
	}
}

func TestAddScalersReconcilesNewScalers(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	mem := m.store.(*memstore.MemStore)
	if err := mem.Store(ctx, lattice, store.KindHost, "host-1", model.NewHost("host-1")); err != nil {
		t.Fatalf("store host: %v", err)
	}

	commands, err := m.AddScalers(ctx, webManifest(1))
	if err != nil {
		t.Fatalf("add scalers: %v", err)
	}
	if len(commands) != 1 {
		t.Fatalf("expected 1 command from the initial reconcile, got %d", len(commands))
	}
	if got := m.GetScalers("my-app"); len(got) != 1 {
		t.Fatalf("expected 1 scaler tracked for the manifest, got %d", len(got))
	}
}

func TestAddScalersRenewsPersistingID(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	mem := m.store.(*memstore.MemStore)
	if err := mem.Store(ctx, lattice, store.KindHost, "host-1", model.NewHost("host-1")); err != nil {
		t.Fatalf("store host: %v", err)
	}

	if _, err := m.AddScalers(ctx, webManifest(1)); err != nil {
		t.Fatalf("add scalers: %v", err)
	}
	before := m.sets["my-app"]
	var beforeInstance *backoff.Wrapper
	for _, w := range before {
		beforeInstance = w
	}

	// A trivial edit (same component name, same id) should renew, not churn.
	if _, err := m.AddScalers(ctx, webManifest(2)); err != nil {
		t.Fatalf("add scalers again: %v", err)
	}
	after := m.sets["my-app"]
	if len(after) != 1 {
		t.Fatalf("expected exactly 1 scaler to persist, got %d", len(after))
	}
	for _, w := range after {
		if beforeInstance != w {
			t.Fatalf("expected the same scaler instance to be renewed in place, not replaced")
		}
	}
}

// seedManagedInstance writes a Component record as if a prior scale
// command for scalerID had already executed and its event had looped back
// through the State Projector, so a Cleanup pass has something to tear
// down (AddScalers/RemoveScalers never mutate the Store directly, only the
// command/event loop does).
func seedManagedInstance(t *testing.T, ctx context.Context, m *Manager, hostID, scalerID string) {
	t.Helper()
	mem := m.store.(*memstore.MemStore)
	if err := mem.Store(ctx, lattice, store.KindHost, hostID, model.NewHost(hostID)); err != nil {
		t.Fatalf("store host: %v", err)
	}
	c := model.NewComponent("web")
	c.AddInstance(hostID, model.InstanceDescriptor{InstanceID: "i1", Annotations: map[string]string{model.ScalerAnnotationKey: scalerID}})
	if err := mem.Store(ctx, lattice, store.KindComponent, c.ID, c); err != nil {
		t.Fatalf("store component: %v", err)
	}
}

func TestAddScalersCleansUpDroppedID(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	manifest := webManifest(1)
	scalers, _ := m.ScalersForManifest(manifest)
	var scalerID string
	for id := range scalers {
		scalerID = id
	}
	seedManagedInstance(t, ctx, m, "host-1", scalerID)

	if _, err := m.AddScalers(ctx, manifest); err != nil {
		t.Fatalf("add scalers: %v", err)
	}

	empty := model.Manifest{Name: "my-app", Version: "v2"}
	commands, err := m.AddScalers(ctx, empty)
	if err != nil {
		t.Fatalf("add scalers with empty manifest: %v", err)
	}
	if len(commands) != 1 {
		t.Fatalf("expected a teardown command for the dropped scaler, got %d", len(commands))
	}
	if got := m.GetScalers("my-app"); len(got) != 0 {
		t.Fatalf("expected no scalers left after the component was dropped, got %d", len(got))
	}
}

func TestRemoveScalersCleansUpEverything(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	manifest := webManifest(1)
	scalers, _ := m.ScalersForManifest(manifest)
	var scalerID string
	for id := range scalers {
		scalerID = id
	}
	seedManagedInstance(t, ctx, m, "host-1", scalerID)

	if _, err := m.AddScalers(ctx, manifest); err != nil {
		t.Fatalf("add scalers: %v", err)
	}
	commands, err := m.RemoveScalers(ctx, "my-app")
	if err != nil {
		t.Fatalf("remove scalers: %v", err)
	}
	if len(commands) != 1 {
		t.Fatalf("expected 1 teardown command, got %d", len(commands))
	}
	if got := m.GetScalers("my-app"); len(got) != 0 {
		t.Fatalf("expected the manifest's scaler set to be gone")
	}
	if all := m.GetAllScalers(); len(all) != 0 {
		t.Fatalf("expected no manifests tracked after removal, got %d", len(all))
	}
}
