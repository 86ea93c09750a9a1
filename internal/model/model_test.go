package model

import "testing"

func TestScalerIDRoundTrip(t *testing.T) {
	id := ScalerID("componentspread", "my-app", "echo")
	kind, manifest, ref, ok := SplitScalerID(id)
	if !ok {
		t.Fatalf("expected split ok")
	}
	if kind != "componentspread" || manifest != "my-app" || ref != "echo" {
		t.Fatalf("unexpected split: %s %s %s", kind, manifest, ref)
	}
}

func TestMergeAnnotationsManagedWins(t *testing.T) {
	user := map[string]string{"a": "user", "b": "user-only"}
	managed := map[string]string{"a": "managed"}
	out := MergeAnnotations(user, managed)
	if out["a"] != "managed" {
		t.Fatalf("expected managed annotation to win, got %q", out["a"])
	}
	if out["b"] != "user-only" {
		t.Fatalf("expected user-only annotation preserved")
	}
}

func TestComponentInstanceLifecycle(t *testing.T) {
	c := NewComponent("MCOMP")
	c.AddInstance("host-1", InstanceDescriptor{InstanceID: "i1"})
	c.AddInstance("host-1", InstanceDescriptor{InstanceID: "i2"})
	c.AddInstance("host-2", InstanceDescriptor{InstanceID: "i3"})

	if c.Count() != 3 {
		t.Fatalf("expected count 3, got %d", c.Count())
	}
	if c.HostCount("host-1") != 2 {
		t.Fatalf("expected 2 instances on host-1")
	}

	if !c.RemoveInstance("host-1", "i1") {
		t.Fatalf("expected removal to succeed")
	}
	if c.RemoveInstance("host-1", "does-not-exist") {
		t.Fatalf("expected removal of unknown instance to report false")
	}
	if c.Count() != 2 {
		t.Fatalf("expected count 2 after removal, got %d", c.Count())
	}

	c.RemoveHost("host-2")
	if _, ok := c.Instances["host-2"]; ok {
		t.Fatalf("expected host-2 entry removed")
	}
}

func TestProviderEmpty(t *testing.T) {
	p := NewProvider("VPROVIDER", "default")
	if !p.Empty() {
		t.Fatalf("new provider should be empty")
	}
	p.Hosts["host-1"] = ProviderPending
	if p.Empty() {
		t.Fatalf("provider with a host entry should not be empty")
	}
	if p.ID() != "VPROVIDER/default" {
		t.Fatalf("unexpected ID: %s", p.ID())
	}
}

func TestHostCloneIsIndependent(t *testing.T) {
	h := NewHost("host-1")
	h.Components["comp-a"] = 2
	clone := h.Clone()
	clone.Components["comp-a"] = 5

	if h.Components["comp-a"] != 2 {
		t.Fatalf("mutating clone should not affect original")
	}
}
