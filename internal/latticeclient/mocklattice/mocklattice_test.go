package mocklattice

import (
	"context"
	"errors"
	"testing"

	"github.com/wasmCloud/lattice-controller/internal/latticeclient"
	"github.com/wasmCloud/lattice-controller/internal/model"
)

func TestExecuteRecordsCallsAndReturnsSuccess(t *testing.T) {
	c := New()
	cmd := model.ScaleComponent{ComponentID: "MCOMP", Count: 3, HostID: "host-1"}

	res, err := latticeclient.Execute(context.Background(), c, cmd)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success")
	}
	if len(c.Calls) != 1 {
		t.Fatalf("expected one recorded call, got %d", len(c.Calls))
	}
}

func TestRejectProducesUnsuccessfulResult(t *testing.T) {
	c := New()
	c.Reject[model.CommandStartProvider] = true

	res, err := latticeclient.Execute(context.Background(), c, model.StartProvider{ProviderID: "VPROV"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success {
		t.Fatalf("expected unsuccessful result")
	}
}

func TestFailSimulatesTransportError(t *testing.T) {
	c := New()
	wantErr := errors.New("connection refused")
	c.Fail = func(model.Command) error { return wantErr }

	_, err := latticeclient.Execute(context.Background(), c, model.PutLink{Source: "MCOMP"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestGetInventoryMissingHostReturnsNotFound(t *testing.T) {
	c := New()
	_, err := c.GetInventory(context.Background(), "default", "missing-host")
	if err == nil {
		t.Fatalf("expected error for missing host")
	}
}
