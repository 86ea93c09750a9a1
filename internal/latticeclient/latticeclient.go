// Package latticeclient defines the Lattice Client capability (§6): the
// control calls the core issues against a wasmCloud lattice, plus the
// inventory/claims reads the State Projector's reconcile pass needs.
package latticeclient

import (
	"context"

	"github.com/wasmCloud/lattice-controller/internal/claims"
	"github.com/wasmCloud/lattice-controller/internal/cmn"
	"github.com/wasmCloud/lattice-controller/internal/model"
)

// ErrHostNotFound reports that get_inventory was called for a host the
// lattice does not know about; treated as a missing-entity read (§7), not
// a hard failure.
func ErrHostNotFound(hostID string) error {
	return cmn.NewNotFoundError("host %s", hostID)
}

// Result is the {success, message} pair every control call returns (§6).
type Result struct {
	Success bool
	Message string
}

// Inventory is a host's self-reported state, as returned by get_inventory
// and mirrored into HostHeartbeat events. Components reports, per
// component id, every instance the host is actually running — the
// divergence sweep diffs this against the Store's own record of the same
// host rather than trusting a bare count (§4.1 "Store agrees with
// inventory after a heartbeat").
type Inventory struct {
	Host       model.Host
	Components map[string][]model.InstanceDescriptor
	Providers  []model.ProviderDescriptor
}

// Client is the capability every control call in the core goes through.
// Implementations talk to a real lattice (NATS-fronted control API in
// wasmCloud) or, in tests, simulate one.
type Client interface {
	ScaleComponent(ctx context.Context, cmd model.ScaleComponent) (Result, error)
	StartProvider(ctx context.Context, cmd model.StartProvider) (Result, error)
	StopProvider(ctx context.Context, cmd model.StopProvider) (Result, error)
	PutLink(ctx context.Context, cmd model.PutLink) (Result, error)
	DeleteLink(ctx context.Context, cmd model.DeleteLink) (Result, error)
	PutConfig(ctx context.Context, cmd model.PutConfig) (Result, error)
	DeleteConfig(ctx context.Context, cmd model.DeleteConfig) (Result, error)

	GetClaims(ctx context.Context, lattice string) ([]claims.ComponentClaims, []claims.ProviderClaims, error)
	GetInventory(ctx context.Context, lattice, hostID string) (Inventory, error)
}

// Execute dispatches cmd to the matching Client method, the one call site
// the Command Worker needs regardless of command variant (§4.7 "each
// command variant maps to one control call").
func Execute(ctx context.Context, c Client, cmd model.Command) (Result, error) {
	switch v := cmd.(type) {
	case model.ScaleComponent:
		return c.ScaleComponent(ctx, v)
	case model.StartProvider:
		return c.StartProvider(ctx, v)
	case model.StopProvider:
		return c.StopProvider(ctx, v)
	case model.PutLink:
		return c.PutLink(ctx, v)
	case model.DeleteLink:
		return c.DeleteLink(ctx, v)
	case model.PutConfig:
		return c.PutConfig(ctx, v)
	case model.DeleteConfig:
		return c.DeleteConfig(ctx, v)
	default:
		return Result{}, errUnknownCommand{cmd}
	}
}

type errUnknownCommand struct{ cmd model.Command }

func (e errUnknownCommand) Error() string {
	if e.cmd == nil {
		return "lattice client: nil command"
	}
	return "lattice client: unknown command kind " + string(e.cmd.Kind())
}
