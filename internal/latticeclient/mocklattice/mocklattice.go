// Package mocklattice is a test double for the Lattice Client capability:
// every call records its invocation and returns a canned Result, with an
// optional per-kind failure injection hook for exercising nack paths.
package mocklattice

import (
	"context"
	"sync"

	"github.com/wasmCloud/lattice-controller/internal/claims"
	"github.com/wasmCloud/lattice-controller/internal/latticeclient"
	"github.com/wasmCloud/lattice-controller/internal/model"
)

type Client struct {
	mu sync.Mutex

	// Calls records every command passed to Execute, in order.
	Calls []model.Command

	// Fail, when non-nil, is consulted before each call; returning a
	// non-nil error simulates a transport failure instead of a
	// {success: false} control response.
	Fail func(model.Command) error

	// Reject marks command kinds that should return {success: false}.
	Reject map[model.CommandKind]bool

	ComponentClaims []claims.ComponentClaims
	ProviderClaims  []claims.ProviderClaims
	Inventories     map[string]latticeclient.Inventory
}

func New() *Client {
	return &Client{
		Reject:      make(map[model.CommandKind]bool),
		Inventories: make(map[string]latticeclient.Inventory),
	}
}

func (c *Client) record(cmd model.Command) (latticeclient.Result, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, cmd)
	c.mu.Unlock()

	if c.Fail != nil {
		if err := c.Fail(cmd); err != nil {
			return latticeclient.Result{}, err
		}
	}
	if c.Reject[cmd.Kind()] {
		return latticeclient.Result{Success: false, Message: "rejected by lattice"}, nil
	}
	return latticeclient.Result{Success: true}, nil
}

func (c *Client) ScaleComponent(_ context.Context, cmd model.ScaleComponent) (latticeclient.Result, error) {
	return c.record(cmd)
}

func (c *Client) StartProvider(_ context.Context, cmd model.StartProvider) (latticeclient.Result, error) {
	return c.record(cmd)
}

func (c *Client) StopProvider(_ context.Context, cmd model.StopProvider) (latticeclient.Result, error) {
	return c.record(cmd)
}

func (c *Client) PutLink(_ context.Context, cmd model.PutLink) (latticeclient.Result, error) {
	return c.record(cmd)
}

func (c *Client) DeleteLink(_ context.Context, cmd model.DeleteLink) (latticeclient.Result, error) {
	return c.record(cmd)
}

func (c *Client) PutConfig(_ context.Context, cmd model.PutConfig) (latticeclient.Result, error) {
	return c.record(cmd)
}

func (c *Client) DeleteConfig(_ context.Context, cmd model.DeleteConfig) (latticeclient.Result, error) {
	return c.record(cmd)
}

func (c *Client) GetClaims(_ context.Context, _ string) ([]claims.ComponentClaims, []claims.ProviderClaims, error) {
	return c.ComponentClaims, c.ProviderClaims, nil
}

func (c *Client) GetInventory(_ context.Context, _, hostID string) (latticeclient.Inventory, error) {
	inv, ok := c.Inventories[hostID]
	if !ok {
		return latticeclient.Inventory{}, latticeclient.ErrHostNotFound(hostID)
	}
	return inv, nil
}

var _ latticeclient.Client = (*Client)(nil)
