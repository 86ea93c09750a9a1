package scaler

import (
	"context"

	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/store"
)

// Config ensures a named configuration blob exists with the declared
// properties (§4.3 "Config scaler"). Like Link, configuration is not a
// Store entity; reconcile unconditionally (re-)asserts it via put_config.
type Config struct {
	lattice      string
	manifestName string
	store        store.Store
	spec         model.ConfigSpec
	status       Status
}

func NewConfig(lattice, manifestName string, spec model.ConfigSpec, s store.Store) *Config {
	return &Config{
		lattice:      lattice,
		manifestName: manifestName,
		store:        s,
		spec:         spec,
		status:       Status{Phase: Ready},
	}
}

func (c *Config) ID() string {
	return model.ScalerID("config", c.manifestName, c.spec.Name)
}

func (c *Config) Status() Status { return c.status }

func (c *Config) UpdateConfig(ctx context.Context, spec model.ComponentSpec) ([]model.Command, error) {
	for _, cs := range spec.Config {
		if cs.Name == c.spec.Name {
			c.spec = cs
			break
		}
	}
	return c.Reconcile(ctx)
}

func (c *Config) HandleEvent(ctx context.Context, ev model.Event) ([]model.Command, error) {
	return nil, nil
}

func (c *Config) Reconcile(ctx context.Context) ([]model.Command, error) {
	c.status = Status{Phase: Compensating}
	cmd := model.PutConfig{
		CommandMeta: model.CommandMeta{LatticeID: c.lattice, Annotations: managedAnnotations(nil, c.manifestName, c.ID())},
		Name:        c.spec.Name,
		Properties:  c.spec.Properties,
	}
	return []model.Command{cmd}, nil
}

func (c *Config) Cleanup(ctx context.Context) ([]model.Command, error) {
	c.status = Status{Phase: Undeployed}
	cmd := model.DeleteConfig{
		CommandMeta: model.CommandMeta{LatticeID: c.lattice, Annotations: managedAnnotations(nil, c.manifestName, c.ID())},
		Name:        c.spec.Name,
	}
	return []model.Command{cmd}, nil
}
