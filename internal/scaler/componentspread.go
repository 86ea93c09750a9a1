package scaler

import (
	"context"
	"sort"

	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/store"
)

// ComponentSpread ensures a declared count of component instances exist on
// hosts satisfying label constraints (§4.3 "Component spread scaler").
type ComponentSpread struct {
	lattice      string
	manifestName string
	store        store.Store
	spec         model.ComponentSpec
	status       Status
}

func NewComponentSpread(lattice, manifestName string, spec model.ComponentSpec, s store.Store) *ComponentSpread {
	return &ComponentSpread{
		lattice:      lattice,
		manifestName: manifestName,
		store:        s,
		spec:         spec,
		status:       Status{Phase: Ready},
	}
}

func (c *ComponentSpread) ID() string {
	return model.ScalerID("componentspread", c.manifestName, c.spec.Name)
}

func (c *ComponentSpread) Status() Status { return c.status }

func (c *ComponentSpread) UpdateConfig(ctx context.Context, spec model.ComponentSpec) ([]model.Command, error) {
	c.spec = spec
	return c.Reconcile(ctx)
}

// HandleEvent re-derives the desired placement whenever an event could have
// disturbed this facet; the Backoff Wrapper suppresses the redundant
// recomputation while settling (§4.4).
func (c *ComponentSpread) HandleEvent(ctx context.Context, ev model.Event) ([]model.Command, error) {
	switch ev.(type) {
	case model.ComponentsStarted, model.ComponentsStopped, model.ComponentsStartFailed,
		model.HostStarted, model.HostStopped, model.HostHeartbeat:
		return c.Reconcile(ctx)
	default:
		return nil, nil
	}
}

func (c *ComponentSpread) Reconcile(ctx context.Context) ([]model.Command, error) {
	managedByHost, err := c.managedCounts(ctx)
	if err != nil {
		c.status = Status{Phase: Failed, Message: err.Error()}
		return nil, err
	}

	requirements := mergedRequirements(c.spec.Spread)
	candidates, err := eligibleHosts(ctx, c.store, c.lattice, requirements, func(hostID string) int {
		return managedByHost[hostID]
	})
	if err != nil {
		c.status = Status{Phase: Failed, Message: err.Error()}
		return nil, err
	}

	if len(candidates) == 0 && c.spec.Replicas > 0 {
		c.status = Status{Phase: Failed, Message: "no hosts satisfy spread constraints"}
		return nil, nil
	}

	desired := distribute(c.spec.Replicas, candidates)

	var commands []model.Command
	seen := make(map[string]bool, len(desired))
	for hostID, want := range desired {
		seen[hostID] = true
		if managedByHost[hostID] == want {
			continue
		}
		commands = append(commands, c.scaleCommand(hostID, want))
	}
	// Hosts this scaler still manages instances on but that are no longer
	// eligible (dropped constraint, or excess beyond desired total) scale to
	// zero.
	for hostID, n := range managedByHost {
		if n > 0 && !seen[hostID] {
			commands = append(commands, c.scaleCommand(hostID, 0))
		}
	}

	sort.Slice(commands, func(i, j int) bool {
		return commands[i].(model.ScaleComponent).HostID < commands[j].(model.ScaleComponent).HostID
	})

	if len(commands) > 0 {
		c.status = Status{Phase: Compensating}
	} else {
		c.status = Status{Phase: Ready}
	}
	return commands, nil
}

func (c *ComponentSpread) Cleanup(ctx context.Context) ([]model.Command, error) {
	managedByHost, err := c.managedCounts(ctx)
	if err != nil {
		return nil, err
	}
	var commands []model.Command
	for hostID, n := range managedByHost {
		if n > 0 {
			commands = append(commands, c.scaleCommand(hostID, 0))
		}
	}
	c.status = Status{Phase: Undeployed}
	return commands, nil
}

func (c *ComponentSpread) scaleCommand(hostID string, count int) model.Command {
	return model.ScaleComponent{
		CommandMeta: model.CommandMeta{
			LatticeID:   c.lattice,
			Annotations: managedAnnotations(c.spec.Annotations, c.manifestName, c.ID()),
		},
		ComponentID: c.spec.Name,
		ImageRef:    c.spec.ImageRef,
		HostID:      hostID,
		Count:       count,
	}
}

// managedCounts counts, per host, the instances across every component in
// the Store whose descriptor carries this scaler's managed annotation.
func (c *ComponentSpread) managedCounts(ctx context.Context) (map[string]int, error) {
	var components map[string]*model.Component
	if err := c.store.List(ctx, c.lattice, store.KindComponent, &components); err != nil {
		return nil, err
	}
	out := make(map[string]int)
	scalerID := c.ID()
	for _, comp := range components {
		for hostID, byInstance := range comp.Instances {
			for _, inst := range byInstance {
				if inst.Annotations[model.ScalerAnnotationKey] == scalerID {
					out[hostID]++
				}
			}
		}
	}
	return out, nil
}

// distribute spreads total instances across candidates as evenly as
// possible, assigning the remainder to the hosts earliest in tie-break
// order (fewest managed, then lexicographic id) first.
func distribute(total int, candidates []hostCandidate) map[string]int {
	out := make(map[string]int, len(candidates))
	if len(candidates) == 0 || total <= 0 {
		return out
	}
	base := total / len(candidates)
	remainder := total % len(candidates)
	for i, cand := range candidates {
		n := base
		if i < remainder {
			n++
		}
		out[cand.host.ID] = n
	}
	return out
}
