package scaler

import (
	"context"
	"sort"

	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/store"
)

// Daemon ensures exactly one instance of a component or provider runs on
// every host matching the constraints (§4.3 "Component/provider daemon
// scaler"), regardless of the spec's Replicas field.
type Daemon struct {
	lattice      string
	manifestName string
	store        store.Store
	spec         model.ComponentSpec
	status       Status
}

func NewDaemon(lattice, manifestName string, spec model.ComponentSpec, s store.Store) *Daemon {
	return &Daemon{
		lattice:      lattice,
		manifestName: manifestName,
		store:        s,
		spec:         spec,
		status:       Status{Phase: Ready},
	}
}

func (d *Daemon) ID() string {
	ref := d.spec.Name
	if d.spec.Kind == model.KindProvider {
		ref = d.spec.ProviderID + "/" + d.spec.LinkName
	}
	return model.ScalerID("daemon", d.manifestName, ref)
}

func (d *Daemon) Status() Status { return d.status }

func (d *Daemon) UpdateConfig(ctx context.Context, spec model.ComponentSpec) ([]model.Command, error) {
	d.spec = spec
	return d.Reconcile(ctx)
}

func (d *Daemon) HandleEvent(ctx context.Context, ev model.Event) ([]model.Command, error) {
	switch ev.(type) {
	case model.ComponentsStarted, model.ComponentsStopped, model.ComponentsStartFailed,
		model.ProviderStarted, model.ProviderStartFailed, model.ProviderStopped,
		model.HostStarted, model.HostStopped, model.HostHeartbeat:
		return d.Reconcile(ctx)
	default:
		return nil, nil
	}
}

func (d *Daemon) Reconcile(ctx context.Context) ([]model.Command, error) {
	var hosts map[string]*model.Host
	if err := d.store.List(ctx, d.lattice, store.KindHost, &hosts); err != nil {
		d.status = Status{Phase: Failed, Message: err.Error()}
		return nil, err
	}

	requirements := mergedRequirements(d.spec.Spread)
	var eligible []string
	for _, h := range hosts {
		if satisfies(h.Labels, requirements) {
			eligible = append(eligible, h.ID)
		}
	}
	sort.Strings(eligible)

	var commands []model.Command
	if d.spec.Kind == model.KindProvider {
		commands = d.reconcileProvider(ctx, eligible, hosts)
	} else {
		commands = d.reconcileComponent(ctx, eligible)
	}

	if len(commands) > 0 {
		d.status = Status{Phase: Compensating}
	} else {
		d.status = Status{Phase: Ready}
	}
	return commands, nil
}

func (d *Daemon) reconcileComponent(ctx context.Context, eligible []string) []model.Command {
	var components map[string]*model.Component
	if err := d.store.List(ctx, d.lattice, store.KindComponent, &components); err != nil {
		return nil
	}
	managed := make(map[string]bool)
	scalerID := d.ID()
	for _, c := range components {
		for hostID, byInstance := range c.Instances {
			for _, inst := range byInstance {
				if inst.Annotations[model.ScalerAnnotationKey] == scalerID {
					managed[hostID] = true
				}
			}
		}
	}

	var commands []model.Command
	eligibleSet := make(map[string]bool, len(eligible))
	for _, hostID := range eligible {
		eligibleSet[hostID] = true
		if !managed[hostID] {
			commands = append(commands, model.ScaleComponent{
				CommandMeta: model.CommandMeta{LatticeID: d.lattice, Annotations: managedAnnotations(d.spec.Annotations, d.manifestName, scalerID)},
				ComponentID: d.spec.Name,
				ImageRef:    d.spec.ImageRef,
				HostID:      hostID,
				Count:       1,
			})
		}
	}
	for hostID := range managed {
		if !eligibleSet[hostID] {
			commands = append(commands, model.ScaleComponent{
				CommandMeta: model.CommandMeta{LatticeID: d.lattice, Annotations: managedAnnotations(d.spec.Annotations, d.manifestName, scalerID)},
				ComponentID: d.spec.Name,
				ImageRef:    d.spec.ImageRef,
				HostID:      hostID,
				Count:       0,
			})
		}
	}
	return commands
}

func (d *Daemon) reconcileProvider(ctx context.Context, eligible []string, hosts map[string]*model.Host) []model.Command {
	scalerID := d.ID()
	managed := make(map[string]bool)
	for _, h := range hosts {
		for _, desc := range h.Providers {
			if desc.ProviderID == d.spec.ProviderID && desc.LinkName == d.spec.LinkName &&
				desc.Annotations[model.ScalerAnnotationKey] == scalerID {
				managed[h.ID] = true
			}
		}
	}

	var commands []model.Command
	eligibleSet := make(map[string]bool, len(eligible))
	for _, hostID := range eligible {
		eligibleSet[hostID] = true
		if !managed[hostID] {
			commands = append(commands, model.StartProvider{
				CommandMeta: model.CommandMeta{LatticeID: d.lattice, Annotations: managedAnnotations(d.spec.Annotations, d.manifestName, scalerID)},
				ProviderID:  d.spec.ProviderID,
				LinkName:    d.spec.LinkName,
				ImageRef:    d.spec.ImageRef,
				HostID:      hostID,
			})
		}
	}
	for hostID := range managed {
		if !eligibleSet[hostID] {
			commands = append(commands, model.StopProvider{
				CommandMeta: model.CommandMeta{LatticeID: d.lattice, Annotations: managedAnnotations(d.spec.Annotations, d.manifestName, scalerID)},
				ProviderID:  d.spec.ProviderID,
				LinkName:    d.spec.LinkName,
				HostID:      hostID,
			})
		}
	}
	return commands
}

func (d *Daemon) Cleanup(ctx context.Context) ([]model.Command, error) {
	commands, err := d.reconcileWithNoHosts(ctx)
	d.status = Status{Phase: Undeployed}
	return commands, err
}

// reconcileWithNoHosts computes teardown commands by treating every
// currently-managed host as ineligible.
func (d *Daemon) reconcileWithNoHosts(ctx context.Context) ([]model.Command, error) {
	var hosts map[string]*model.Host
	if err := d.store.List(ctx, d.lattice, store.KindHost, &hosts); err != nil {
		return nil, err
	}
	if d.spec.Kind == model.KindProvider {
		return d.reconcileProvider(ctx, nil, hosts), nil
	}
	return d.reconcileComponent(ctx, nil), nil
}
