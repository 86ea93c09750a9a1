package scaler

import (
	"context"
	"sort"

	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/store"
)

// ProviderSpread ensures a provider runs on a declared number of hosts
// satisfying label constraints, analogous to ComponentSpread but binary
// presence per host rather than a per-host count (§4.3 "Provider spread
// scaler").
type ProviderSpread struct {
	lattice      string
	manifestName string
	store        store.Store
	spec         model.ComponentSpec
	status       Status
}

func NewProviderSpread(lattice, manifestName string, spec model.ComponentSpec, s store.Store) *ProviderSpread {
	return &ProviderSpread{
		lattice:      lattice,
		manifestName: manifestName,
		store:        s,
		spec:         spec,
		status:       Status{Phase: Ready},
	}
}

func (p *ProviderSpread) ID() string {
	return model.ScalerID("providerspread", p.manifestName, p.spec.ProviderID+"/"+p.spec.LinkName)
}

func (p *ProviderSpread) Status() Status { return p.status }

func (p *ProviderSpread) UpdateConfig(ctx context.Context, spec model.ComponentSpec) ([]model.Command, error) {
	p.spec = spec
	return p.Reconcile(ctx)
}

func (p *ProviderSpread) HandleEvent(ctx context.Context, ev model.Event) ([]model.Command, error) {
	switch ev.(type) {
	case model.ProviderStarted, model.ProviderStartFailed, model.ProviderStopped,
		model.HostStarted, model.HostStopped, model.HostHeartbeat:
		return p.Reconcile(ctx)
	default:
		return nil, nil
	}
}

func (p *ProviderSpread) Reconcile(ctx context.Context) ([]model.Command, error) {
	managedHosts, err := p.managedHosts(ctx)
	if err != nil {
		p.status = Status{Phase: Failed, Message: err.Error()}
		return nil, err
	}

	requirements := mergedRequirements(p.spec.Spread)
	candidates, err := eligibleHosts(ctx, p.store, p.lattice, requirements, func(hostID string) int {
		if managedHosts[hostID] {
			return 1
		}
		return 0
	})
	if err != nil {
		p.status = Status{Phase: Failed, Message: err.Error()}
		return nil, err
	}

	want := p.spec.Replicas
	if want > len(candidates) {
		want = len(candidates)
	}
	if want == 0 && p.spec.Replicas > 0 {
		p.status = Status{Phase: Failed, Message: "no hosts satisfy spread constraints"}
		return nil, nil
	}

	desired := make(map[string]bool, want)
	for i := 0; i < want; i++ {
		desired[candidates[i].host.ID] = true
	}

	var commands []model.Command
	for hostID := range desired {
		if !managedHosts[hostID] {
			commands = append(commands, p.startCommand(hostID))
		}
	}
	for hostID := range managedHosts {
		if !desired[hostID] {
			commands = append(commands, p.stopCommand(hostID))
		}
	}

	sort.Slice(commands, func(i, j int) bool { return commandHostID(commands[i]) < commandHostID(commands[j]) })

	if len(commands) > 0 {
		p.status = Status{Phase: Compensating}
	} else {
		p.status = Status{Phase: Ready}
	}
	return commands, nil
}

func (p *ProviderSpread) Cleanup(ctx context.Context) ([]model.Command, error) {
	managedHosts, err := p.managedHosts(ctx)
	if err != nil {
		return nil, err
	}
	var commands []model.Command
	for hostID := range managedHosts {
		commands = append(commands, p.stopCommand(hostID))
	}
	p.status = Status{Phase: Undeployed}
	return commands, nil
}

func (p *ProviderSpread) startCommand(hostID string) model.Command {
	return model.StartProvider{
		CommandMeta: model.CommandMeta{
			LatticeID:   p.lattice,
			Annotations: managedAnnotations(p.spec.Annotations, p.manifestName, p.ID()),
		},
		ProviderID: p.spec.ProviderID,
		LinkName:   p.spec.LinkName,
		ImageRef:   p.spec.ImageRef,
		HostID:     hostID,
	}
}

func (p *ProviderSpread) stopCommand(hostID string) model.Command {
	return model.StopProvider{
		CommandMeta: model.CommandMeta{
			LatticeID:   p.lattice,
			Annotations: managedAnnotations(p.spec.Annotations, p.manifestName, p.ID()),
		},
		ProviderID: p.spec.ProviderID,
		LinkName:   p.spec.LinkName,
		HostID:     hostID,
	}
}

// managedHosts lists hosts whose provider descriptor for this provider/link
// carries this scaler's managed annotation.
func (p *ProviderSpread) managedHosts(ctx context.Context) (map[string]bool, error) {
	var hosts map[string]*model.Host
	if err := p.store.List(ctx, p.lattice, store.KindHost, &hosts); err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	scalerID := p.ID()
	for _, h := range hosts {
		for _, d := range h.Providers {
			if d.ProviderID == p.spec.ProviderID && d.LinkName == p.spec.LinkName &&
				d.Annotations[model.ScalerAnnotationKey] == scalerID {
				out[h.ID] = true
			}
		}
	}
	return out, nil
}

func commandHostID(cmd model.Command) string {
	switch v := cmd.(type) {
	case model.ScaleComponent:
		return v.HostID
	case model.StartProvider:
		return v.HostID
	case model.StopProvider:
		return v.HostID
	default:
		return ""
	}
}
