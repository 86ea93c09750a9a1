// Package projector implements the State Projector (§4.1): it applies
// lattice events to the Store and reconciles a host's Store-side view
// against its authoritative inventory on heartbeat.
package projector

import (
	"context"
	"time"

	"github.com/wasmCloud/lattice-controller/internal/cmn"
	"github.com/wasmCloud/lattice-controller/internal/latticeclient"
	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/store"
)

type Projector struct {
	store  store.Store
	client latticeclient.Client
}

func New(s store.Store, c latticeclient.Client) *Projector {
	return &Projector{store: s, client: c}
}

// Apply dispatches on the event's variant, mutating the Store. It never
// returns an error for a missing prerequisite: a stop for an unknown host
// or component is a no-op (§4.1 "Edge cases").
func (p *Projector) Apply(ctx context.Context, ev model.Event) error {
	lattice := ev.Lattice()
	switch e := ev.(type) {
	case model.HostStarted:
		return p.applyHostStarted(ctx, lattice, e)
	case model.HostStopped:
		return p.applyHostStopped(ctx, lattice, e)
	case model.HostHeartbeat:
		return p.applyHostHeartbeat(ctx, lattice, e)
	case model.ComponentsStarted:
		return p.applyComponentsStarted(ctx, lattice, e)
	case model.ComponentsStopped:
		return p.applyComponentsStopped(ctx, lattice, e)
	case model.ProviderStarted:
		return p.applyProviderStarted(ctx, lattice, e)
	case model.ProviderStopped:
		return p.applyProviderStopped(ctx, lattice, e)
	case model.ProviderHealthCheckPass:
		return p.applyProviderHealth(ctx, lattice, e.HostID, e.ProviderID, e.LinkName, model.ProviderRunning)
	case model.ProviderHealthCheckFail:
		return p.applyProviderHealth(ctx, lattice, e.HostID, e.ProviderID, e.LinkName, model.ProviderFailed)
	case model.ComponentsStartFailed, model.ProviderStartFailed, model.LinkSet, model.LinkDel:
		// No Store-side effect; these reach only the scalers via
		// handle_event (§4.1 lists no mutation for these variants).
		return nil
	default:
		return nil
	}
}

func (p *Projector) getHost(ctx context.Context, lattice, id string) (*model.Host, bool, error) {
	var h model.Host
	found, err := p.store.Get(ctx, lattice, store.KindHost, id, &h)
	if err != nil || !found {
		return nil, found, err
	}
	return &h, true, nil
}

func (p *Projector) getComponent(ctx context.Context, lattice, id string) (*model.Component, bool, error) {
	var c model.Component
	found, err := p.store.Get(ctx, lattice, store.KindComponent, id, &c)
	if err != nil || !found {
		return nil, found, err
	}
	return &c, true, nil
}

func (p *Projector) getProvider(ctx context.Context, lattice, providerID, linkName string) (*model.Provider, bool, error) {
	var pr model.Provider
	found, err := p.store.Get(ctx, lattice, store.KindProvider, providerKey(providerID, linkName), &pr)
	if err != nil || !found {
		return nil, found, err
	}
	return &pr, true, nil
}

func providerKey(providerID, linkName string) string { return providerID + "/" + linkName }

func (p *Projector) applyHostStarted(ctx context.Context, lattice string, e model.HostStarted) error {
	h := model.NewHost(e.HostID)
	h.FriendlyName = e.FriendlyName
	h.Labels = e.Labels
	h.LastSeen = now()
	return p.store.Store(ctx, lattice, store.KindHost, h.ID, h)
}

// applyHostStopped scans components and providers first, then deletes the
// Host record last so a mid-operation crash leaves the host still present
// and the sweep retry-safe (§4.1 "delete the Host last").
func (p *Projector) applyHostStopped(ctx context.Context, lattice string, e model.HostStopped) error {
	var components map[string]*model.Component
	if err := p.store.List(ctx, lattice, store.KindComponent, &components); err != nil {
		return cmn.Wrapf(err, "list components for host-stopped %s", e.HostID)
	}
	for id, c := range components {
		if _, ok := c.Instances[e.HostID]; !ok {
			continue
		}
		c.RemoveHost(e.HostID)
		if c.Empty() {
			if err := p.store.Delete(ctx, lattice, store.KindComponent, id); err != nil {
				return err
			}
			continue
		}
		if err := p.store.Store(ctx, lattice, store.KindComponent, id, c); err != nil {
			return err
		}
	}

	var providers map[string]*model.Provider
	if err := p.store.List(ctx, lattice, store.KindProvider, &providers); err != nil {
		return cmn.Wrapf(err, "list providers for host-stopped %s", e.HostID)
	}
	for key, pr := range providers {
		if _, ok := pr.Hosts[e.HostID]; !ok {
			continue
		}
		delete(pr.Hosts, e.HostID)
		if pr.Empty() {
			if err := p.store.Delete(ctx, lattice, store.KindProvider, key); err != nil {
				return err
			}
			continue
		}
		if err := p.store.Store(ctx, lattice, store.KindProvider, key, pr); err != nil {
			return err
		}
	}

	return p.store.Delete(ctx, lattice, store.KindHost, e.HostID)
}

func (p *Projector) applyComponentsStarted(ctx context.Context, lattice string, e model.ComponentsStarted) error {
	c, found, err := p.getComponent(ctx, lattice, e.PublicKey)
	if err != nil {
		return err
	}
	if !found {
		c = model.NewComponent(e.PublicKey)
		c.ImageRef = e.ImageRef
		if e.Claims != nil {
			c.Name = e.Claims.Name
			c.Issuer = e.Claims.Issuer
			c.Capabilities = e.Claims.Capabilities
			c.CallAlias = e.Claims.CallAlias
		}
	}
	for _, inst := range e.Instances {
		c.AddInstance(e.HostID, inst)
	}
	if err := p.store.Store(ctx, lattice, store.KindComponent, c.ID, c); err != nil {
		return err
	}

	h, found, err := p.getHost(ctx, lattice, e.HostID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	h.Components[c.ID] += len(e.Instances)
	return p.store.Store(ctx, lattice, store.KindHost, h.ID, h)
}

func (p *Projector) applyComponentsStopped(ctx context.Context, lattice string, e model.ComponentsStopped) error {
	c, found, err := p.getComponent(ctx, lattice, e.PublicKey)
	if err != nil || !found {
		return err
	}
	removed := 0
	for _, instanceID := range e.InstanceIDs {
		if c.RemoveInstance(e.HostID, instanceID) {
			removed++
		}
	}
	if c.Empty() {
		if err := p.store.Delete(ctx, lattice, store.KindComponent, c.ID); err != nil {
			return err
		}
	} else if err := p.store.Store(ctx, lattice, store.KindComponent, c.ID, c); err != nil {
		return err
	}

	h, found, err := p.getHost(ctx, lattice, e.HostID)
	if err != nil || !found {
		return err
	}
	if n := h.Components[c.ID] - removed; n > 0 {
		h.Components[c.ID] = n
	} else {
		delete(h.Components, c.ID)
	}
	return p.store.Store(ctx, lattice, store.KindHost, h.ID, h)
}

func (p *Projector) applyProviderStarted(ctx context.Context, lattice string, e model.ProviderStarted) error {
	pr, found, err := p.getProvider(ctx, lattice, e.ProviderID, e.LinkName)
	if err != nil {
		return err
	}
	if !found {
		pr = model.NewProvider(e.ProviderID, e.LinkName)
		pr.ContractID = e.ContractID
		pr.ImageRef = e.ImageRef
		if e.Claims != nil {
			pr.Name = e.Claims.Name
			pr.Issuer = e.Claims.Issuer
		}
	}
	if _, ok := pr.Hosts[e.HostID]; !ok {
		pr.Hosts[e.HostID] = model.ProviderPending
	}
	if pr.ContractID == "" {
		pr.ContractID = e.ContractID
	}
	if err := p.store.Store(ctx, lattice, store.KindProvider, pr.ID(), pr); err != nil {
		return err
	}

	h, found, err := p.getHost(ctx, lattice, e.HostID)
	if err != nil || !found {
		return err
	}
	h.Providers = appendOrReplaceDescriptor(h.Providers, model.ProviderDescriptor{
		ProviderID: e.ProviderID,
		ContractID: e.ContractID,
		LinkName:   e.LinkName,
	})
	return p.store.Store(ctx, lattice, store.KindHost, h.ID, h)
}

func (p *Projector) applyProviderStopped(ctx context.Context, lattice string, e model.ProviderStopped) error {
	pr, found, err := p.getProvider(ctx, lattice, e.ProviderID, e.LinkName)
	if err != nil || !found {
		return err
	}
	delete(pr.Hosts, e.HostID)
	if pr.Empty() {
		if err := p.store.Delete(ctx, lattice, store.KindProvider, pr.ID()); err != nil {
			return err
		}
	} else if err := p.store.Store(ctx, lattice, store.KindProvider, pr.ID(), pr); err != nil {
		return err
	}

	h, found, err := p.getHost(ctx, lattice, e.HostID)
	if err != nil || !found {
		return err
	}
	h.Providers = removeDescriptor(h.Providers, e.ProviderID, e.LinkName)
	return p.store.Store(ctx, lattice, store.KindHost, h.ID, h)
}

func (p *Projector) applyProviderHealth(ctx context.Context, lattice, hostID, providerID, linkName string, status model.ProviderStatus) error {
	pr, found, err := p.getProvider(ctx, lattice, providerID, linkName)
	if err != nil {
		return err
	}
	if !found {
		pr = model.NewProvider(providerID, linkName)
	}
	pr.Hosts[hostID] = status
	return p.store.Store(ctx, lattice, store.KindProvider, pr.ID(), pr)
}

// applyHostHeartbeat overwrites the Store's view of the host, preserving
// provider-descriptor annotations the heartbeat payload does not carry,
// then runs the authoritative-inventory divergence sweep (§4.1).
func (p *Projector) applyHostHeartbeat(ctx context.Context, lattice string, e model.HostHeartbeat) error {
	h, found, err := p.getHost(ctx, lattice, e.HostID)
	if err != nil {
		return err
	}
	if !found {
		h = model.NewHost(e.HostID)
	}

	prevAnnotations := make(map[string]map[string]string, len(h.Providers))
	for _, d := range h.Providers {
		prevAnnotations[d.ProviderID+"/"+d.LinkName] = d.Annotations
	}
	for i, d := range e.Providers {
		if a, ok := prevAnnotations[d.ProviderID+"/"+d.LinkName]; ok && d.Annotations == nil {
			e.Providers[i].Annotations = a
		}
	}

	h.FriendlyName = e.FriendlyName
	h.Labels = e.Labels
	h.Providers = e.Providers
	h.UptimeSecs = e.UptimeSecs
	h.Version = e.Version
	h.LastSeen = now()
	if err := p.store.Store(ctx, lattice, store.KindHost, h.ID, h); err != nil {
		return err
	}

	return p.reconcileHost(ctx, lattice, e.HostID)
}

// reconcileHost fetches the host's authoritative inventory and sweeps the
// Store's component/provider records into agreement with it: a component
// this host used to report that the inventory no longer lists loses its
// entry for this host, and every component the inventory does list has its
// per-host instance set replaced outright (§3 invariant 2: a component with
// an empty instance map is never persisted; §4.1 heartbeat divergence
// sweep). A provider record first created by a health check has no
// contract id; this sweep fills it in from the inventory, so the heartbeat
// is the authority for contract-id when a health check arrives before
// provider-started.
func (p *Projector) reconcileHost(ctx context.Context, lattice, hostID string) error {
	if p.client == nil {
		return nil
	}
	inv, err := p.client.GetInventory(ctx, lattice, hostID)
	if err != nil {
		if cmn.IsNotFound(err) {
			return nil
		}
		return cmn.Wrapf(err, "get inventory for %s", hostID)
	}

	var existing map[string]*model.Component
	if err := p.store.List(ctx, lattice, store.KindComponent, &existing); err != nil {
		return cmn.Wrapf(err, "list components reconciling host %s", hostID)
	}
	for id, c := range existing {
		if _, reported := inv.Components[id]; reported {
			continue
		}
		if _, onHost := c.Instances[hostID]; !onHost {
			continue
		}
		c.RemoveHost(hostID)
		if c.Empty() {
			if err := p.store.Delete(ctx, lattice, store.KindComponent, id); err != nil {
				return err
			}
			continue
		}
		if err := p.store.Store(ctx, lattice, store.KindComponent, id, c); err != nil {
			return err
		}
	}

	for componentID, instances := range inv.Components {
		c, found, err := p.getComponent(ctx, lattice, componentID)
		if err != nil {
			return err
		}
		if !found {
			c = model.NewComponent(componentID)
		}
		if len(instances) == 0 {
			c.RemoveHost(hostID)
		} else {
			byInstance := make(map[string]model.InstanceDescriptor, len(instances))
			for _, inst := range instances {
				if inst.InstanceID == "" {
					// The inventory read can omit an id for an instance the
					// host hasn't reported one for yet; synthesize one so it
					// still has a stable key in the map (§11).
					inst.InstanceID = cmn.GenUUID()
				}
				byInstance[inst.InstanceID] = inst
			}
			c.Instances[hostID] = byInstance
		}
		if c.Empty() {
			if err := p.store.Delete(ctx, lattice, store.KindComponent, c.ID); err != nil {
				return err
			}
			continue
		}
		if err := p.store.Store(ctx, lattice, store.KindComponent, c.ID, c); err != nil {
			return err
		}
	}

	for _, desc := range inv.Providers {
		pr, found, err := p.getProvider(ctx, lattice, desc.ProviderID, desc.LinkName)
		if err != nil {
			return err
		}
		if !found {
			pr = model.NewProvider(desc.ProviderID, desc.LinkName)
		}
		if pr.ContractID == "" {
			pr.ContractID = desc.ContractID
		}
		if _, ok := pr.Hosts[hostID]; !ok {
			pr.Hosts[hostID] = model.ProviderPending
		}
		if err := p.store.Store(ctx, lattice, store.KindProvider, pr.ID(), pr); err != nil {
			return err
		}
	}
	return nil
}

func appendOrReplaceDescriptor(descs []model.ProviderDescriptor, d model.ProviderDescriptor) []model.ProviderDescriptor {
	for i, existing := range descs {
		if existing.ProviderID == d.ProviderID && existing.LinkName == d.LinkName {
			descs[i] = d
			return descs
		}
	}
	return append(descs, d)
}

func removeDescriptor(descs []model.ProviderDescriptor, providerID, linkName string) []model.ProviderDescriptor {
	out := descs[:0]
	for _, d := range descs {
		if d.ProviderID == providerID && d.LinkName == linkName {
			continue
		}
		out = append(out, d)
	}
	return out
}

// now is a seam so tests can freeze time without the Go toolchain's real
// clock making assertions on LastSeen flaky.
var now = time.Now
