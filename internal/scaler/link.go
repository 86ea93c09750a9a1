package scaler

import (
	"context"

	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/store"
)

// Link ensures one declared link exists with the declared values (§4.3
// "Link scaler"). Links are not Store entities (§3), so reconcile has no
// authoritative prior belief to diff against; it unconditionally (re-)emits
// put-link, relying on the lattice's put_link being idempotent.
type Link struct {
	lattice      string
	manifestName string
	store        store.Store
	source       string
	spec         model.LinkSpec
	status       Status
}

func NewLink(lattice, manifestName, source string, spec model.LinkSpec, s store.Store) *Link {
	return &Link{
		lattice:      lattice,
		manifestName: manifestName,
		store:        s,
		source:       source,
		spec:         spec,
		status:       Status{Phase: Ready},
	}
}

func (l *Link) ID() string {
	return model.ScalerID("link", l.manifestName, l.source+"-"+l.spec.LinkName+"-"+l.spec.Target)
}

func (l *Link) Status() Status { return l.status }

func (l *Link) UpdateConfig(ctx context.Context, spec model.ComponentSpec) ([]model.Command, error) {
	for _, ls := range spec.Links {
		if ls.Target == l.spec.Target && ls.LinkName == l.spec.LinkName {
			l.spec = ls
			break
		}
	}
	return l.Reconcile(ctx)
}

func (l *Link) HandleEvent(ctx context.Context, ev model.Event) ([]model.Command, error) {
	switch e := ev.(type) {
	case model.LinkDel:
		if e.Source == l.source && e.LinkName == l.spec.LinkName {
			return l.Reconcile(ctx)
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func (l *Link) Reconcile(ctx context.Context) ([]model.Command, error) {
	contractID := l.targetContractID(ctx)
	l.status = Status{Phase: Compensating}
	cmd := model.PutLink{
		CommandMeta: model.CommandMeta{LatticeID: l.lattice, Annotations: managedAnnotations(nil, l.manifestName, l.ID())},
		Source:      l.source,
		ContractID:  contractID,
		LinkName:    l.spec.LinkName,
		Namespace:   l.spec.Namespace,
		Package:     l.spec.Package,
		Target:      l.spec.Target,
		Values:      l.spec.Values,
	}
	return []model.Command{cmd}, nil
}

func (l *Link) Cleanup(ctx context.Context) ([]model.Command, error) {
	l.status = Status{Phase: Undeployed}
	cmd := model.DeleteLink{
		CommandMeta: model.CommandMeta{LatticeID: l.lattice, Annotations: managedAnnotations(nil, l.manifestName, l.ID())},
		Source:      l.source,
		LinkName:    l.spec.LinkName,
		Namespace:   l.spec.Namespace,
		Package:     l.spec.Package,
	}
	return []model.Command{cmd}, nil
}

// targetContractID resolves the link target's contract id from its
// Provider record when known; the heartbeat is the authority of record for
// contract-id when a health check predates provider-started (§REDESIGN
// open question), and the same record backs link resolution here.
func (l *Link) targetContractID(ctx context.Context) string {
	var providers map[string]*model.Provider
	if err := l.store.List(ctx, l.lattice, store.KindProvider, &providers); err != nil {
		return ""
	}
	for _, pr := range providers {
		if pr.ProviderID == l.spec.Target {
			return pr.ContractID
		}
	}
	return ""
}
