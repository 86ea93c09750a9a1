// Package scaler implements the Scaler contract (§4.3) and its concrete
// variants: component spread, provider spread, component/provider daemon,
// link, and config. Each scaler owns a parsed fragment of a manifest, reads
// the Store, and emits commands to converge one facet of desired state.
package scaler

import (
	"context"
	"sort"

	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/store"
)

// Phase is one of the scaler status states (§4.8).
type Phase string

const (
	Ready        Phase = "ready"
	Compensating Phase = "compensating"
	Failed       Phase = "failed"
	Undeployed   Phase = "undeployed"
)

type Status struct {
	Phase   Phase
	Message string
}

// Scaler is the capability set every concrete variant implements (§4.3,
// §9 "prefer tagged variants with a dispatch table over open inheritance").
type Scaler interface {
	ID() string
	Status() Status
	UpdateConfig(ctx context.Context, spec model.ComponentSpec) ([]model.Command, error)
	HandleEvent(ctx context.Context, ev model.Event) ([]model.Command, error)
	Reconcile(ctx context.Context) ([]model.Command, error)
	Cleanup(ctx context.Context) ([]model.Command, error)
}

// managedAnnotations returns the manifest-name/scaler-id pair merged last
// over any user annotations from the spec, per §4.3 "managed annotations
// must never be overwritten by user-supplied annotations".
func managedAnnotations(userAnnotations map[string]string, manifestName, scalerID string) map[string]string {
	return model.MergeAnnotations(userAnnotations, map[string]string{
		model.ManifestAnnotationKey: manifestName,
		model.ScalerAnnotationKey:   scalerID,
	})
}

// hostCandidate is one host eligible to receive placement, carrying the
// count of instances this scaler already manages there for tie-breaking.
type hostCandidate struct {
	host    *model.Host
	managed int
}

// eligibleHosts lists every host in the lattice whose labels satisfy
// requirements (a label is satisfied when the host's value equals the
// required value), ordered per §4.3's tie-break: fewest managed instances
// first, then lexicographic host-id.
func eligibleHosts(ctx context.Context, s store.Store, lattice string, requirements map[string]string, managedCount func(hostID string) int) ([]hostCandidate, error) {
	var hosts map[string]*model.Host
	if err := s.List(ctx, lattice, store.KindHost, &hosts); err != nil {
		return nil, err
	}

	var out []hostCandidate
	for _, h := range hosts {
		if !satisfies(h.Labels, requirements) {
			continue
		}
		out = append(out, hostCandidate{host: h, managed: managedCount(h.ID)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].managed != out[j].managed {
			return out[i].managed < out[j].managed
		}
		return out[i].host.ID < out[j].host.ID
	})
	return out, nil
}

func satisfies(labels, requirements map[string]string) bool {
	for k, v := range requirements {
		if labels[k] != v {
			return false
		}
	}
	return true
}

func mergedRequirements(spread []model.SpreadConstraint) map[string]string {
	out := make(map[string]string)
	for _, sc := range spread {
		for k, v := range sc.Requirements {
			out[k] = v
		}
	}
	return out
}
