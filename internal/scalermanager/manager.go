// Package scalermanager keeps, per manifest, the set of scalers that
// manifest decomposes into, and applies manifest updates with minimal
// churn: a scaler whose id persists across an update is renewed in place
// rather than torn down and recreated (§4.5).
package scalermanager

import (
	"context"
	"sync"
	"time"

	"github.com/wasmCloud/lattice-controller/internal/backoff"
	"github.com/wasmCloud/lattice-controller/internal/bus"
	"github.com/wasmCloud/lattice-controller/internal/cmn"
	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/scaler"
	"github.com/wasmCloud/lattice-controller/internal/store"
)

// Manager owns every manifest's scaler set for one lattice.
type Manager struct {
	lattice        string
	store          store.Store
	bus            bus.Bus
	notifySubject  bus.Subject
	cleanupTimeout time.Duration

	mu   sync.Mutex
	sets map[string]map[string]*backoff.Wrapper // manifest name -> scaler id -> scaler
}

func New(lattice string, s store.Store, b bus.Bus, notifySubject bus.Subject, cleanupTimeout time.Duration) *Manager {
	return &Manager{
		lattice:        lattice,
		store:          s,
		bus:            b,
		notifySubject:  notifySubject,
		cleanupTimeout: cleanupTimeout,
		sets:           make(map[string]map[string]*backoff.Wrapper),
	}
}

// ScalersForManifest decomposes manifest into the scaler set §4.3
// describes: one spread/daemon scaler per component spec, one link scaler
// per link trait, one config scaler per config trait, each wrapped in a
// Backoff Wrapper. It also returns, per scaler id, the ComponentSpec that
// owns it, since every variant's UpdateConfig accepts that same shape.
func (m *Manager) ScalersForManifest(manifest model.Manifest) (map[string]*backoff.Wrapper, map[string]model.ComponentSpec) {
	scalers := make(map[string]*backoff.Wrapper)
	owners := make(map[string]model.ComponentSpec)

	add := func(s scaler.Scaler, owner model.ComponentSpec) {
		w := backoff.New(s, m.lattice, m.bus, m.notifySubject, m.cleanupTimeout)
		scalers[w.ID()] = w
		owners[w.ID()] = owner
	}

	for _, spec := range manifest.Components {
		switch {
		case spec.Daemon:
			add(scaler.NewDaemon(m.lattice, manifest.Name, spec, m.store), spec)
		case spec.Kind == model.KindProvider:
			add(scaler.NewProviderSpread(m.lattice, manifest.Name, spec, m.store), spec)
		default:
			add(scaler.NewComponentSpread(m.lattice, manifest.Name, spec, m.store), spec)
		}
		for _, ls := range spec.Links {
			add(scaler.NewLink(m.lattice, manifest.Name, spec.Name, ls, m.store), spec)
		}
		for _, cs := range spec.Config {
			add(scaler.NewConfig(m.lattice, manifest.Name, cs, m.store), spec)
		}
	}
	return scalers, owners
}

// AddScalers replaces manifest.Name's scaler set with the one freshly
// decomposed from manifest. An id that persists across the update is
// renewed in place (its prior instance, and thus its backoff state, is
// kept; it only receives UpdateConfig). An id that disappears is cleaned
// up. An id that is new is started and immediately reconciled. Returns
// every command produced along the way.
func (m *Manager) AddScalers(ctx context.Context, manifest model.Manifest) ([]model.Command, error) {
	next, owners := m.ScalersForManifest(manifest)

	m.mu.Lock()
	prevSet := m.sets[manifest.Name]
	m.mu.Unlock()

	agg := cmn.NewAggregateError()
	var commands []model.Command

	for id, w := range next {
		if prev, ok := prevSet[id]; ok {
			next[id] = prev
			cmds, err := prev.UpdateConfig(ctx, owners[id])
			if err != nil {
				agg.Add("update scaler "+id, err)
				continue
			}
			commands = append(commands, cmds...)
			continue
		}
		if err := w.Start(ctx); err != nil {
			agg.Add("start scaler "+id, err)
		}
		cmds, err := w.Reconcile(ctx)
		if err != nil {
			agg.Add("reconcile scaler "+id, err)
			continue
		}
		commands = append(commands, cmds...)
	}

	for id, w := range prevSet {
		if _, stillPresent := next[id]; stillPresent {
			continue
		}
		cmds, err := w.Cleanup(ctx)
		if err != nil {
			agg.Add("cleanup outdated scaler "+id, err)
			continue
		}
		commands = append(commands, cmds...)
	}

	m.mu.Lock()
	m.sets[manifest.Name] = next
	m.mu.Unlock()

	return commands, agg.ErrorOrNil()
}

// RemoveScalers tears down manifest name's set, calling Cleanup on each
// scaler and returning the resulting commands, then drops the set.
func (m *Manager) RemoveScalers(ctx context.Context, name string) ([]model.Command, error) {
	m.mu.Lock()
	set := m.sets[name]
	delete(m.sets, name)
	m.mu.Unlock()

	agg := cmn.NewAggregateError()
	var commands []model.Command
	for id, w := range set {
		cmds, err := w.Cleanup(ctx)
		if err != nil {
			agg.Add("cleanup scaler "+id, err)
			continue
		}
		commands = append(commands, cmds...)
	}
	return commands, agg.ErrorOrNil()
}

// RemoveRawScalers drops manifest name's set without calling Cleanup on
// any of it, used when AddScalers is about to replace it and any stale
// member already got a cleanup pass of its own.
func (m *Manager) RemoveRawScalers(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets, name)
}

// GetScalers returns manifest name's current scaler set.
func (m *Manager) GetScalers(name string) []scaler.Scaler {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.sets[name]
	out := make([]scaler.Scaler, 0, len(set))
	for _, w := range set {
		out = append(out, w)
	}
	return out
}

// GetAllScalers returns every manifest's current scaler set.
func (m *Manager) GetAllScalers() map[string][]scaler.Scaler {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]scaler.Scaler, len(m.sets))
	for name, set := range m.sets {
		list := make([]scaler.Scaler, 0, len(set))
		for _, w := range set {
			list = append(list, w)
		}
		out[name] = list
	}
	return out
}
