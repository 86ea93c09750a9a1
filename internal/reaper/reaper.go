// Package reaper implements the Reaper (§4.2): a periodic, per-lattice
// task that removes stale hosts and cascades their removal through
// component and provider records.
package reaper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wasmCloud/lattice-controller/internal/cmn"
	"github.com/wasmCloud/lattice-controller/internal/logging"
	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/stats"
	"github.com/wasmCloud/lattice-controller/internal/store"
)

// Reaper runs one reap pass per tick for a fixed lattice. Each pass is
// idempotent; a failed step is simply retried on the next tick rather than
// rolled back (§4.2 "no partial global rollback").
type Reaper struct {
	lattice string
	store   store.Store
	warnAt  time.Duration
	removeAt time.Duration
	tracker *stats.Tracker

	cron *cron.Cron
}

func New(lattice string, s store.Store, warnAt, removeAt time.Duration, tracker *stats.Tracker) *Reaper {
	return &Reaper{
		lattice:  lattice,
		store:    s,
		warnAt:   warnAt,
		removeAt: removeAt,
		tracker:  tracker,
		cron:     cron.New(),
	}
}

// Start schedules the reap pass at a constant delay of warnAt (the
// configured reap interval T) and runs until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	r.cron.Schedule(cron.ConstantDelaySchedule{Delay: r.warnAt}, cron.FuncJob(func() {
		if err := r.Tick(ctx); err != nil {
			logging.ForLattice(r.lattice).Warn().Err(err).Msg("reap tick failed, retrying next tick")
		}
	}))
	r.cron.Start()
	go func() {
		<-ctx.Done()
		r.cron.Stop()
	}()
}

// Tick runs one reap pass: hosts first, then components, then providers,
// so dependents see the post-reap host set (§4.2).
func (r *Reaper) Tick(ctx context.Context) error {
	liveHosts, err := r.reapHosts(ctx)
	if err != nil {
		return cmn.Wrap(err, "reap hosts")
	}
	if err := r.reapComponents(ctx, liveHosts); err != nil {
		return cmn.Wrap(err, "reap components")
	}
	if err := r.reapProviders(ctx, liveHosts); err != nil {
		return cmn.Wrap(err, "reap providers")
	}
	return nil
}

func (r *Reaper) reapHosts(ctx context.Context) (map[string]bool, error) {
	var hosts map[string]*model.Host
	if err := r.store.List(ctx, r.lattice, store.KindHost, &hosts); err != nil {
		return nil, err
	}

	live := make(map[string]bool, len(hosts))
	now := time.Now()
	var toRemove []string
	for id, h := range hosts {
		age := now.Sub(h.LastSeen)
		switch {
		case age > r.removeAt:
			toRemove = append(toRemove, id)
		case age > r.warnAt:
			logging.ForLattice(r.lattice).Warn().Str("host", id).Dur("age", age).Msg("host stale, nearing reap threshold")
			live[id] = true
		default:
			live[id] = true
		}
	}
	if len(toRemove) > 0 {
		if err := r.store.DeleteMany(ctx, r.lattice, store.KindHost, toRemove); err != nil {
			return nil, err
		}
		if r.tracker != nil {
			r.tracker.Add(stats.ReapRemovedCount, float64(len(toRemove)))
		}
	}
	return live, nil
}

func (r *Reaper) reapComponents(ctx context.Context, liveHosts map[string]bool) error {
	var components map[string]*model.Component
	if err := r.store.List(ctx, r.lattice, store.KindComponent, &components); err != nil {
		return err
	}

	var toDelete []string
	updates := make(map[string]interface{})
	for id, c := range components {
		changed := false
		for hostID := range c.Instances {
			if !liveHosts[hostID] {
				c.RemoveHost(hostID)
				changed = true
			}
		}
		if !changed {
			continue
		}
		if c.Empty() {
			toDelete = append(toDelete, id)
		} else {
			updates[id] = c
		}
	}
	if len(updates) > 0 {
		if err := r.store.StoreMany(ctx, r.lattice, store.KindComponent, updates); err != nil {
			return err
		}
	}
	if len(toDelete) > 0 {
		return r.store.DeleteMany(ctx, r.lattice, store.KindComponent, toDelete)
	}
	return nil
}

func (r *Reaper) reapProviders(ctx context.Context, liveHosts map[string]bool) error {
	var providers map[string]*model.Provider
	if err := r.store.List(ctx, r.lattice, store.KindProvider, &providers); err != nil {
		return err
	}

	var toDelete []string
	updates := make(map[string]interface{})
	for key, pr := range providers {
		changed := false
		for hostID := range pr.Hosts {
			if !liveHosts[hostID] {
				delete(pr.Hosts, hostID)
				changed = true
			}
		}
		if !changed {
			continue
		}
		if pr.Empty() {
			toDelete = append(toDelete, key)
		} else {
			updates[key] = pr
		}
	}
	if len(updates) > 0 {
		if err := r.store.StoreMany(ctx, r.lattice, store.KindProvider, updates); err != nil {
			return err
		}
	}
	if len(toDelete) > 0 {
		return r.store.DeleteMany(ctx, r.lattice, store.KindProvider, toDelete)
	}
	return nil
}
