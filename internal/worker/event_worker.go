// Package worker runs the two long-lived tasks that drive the
// reconciliation loop: the Event Worker (this file) and the Command
// Worker (command_worker.go), §4.6 and §4.7.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/wasmCloud/lattice-controller/internal/bus"
	"github.com/wasmCloud/lattice-controller/internal/cmn"
	"github.com/wasmCloud/lattice-controller/internal/logging"
	"github.com/wasmCloud/lattice-controller/internal/model"
	"github.com/wasmCloud/lattice-controller/internal/projector"
	"github.com/wasmCloud/lattice-controller/internal/scaler"
	"github.com/wasmCloud/lattice-controller/internal/scalermanager"
)

// EventWorker consumes one lattice's events, applies them to the Store via
// the State Projector, dispatches to the affected scalers, and publishes
// the resulting commands and per-manifest status (§4.6).
type EventWorker struct {
	lattice         string
	bus             bus.Bus
	eventsSubject   bus.Subject
	commandsSubject bus.Subject
	statusSubject   func(manifest string) bus.Subject

	projector *projector.Projector
	manager   *scalermanager.Manager

	log zerolog.Logger

	// recent suppresses reprocessing a redelivered duplicate of an event
	// already handled; purely a throughput optimization since every
	// handler below is independently idempotent (§4.6, digest idiom
	// adapted from model.Host.Digest).
	recent *cuckoo.Filter
}

func NewEventWorker(
	lattice string,
	b bus.Bus,
	eventsSubject, commandsSubject bus.Subject,
	statusSubject func(manifest string) bus.Subject,
	p *projector.Projector,
	m *scalermanager.Manager,
) *EventWorker {
	return &EventWorker{
		lattice:         lattice,
		bus:             b,
		eventsSubject:   eventsSubject,
		commandsSubject: commandsSubject,
		statusSubject:   statusSubject,
		projector:       p,
		manager:         m,
		log:             logging.ForLattice(lattice),
		recent:          cuckoo.NewFilter(1 << 16),
	}
}

// Run subscribes to the events subject and processes messages one at a
// time, in delivery order, until ctx is cancelled (§5 "events for the same
// lattice are processed in the order the bus delivers them").
func (w *EventWorker) Run(ctx context.Context) error {
	msgs, err := w.bus.Subscribe(ctx, w.eventsSubject)
	if err != nil {
		return cmn.Wrap(err, "subscribe events")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *EventWorker) handle(ctx context.Context, msg bus.Message) {
	payload := msg.Payload()
	fingerprint := eventFingerprint(payload)
	if w.recent.Lookup(fingerprint) {
		msg.Ack(ctx)
		return
	}

	ev, err := model.UnmarshalEvent(payload)
	if err != nil {
		// A malformed event can never become well-formed on redelivery;
		// ack it so it does not loop forever (§7 "poison messages").
		w.log.Warn().Err(err).Msg("discarding malformed event")
		msg.Ack(ctx)
		return
	}

	if err := w.projector.Apply(ctx, ev); err != nil {
		w.log.Warn().Err(err).Str("kind", string(ev.Kind())).Msg("projector apply failed, nacking for redelivery")
		msg.Nack(ctx)
		return
	}

	commandsByManifest, err := w.dispatch(ctx, ev)
	if err != nil {
		w.log.Error().Err(err).Msg("scaler dispatch encountered errors")
	}

	for manifest, commands := range commandsByManifest {
		for _, cmd := range commands {
			data, err := model.MarshalCommand(cmd)
			if err != nil {
				w.log.Error().Err(err).Msg("failed to marshal command")
				continue
			}
			if err := w.bus.Publish(ctx, w.commandsSubject, data); err != nil {
				w.log.Error().Err(err).Str("manifest", manifest).Msg("failed to publish command")
			}
		}
		w.publishStatus(ctx, manifest, commands)
	}

	w.recent.InsertUnique(fingerprint)
	msg.Ack(ctx)
}

// dispatch runs ev through the affected scalers: hinted to one manifest if
// the event carries the manifest annotation, broadcast to every manifest
// otherwise (§4.6). Scalers within a manifest run concurrently; manifests
// run concurrently with each other. Every scaler runs to completion
// regardless of a sibling's failure, and every contributing error is
// preserved rather than just the first one (§7 "aggregated with context
// preserving all contributing errors; other scalers still run").
func (w *EventWorker) dispatch(ctx context.Context, ev model.Event) (map[string][]model.Command, error) {
	sets := map[string][]scaler.Scaler{}
	if manifest, ok := ev.EventAnnotations()[model.ManifestAnnotationKey]; ok && manifest != "" {
		sets[manifest] = w.manager.GetScalers(manifest)
	} else {
		sets = w.manager.GetAllScalers()
	}

	out := make(map[string][]model.Command, len(sets))
	agg := cmn.NewAggregateError()
	var mu sync.Mutex

	var wg sync.WaitGroup
	for manifest, scalers := range sets {
		manifest, scalers := manifest, scalers
		for _, s := range scalers {
			s := s
			wg.Add(1)
			go func() {
				defer wg.Done()
				commands, err := s.HandleEvent(ctx, ev)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					agg.Add("scaler "+s.ID(), err)
					return
				}
				out[manifest] = append(out[manifest], commands...)
			}()
		}
	}
	wg.Wait()
	return out, agg.ErrorOrNil()
}

// publishStatus computes and publishes the post-dispatch status for
// manifest: compensating if this pass emitted commands, otherwise the join
// of every scaler's own status (§4.6). Best-effort: a publish failure is
// logged, not propagated.
func (w *EventWorker) publishStatus(ctx context.Context, manifest string, commands []model.Command) {
	status := joinStatus(w.manager.GetScalers(manifest), len(commands) > 0)
	data, err := jsonMarshalStatus(status)
	if err != nil {
		w.log.Warn().Err(err).Str("manifest", manifest).Msg("failed to marshal manifest status")
		return
	}
	if err := w.bus.Publish(ctx, w.statusSubject(manifest), data); err != nil {
		w.log.Warn().Err(err).Str("manifest", manifest).Msg("failed to publish manifest status")
	}
}
