package worker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wasmCloud/lattice-controller/internal/bus"
	"github.com/wasmCloud/lattice-controller/internal/cmn"
	"github.com/wasmCloud/lattice-controller/internal/latticeclient"
	"github.com/wasmCloud/lattice-controller/internal/logging"
	"github.com/wasmCloud/lattice-controller/internal/model"
)

// CommandWorker consumes commands and calls the Lattice Client, one
// control call per command variant (§4.7).
type CommandWorker struct {
	lattice         string
	bus             bus.Bus
	commandsSubject bus.Subject
	client          latticeclient.Client
	log             zerolog.Logger
}

func NewCommandWorker(lattice string, b bus.Bus, commandsSubject bus.Subject, c latticeclient.Client) *CommandWorker {
	return &CommandWorker{
		lattice:         lattice,
		bus:             b,
		commandsSubject: commandsSubject,
		client:          c,
		log:             logging.ForLattice(lattice),
	}
}

// Run subscribes to the commands subject and executes each one against
// the Lattice Client until ctx is cancelled.
func (w *CommandWorker) Run(ctx context.Context) error {
	msgs, err := w.bus.Subscribe(ctx, w.commandsSubject)
	if err != nil {
		return cmn.Wrap(err, "subscribe commands")
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

func (w *CommandWorker) handle(ctx context.Context, msg bus.Message) {
	cmd, err := model.UnmarshalCommand(msg.Payload())
	if err != nil {
		w.log.Warn().Err(err).Msg("discarding malformed command")
		msg.Ack(ctx)
		return
	}

	result, err := latticeclient.Execute(ctx, w.client, cmd)
	if err != nil {
		w.log.Warn().Err(err).Str("kind", string(cmd.Kind())).Msg("lattice call failed, nacking for redelivery")
		msg.Nack(ctx)
		return
	}
	if !result.Success {
		w.log.Warn().Str("kind", string(cmd.Kind())).Str("message", result.Message).Msg("lattice reported failure, nacking for redelivery")
		msg.Nack(ctx)
		return
	}
	msg.Ack(ctx)
}
