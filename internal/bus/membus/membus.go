// Package membus is an in-process Bus implementation used in tests. It
// mimics at-least-once delivery: a nacked message is requeued to the same
// subscriber channel instead of being dropped.
package membus

import (
	"context"
	"sync"

	"github.com/wasmCloud/lattice-controller/internal/bus"
)

type Bus struct {
	mu   sync.Mutex
	subs map[bus.Subject][]chan bus.Message
}

func New() *Bus {
	return &Bus{subs: make(map[bus.Subject][]chan bus.Message)}
}

func (b *Bus) Publish(ctx context.Context, subject bus.Subject, payload []byte) error {
	b.mu.Lock()
	chans := append([]chan bus.Message(nil), b.subs[subject]...)
	b.mu.Unlock()

	for _, ch := range chans {
		msg := b.newMessage(subject, payload, ch)
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, subject bus.Subject) (<-chan bus.Message, error) {
	ch := make(chan bus.Message, 64)
	b.mu.Lock()
	b.subs[subject] = append(b.subs[subject], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[subject]
		for i, c := range subs {
			if c == ch {
				b.subs[subject] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func (b *Bus) newMessage(subject bus.Subject, payload []byte, redeliverTo chan bus.Message) *message {
	return &message{subject: subject, payload: payload, redeliverTo: redeliverTo}
}

type message struct {
	subject     bus.Subject
	payload     []byte
	redeliverTo chan bus.Message
}

func (m *message) Payload() []byte { return m.payload }

func (m *message) Ack(ctx context.Context) error { return nil }

// Nack requeues the message onto its own subscriber channel, simulating
// at-least-once redelivery.
func (m *message) Nack(ctx context.Context) error {
	select {
	case m.redeliverTo <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ bus.Bus = (*Bus)(nil)
