package membus

import (
	"context"
	"testing"
	"time"

	"github.com/wasmCloud/lattice-controller/internal/bus"
)

func TestPublishSubscribeDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := New()
	msgs, err := b.Subscribe(ctx, bus.EventsSubject("", "default"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Publish(ctx, bus.EventsSubject("", "default"), []byte("payload")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case m := <-msgs:
		if string(m.Payload()) != "payload" {
			t.Fatalf("unexpected payload: %s", m.Payload())
		}
		if err := m.Ack(ctx); err != nil {
			t.Fatalf("ack: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestNackRedelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := New()
	subject := bus.CommandsSubject("", "default")
	msgs, err := b.Subscribe(ctx, subject)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Publish(ctx, subject, []byte("retry-me")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	first := <-msgs
	if err := first.Nack(ctx); err != nil {
		t.Fatalf("nack: %v", err)
	}

	select {
	case redelivered := <-msgs:
		if string(redelivered.Payload()) != "retry-me" {
			t.Fatalf("unexpected redelivered payload: %s", redelivered.Payload())
		}
	case <-time.After(time.Second):
		t.Fatal("expected redelivery after nack")
	}
}

func TestSubjectsIsolatePerLattice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := New()
	msgsA, _ := b.Subscribe(ctx, bus.EventsSubject("", "lattice-a"))
	msgsB, _ := b.Subscribe(ctx, bus.EventsSubject("", "lattice-b"))

	if err := b.Publish(ctx, bus.EventsSubject("", "lattice-a"), []byte("a-only")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case m := <-msgsA:
		if string(m.Payload()) != "a-only" {
			t.Fatalf("unexpected payload on lattice-a: %s", m.Payload())
		}
	case <-time.After(time.Second):
		t.Fatal("expected delivery on lattice-a subject")
	}

	select {
	case m := <-msgsB:
		t.Fatalf("unexpected delivery on lattice-b subject: %s", m.Payload())
	case <-time.After(50 * time.Millisecond):
	}
}
