// Package redisbus is the production Bus implementation, backed by Redis
// Streams. Each subject is a stream; every subscriber joins a consumer
// group named after the subject so unacked messages are reclaimed and
// redelivered, giving the at-least-once guarantee §6 requires.
package redisbus

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/wasmCloud/lattice-controller/internal/bus"
	"github.com/wasmCloud/lattice-controller/internal/cmn"
)

const (
	fieldPayload = "payload"
	// claimIdleFor is how long a pending entry must sit unacked before
	// another consumer in the group may reclaim it via XCLAIM.
	claimIdleFor = 30 * time.Second
	readBlock    = 2 * time.Second
)

type Bus struct {
	rdb      *redis.Client
	consumer string
}

// New builds a redisbus.Bus; consumer identifies this process within every
// consumer group it joins (one group per subject), so give each replica a
// distinct value (e.g. hostname-pid).
func New(rdb *redis.Client, consumer string) *Bus {
	return &Bus{rdb: rdb, consumer: consumer}
}

func (b *Bus) Publish(ctx context.Context, subject bus.Subject, payload []byte) error {
	err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: string(subject),
		Values: map[string]interface{}{fieldPayload: payload},
	}).Err()
	return cmn.Wrapf(err, "publish to %s", subject)
}

// Subscribe joins (creating if absent) a consumer group named after subject
// and starts a goroutine that reads new entries, reclaims stale pending
// entries from dead consumers, and forwards both onto the returned channel.
func (b *Bus) Subscribe(ctx context.Context, subject bus.Subject) (<-chan bus.Message, error) {
	stream := string(subject)
	group := "group." + stream

	err := b.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroupErr(err) {
		return nil, cmn.Wrapf(err, "create consumer group for %s", subject)
	}

	out := make(chan bus.Message, 64)
	go b.loop(ctx, stream, group, out)
	return out, nil
}

func (b *Bus) loop(ctx context.Context, stream, group string, out chan<- bus.Message) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b.reclaimStale(ctx, stream, group, out)

		res, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: b.consumer,
			Streams:  []string{stream, ">"},
			Count:    32,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			continue
		}
		for _, s := range res {
			for _, entry := range s.Messages {
				b.deliver(ctx, stream, group, entry, out)
			}
		}
	}
}

func (b *Bus) reclaimStale(ctx context.Context, stream, group string, out chan<- bus.Message) {
	claimed, _, err := b.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: b.consumer,
		MinIdle:  claimIdleFor,
		Start:    "0-0",
		Count:    32,
	}).Result()
	if err != nil {
		return
	}
	for _, entry := range claimed {
		b.deliver(ctx, stream, group, entry, out)
	}
}

func (b *Bus) deliver(ctx context.Context, stream, group string, entry redis.XMessage, out chan<- bus.Message) {
	payload, _ := entry.Values[fieldPayload].(string)
	msg := &message{
		bus:    b,
		stream: stream,
		group:  group,
		id:     entry.ID,
		payload: []byte(payload),
	}
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}

func isBusyGroupErr(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

type message struct {
	bus     *Bus
	stream  string
	group   string
	id      string
	payload []byte
}

func (m *message) Payload() []byte { return m.payload }

func (m *message) Ack(ctx context.Context) error {
	err := m.bus.rdb.XAck(ctx, m.stream, m.group, m.id).Err()
	return cmn.Wrapf(err, "ack %s/%s", m.stream, m.id)
}

// Nack is a no-op: leaving the entry in the group's pending list is what
// makes it eligible for reclaimStale to redeliver it later.
func (m *message) Nack(ctx context.Context) error { return nil }

var _ bus.Bus = (*Bus)(nil)
