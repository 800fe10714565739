// File: internal/infra/redis/event_bus.go
package redis

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"loyalty-redemption-core/internal/domain/model"
	"loyalty-redemption-core/internal/domain/ports/adapter"
)

const finalizedChannel = "events:redemption_finalized"

// Ensure compile-time conformance
var _ adapter.EventPublisher = (*EventBus)(nil)

// EventBus fans redemption_finalized events across instances over Redis
// pub/sub. The verifier publishes after its transaction commits; every
// instance's subscriber loop hands the event to its local session hub,
// which delivers only to that member's live bindings. Pub/sub keeps the
// contract best-effort: nothing is queued for instances or members that
// are not listening.
type EventBus struct {
	cli *Client
	log *zerolog.Logger
}

func NewEventBus(cli *Client, logger *zerolog.Logger) *EventBus {
	l := logger.With().Str("component", "EventBus").Logger()
	return &EventBus{cli: cli, log: &l}
}

func (b *EventBus) PublishRedemptionFinalized(ctx context.Context, evt model.RedemptionFinalized) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.cli.Publish(ctx, finalizedChannel, payload)
}

// Run subscribes to the finalization channel and forwards events into
// sink until ctx is cancelled. Malformed payloads are logged and dropped.
func (b *EventBus) Run(ctx context.Context, sink adapter.EventSink) error {
	sub := b.cli.Subscribe(ctx, finalizedChannel)
	defer sub.Close()

	ch := sub.Channel()
	b.log.Info().Str("channel", finalizedChannel).Msg("event bus subscribed")
	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("event bus stopping")
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt model.RedemptionFinalized
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.log.Warn().Err(err).Msg("dropping malformed finalization event")
				continue
			}
			sink.Deliver(evt)
		}
	}
}
