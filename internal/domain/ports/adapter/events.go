package adapter

import (
	"context"

	"loyalty-redemption-core/internal/domain/model"
)

// EventPublisher pushes a finalization event toward the redeeming
// member's live sessions. Delivery is best-effort and at-most-once:
// if no session is bound the event is dropped, never queued.
type EventPublisher interface {
	PublishRedemptionFinalized(ctx context.Context, evt model.RedemptionFinalized) error
}

// EventSink receives events on the instance that holds the member's
// live sessions. The websocket hub implements it; the pub/sub bridge
// fans events into it.
type EventSink interface {
	// Deliver sends the event to every live binding for evt.MemberID and
	// returns how many sessions received it.
	Deliver(evt model.RedemptionFinalized) int
}
