// File: internal/infra/realtime/hub.go
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"loyalty-redemption-core/internal/domain/model"
	"loyalty-redemption-core/internal/domain/ports/adapter"
	"loyalty-redemption-core/internal/infra/metrics"
)

// Ensure compile-time conformance
var _ adapter.EventSink = (*Hub)(nil)

// Hub is the session registry: it maps an authenticated member identity
// to its currently connected websocket sessions and routes member-scoped
// events to them. A connection is only ever bound after its credential
// was verified; unbound connections receive nothing. Bindings are
// removed on disconnect, so no event is queued for a dead session.
type Hub struct {
	mu       sync.RWMutex
	bindings map[string]map[*Session]struct{}
	log      *zerolog.Logger
}

func NewHub(logger *zerolog.Logger) *Hub {
	l := logger.With().Str("component", "Hub").Logger()
	return &Hub{
		bindings: make(map[string]map[*Session]struct{}),
		log:      &l,
	}
}

// envelope is the wire framing of every event on the channel.
type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Deliver pushes the event to every live binding for evt.MemberID and
// to no one else. Best-effort and at-most-once: sessions with a full
// outbound buffer are skipped, and with no binding the event is dropped.
func (h *Hub) Deliver(evt model.RedemptionFinalized) int {
	payload, err := json.Marshal(envelope{Event: model.EventRedemptionFinalized, Data: evt})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal finalization event")
		return 0
	}

	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.bindings[evt.MemberID]))
	for s := range h.bindings[evt.MemberID] {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range sessions {
		select {
		case s.send <- payload:
			delivered++
		default:
			// Slow consumer; the balance re-fetch is the fallback.
		}
	}

	metrics.EventDelivered(delivered)
	h.log.Debug().
		Str("member_id", evt.MemberID).
		Str("token_id", evt.TokenID).
		Int("sessions", delivered).
		Msg("finalization event routed")
	return delivered
}

// SessionCount reports live bindings for a member.
func (h *Hub) SessionCount(memberID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.bindings[memberID])
}

func (h *Hub) bind(s *Session) {
	h.mu.Lock()
	set, ok := h.bindings[s.memberID]
	if !ok {
		set = make(map[*Session]struct{})
		h.bindings[s.memberID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	metrics.SessionBound()
}

func (h *Hub) unbind(s *Session) {
	h.mu.Lock()
	set, ok := h.bindings[s.memberID]
	if ok {
		if _, bound := set[s]; bound {
			delete(set, s)
			if len(set) == 0 {
				delete(h.bindings, s.memberID)
			}
			metrics.SessionUnbound()
		}
	}
	h.mu.Unlock()
}
