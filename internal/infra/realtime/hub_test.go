//go:build !integration

// File: internal/infra/realtime/hub_test.go
package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"loyalty-redemption-core/internal/domain/model"
)

func newTestHub() *Hub {
	l := zerolog.Nop()
	return NewHub(&l)
}

func newTestSession(h *Hub, memberID string, buffer int) *Session {
	return &Session{
		hub:      h,
		memberID: memberID,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

func testEvent(memberID string) model.RedemptionFinalized {
	return model.RedemptionFinalized{
		MemberID:         memberID,
		TokenID:          "tok-1",
		EntitlementID:    "ent-1",
		EntitlementTitle: "Free Coffee",
		EntitlementKind:  model.EntitlementVoucher,
		CashValue:        1200,
		OutletID:         "outlet-kl-1",
		FinalizedAt:      time.Now(),
	}
}

func TestHub_Deliver(t *testing.T) {
	t.Run("routes the event to every binding of the member and nobody else", func(t *testing.T) {
		h := newTestHub()
		phone := newTestSession(h, "member-1", 4)
		tablet := newTestSession(h, "member-1", 4)
		other := newTestSession(h, "member-2", 4)
		h.bind(phone)
		h.bind(tablet)
		h.bind(other)

		n := h.Deliver(testEvent("member-1"))

		if n != 2 {
			t.Fatalf("expected delivery to 2 sessions, got %d", n)
		}
		for _, s := range []*Session{phone, tablet} {
			select {
			case payload := <-s.send:
				var env struct {
					Event string                    `json:"event"`
					Data  model.RedemptionFinalized `json:"data"`
				}
				if err := json.Unmarshal(payload, &env); err != nil {
					t.Fatalf("bad payload: %v", err)
				}
				if env.Event != model.EventRedemptionFinalized {
					t.Errorf("expected event name %q, got %q", model.EventRedemptionFinalized, env.Event)
				}
				if env.Data.MemberID != "member-1" || env.Data.EntitlementTitle != "Free Coffee" {
					t.Errorf("unexpected event data: %+v", env.Data)
				}
			default:
				t.Fatal("expected a payload on the member's session")
			}
		}
		select {
		case <-other.send:
			t.Fatal("event leaked to another member's session")
		default:
		}
	})

	t.Run("drops the event when no binding is live", func(t *testing.T) {
		h := newTestHub()

		if n := h.Deliver(testEvent("member-ghost")); n != 0 {
			t.Fatalf("expected 0 deliveries, got %d", n)
		}
	})

	t.Run("an unbound session receives nothing afterwards", func(t *testing.T) {
		h := newTestHub()
		s := newTestSession(h, "member-1", 4)
		h.bind(s)
		h.unbind(s)

		if n := h.Deliver(testEvent("member-1")); n != 0 {
			t.Fatalf("expected 0 deliveries after unbind, got %d", n)
		}
		if got := h.SessionCount("member-1"); got != 0 {
			t.Errorf("expected 0 bound sessions, got %d", got)
		}
	})

	t.Run("a slow consumer is skipped instead of blocking delivery", func(t *testing.T) {
		h := newTestHub()
		slow := newTestSession(h, "member-1", 1)
		h.bind(slow)
		slow.send <- []byte("backlog") // fill the buffer

		done := make(chan int, 1)
		go func() { done <- h.Deliver(testEvent("member-1")) }()

		select {
		case n := <-done:
			if n != 0 {
				t.Fatalf("expected 0 deliveries to a full session, got %d", n)
			}
		case <-time.After(time.Second):
			t.Fatal("Deliver blocked on a slow consumer")
		}
	})
}
