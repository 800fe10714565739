// File: internal/infra/realtime/conn.go
package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Clients only ever send pongs and close frames.
	maxMessageSize = 512
	// Outbound buffer per session; overflow drops the event.
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients authenticate with a bearer credential, not cookies,
	// so cross-origin upgrades carry no ambient authority.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Session is one live member-bound connection. The send channel is
// never closed; writePump exits via done so Deliver can never race a
// close.
type Session struct {
	hub      *Hub
	conn     *websocket.Conn
	memberID string
	send     chan []byte
	done     chan struct{}
	log      *zerolog.Logger
}

// ServeWS upgrades an already-authenticated request and binds the
// session to the member. The caller must have verified the credential;
// memberID is trusted here.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request, memberID string, logger *zerolog.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	l := logger.With().Str("member_id", memberID).Logger()
	s := &Session{
		hub:      hub,
		conn:     conn,
		memberID: memberID,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		log:      &l,
	}
	hub.bind(s)
	s.log.Debug().Msg("session bound")

	go s.writePump()
	go s.readPump()
}

// readPump drains the connection for control frames and tears the
// binding down the moment the peer goes away.
func (s *Session) readPump() {
	defer func() {
		s.hub.unbind(s)
		close(s.done)
		s.conn.Close()
		s.log.Debug().Msg("session unbound")
	}()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("session read error")
			}
			return
		}
		// Inbound data frames are ignored; the channel is server-push only.
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
