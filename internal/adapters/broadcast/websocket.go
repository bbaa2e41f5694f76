package broadcast

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// ErrSessionBufferFull is returned when a session's send buffer overflows.
// The hub responds by dropping the session so slow clients never block the
// dispatcher.
var ErrSessionBufferFull = errors.New("session send buffer full")

// WebSocketSession adapts a gorilla websocket connection to the hub's
// Session interface with a bounded send queue and a single writer goroutine.
type WebSocketSession struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

// NewWebSocketSession wraps the connection and starts its write pump.
func NewWebSocketSession(conn *websocket.Conn, buffer int) *WebSocketSession {
	s := &WebSocketSession{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
	go s.writePump()
	return s
}

// Send queues a message for delivery. It never blocks; a full buffer or a
// closed session returns an error.
func (s *WebSocketSession) Send(message []byte) error {
	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}

	select {
	case s.send <- message:
		return nil
	default:
		return ErrSessionBufferFull
	}
}

// Close shuts the session down and closes the connection.
func (s *WebSocketSession) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

func (s *WebSocketSession) writePump() {
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
		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		}
	}
}
