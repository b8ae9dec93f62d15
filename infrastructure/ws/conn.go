// Package ws is the WebSocket transport for the relay: connection upgrade,
// read/write pumps, and the buffered connection handle handed to the relay.
package ws

import (
	"log/slog"
	"sync"
	"time"

	"clinic-relay/domain/event"
	"clinic-relay/errors"

	"github.com/gorilla/websocket"
)

// Conn wraps one upgraded WebSocket connection. Outbound frames go through
// a buffered channel so a slow consumer never blocks the relay loop; a full
// buffer is reported as a failed forward instead.
type Conn struct {
	ws       *websocket.Conn
	log      *slog.Logger
	outbound chan event.Envelope

	closeOnce    sync.Once
	closed       chan struct{}
	writeTimeout time.Duration
}

func newConn(ws *websocket.Conn, log *slog.Logger, bufferSize int, writeTimeout time.Duration) *Conn {
	return &Conn{
		ws:           ws,
		log:          log,
		outbound:     make(chan event.Envelope, bufferSize),
		closed:       make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

// Send queues an envelope for delivery. It never blocks.
func (c *Conn) Send(env event.Envelope) error {
	select {
	case <-c.closed:
		return errors.ErrConnectionClosed
	case c.outbound <- env:
		return nil
	default:
		return errors.ErrSendBufferFull
	}
}

// Close tears the transport down. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
	return nil
}

// writePump drains the outbound channel onto the wire. It exits when the
// connection closes.
func (c *Conn) writePump() {
	for {
		select {
		case <-c.closed:
			return
		case env := <-c.outbound:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteJSON(env); err != nil {
				c.log.Debug("Write failed, closing connection", "error", err)
				_ = c.Close()
				return
			}
		}
	}
}

// readPump decodes inbound frames into the channel consumed by the relay.
// It closes the channel on any transport failure, which is the relay's
// disconnect signal.
func (c *Conn) readPump(frames chan<- event.Envelope, maxFrameBytes int64) {
	defer close(frames)
	defer func() { _ = c.Close() }()

	if maxFrameBytes > 0 {
		c.ws.SetReadLimit(maxFrameBytes)
	}

	for {
		var env event.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("Unexpected close", "error", err)
			}
			return
		}
		select {
		case <-c.closed:
			return
		case frames <- env:
		}
	}
}
