// Package client is the participant-side relay connection: it dials the
// relay, performs the auth handshake, and exposes received frames as a
// channel. Used by the portal binary and the end-to-end tests.
package client

import (
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"clinic-relay/domain"
	"clinic-relay/domain/event"

	"github.com/gorilla/websocket"
)

const defaultWriteTimeout = 10 * time.Second

type Client struct {
	log    *slog.Logger
	ws     *websocket.Conn
	frames chan event.Envelope
	closed chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to the relay and sends the auth handshake as the first
// frame. The returned client is already receiving.
func Dial(log *slog.Logger, addr string, self domain.Participant, buffer int) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}

	ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("relay dial %s: %w", addr, err)
	}

	c := &Client{
		log:    log,
		ws:     ws,
		frames: make(chan event.Envelope, buffer),
		closed: make(chan struct{}),
	}

	auth := event.HandshakeAuth{
		ParticipantID: self.ID,
		Role:          string(self.Role),
	}
	if err := c.Emit(event.NameAuth, auth); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}

	go c.readLoop()
	return c, nil
}

// Frames is the stream of frames pushed by the relay. Closed when the
// connection drops.
func (c *Client) Frames() <-chan event.Envelope {
	return c.frames
}

// Emit sends one event to the relay.
func (c *Client) Emit(name string, payload any) error {
	env, err := event.NewEnvelope(name, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	return c.ws.WriteJSON(env)
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.ws.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.frames)

	for {
		var env event.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			c.log.Debug("Relay read loop ended", "error", err)
			return
		}
		// A consumer that stopped draining must not pin this goroutine
		// forever once the client is closed.
		select {
		case <-c.closed:
			return
		case c.frames <- env:
		}
	}
}
