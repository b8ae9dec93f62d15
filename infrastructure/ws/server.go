package ws

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"clinic-relay/domain/event"
	"clinic-relay/relay"

	"github.com/gorilla/websocket"
)

// Server exposes the relay over HTTP: a WebSocket endpoint for participants
// and a liveness endpoint.
type Server struct {
	log          *slog.Logger
	relay        *relay.Server
	upgrader     websocket.Upgrader
	bufferSize   int
	writeTimeout time.Duration
	maxFrame     int64
}

func NewServer(log *slog.Logger, relayServer *relay.Server,
	bufferSize int, writeTimeout time.Duration, maxFrameBytes int64) *Server {
	return &Server{
		log:   log,
		relay: relayServer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Participants connect from browser portals on other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		bufferSize:   bufferSize,
		writeTimeout: writeTimeout,
		maxFrame:     maxFrameBytes,
	}
}

// Routes builds the HTTP mux served by the relay process.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "Relay server running")
	})
	return mux
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(wsConn, s.log, s.bufferSize, s.writeTimeout)
	inbound := make(chan event.Envelope, s.bufferSize)
	go conn.writePump()
	go conn.readPump(inbound, s.maxFrame)

	// Attach blocks for the lifetime of the connection.
	if err := s.relay.Attach(r.Context(), conn, inbound); err != nil {
		s.log.Info("Connection rejected", "remote", r.RemoteAddr, "error", err)
	}
}
