// Package testutil provides a small in-process WebSocket test server,
// for exercising a DeviceLoop (or any other WebSocket consumer) against
// a real socket instead of a fake WSConn.
package testutil

import (
	"net"
	"net/http"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

// WSHandler handles one accepted WebSocket connection.
type WSHandler func(t *testing.T, conn *websocket.Conn)

// WSServer is a test WebSocket server bound to a random local port.
type WSServer struct {
	listener net.Listener
	server   *http.Server
}

// NewWSServer starts a WSServer that upgrades every incoming HTTP
// connection and dispatches it to handler.
func NewWSServer(t *testing.T, handler WSHandler) *WSServer {
	listener, err := net.Listen("tcp", "localhost:0")
	assert.NoError(t, err, "listen failed")

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err, "upgrade failed") {
			return
		}
		defer conn.Close()
		handler(t, conn)
	})

	srv := &http.Server{Handler: mux}
	go func() {
		_ = srv.Serve(listener)
	}()

	return &WSServer{listener: listener, server: srv}
}

// URL returns the ws:// URL of the server's /stream endpoint.
func (s *WSServer) URL() string {
	return "ws://" + s.listener.Addr().String() + "/stream"
}

// Close shuts down the server and its listener.
func (s *WSServer) Close() {
	_ = s.server.Close()
}
