// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	applog "micscope/internal/log"
	"micscope/internal/pipeline"

	"github.com/gorilla/websocket"
)

// WebSocketPath is where clients connect.
const WebSocketPath = "/ws"

const (
	broadcastDepth = 16
	writeTimeout   = time.Second
)

var errSinkClosed = errors.New("transport: sink closed")

// WebSocketSink broadcasts every update as a JSON text message to all
// clients connected on WebSocketPath. Updates are dropped when the
// broadcast queue is full.
type WebSocketSink struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]struct{}
	clientsMu sync.Mutex

	broadcast chan pipeline.Update
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Uint64

	listener net.Listener
	server   *http.Server
}

// NewWebSocketSink listens on addr and starts serving. The listener is
// bound before returning so address errors surface here.
func NewWebSocketSink(addr string) (*WebSocketSink, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	ws := &WebSocketSink{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local visualizers connect from any origin.
			},
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan pipeline.Update, broadcastDepth),
		done:      make(chan struct{}),
		listener:  ln,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, ws.handleWebSocket)
	ws.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ws.wg.Add(2)
	go func() {
		defer ws.wg.Done()
		applog.Infof("WebSocketSink: serving on ws://%s%s", ln.Addr(), WebSocketPath)
		if err := ws.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketSink: server error: %v", err)
		}
	}()
	go func() {
		defer ws.wg.Done()
		ws.handleBroadcasts()
	}()
	return ws, nil
}

// Addr returns the bound listen address.
func (ws *WebSocketSink) Addr() net.Addr {
	return ws.listener.Addr()
}

// Clients returns the number of connected clients.
func (ws *WebSocketSink) Clients() int {
	ws.clientsMu.Lock()
	defer ws.clientsMu.Unlock()
	return len(ws.clients)
}

// Dropped returns the number of updates discarded on a full queue.
func (ws *WebSocketSink) Dropped() uint64 {
	return ws.dropped.Load()
}

func (ws *WebSocketSink) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketSink: upgrade error: %v", err)
		return
	}

	ws.clientsMu.Lock()
	select {
	case <-ws.done:
		ws.clientsMu.Unlock()
		conn.Close()
		return
	default:
	}
	ws.clients[conn] = struct{}{}
	total := len(ws.clients)
	ws.clientsMu.Unlock()
	applog.Infof("WebSocketSink: client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients never send; reading only detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	ws.dropClient(conn)
}

func (ws *WebSocketSink) dropClient(conn *websocket.Conn) {
	ws.clientsMu.Lock()
	_, ok := ws.clients[conn]
	delete(ws.clients, conn)
	total := len(ws.clients)
	ws.clientsMu.Unlock()
	if ok {
		conn.Close()
		applog.Infof("WebSocketSink: client %s disconnected, total: %d", conn.RemoteAddr(), total)
	}
}

func (ws *WebSocketSink) handleBroadcasts() {
	for {
		select {
		case u := <-ws.broadcast:
			data, err := json.Marshal(u)
			if err != nil {
				applog.Errorf("WebSocketSink: encode update %d: %v", u.Seq, err)
				continue
			}
			ws.clientsMu.Lock()
			conns := make([]*websocket.Conn, 0, len(ws.clients))
			for c := range ws.clients {
				conns = append(conns, c)
			}
			ws.clientsMu.Unlock()

			for _, c := range conns {
				c.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
					applog.Warnf("WebSocketSink: send to %s: %v", c.RemoteAddr(), err)
					ws.dropClient(c)
				}
			}
		case <-ws.done:
			return
		}
	}
}

// Publish queues u for broadcast without blocking.
func (ws *WebSocketSink) Publish(u pipeline.Update) error {
	select {
	case <-ws.done:
		return errSinkClosed
	default:
	}
	select {
	case ws.broadcast <- u:
	default:
		ws.dropped.Add(1)
	}
	return nil
}

// Close stops the server, disconnects all clients and waits for the
// background goroutines.
func (ws *WebSocketSink) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		applog.Infof("WebSocketSink: closing server")
		ws.clientsMu.Lock()
		close(ws.done)
		for c := range ws.clients {
			c.Close()
		}
		ws.clientsMu.Unlock()

		err = ws.server.Close()
		ws.wg.Wait()
	})
	return err
}

var _ Sink = (*WebSocketSink)(nil)
