package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"moodscope/internal/log"
)

const (
	broadcastBuffer = 256
	writeTimeout    = time.Second
)

// WebSocketTransport implements the Transport interface for WebSocket connections.
// Messages are queued and written by a single broadcast goroutine; when the
// queue is full the message is dropped rather than stalling the caller.
type WebSocketTransport struct {
	addr     string
	log      *log.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex

	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
}

// Route is an extra HTTP handler served next to the websocket endpoint.
type Route struct {
	Pattern string
	Handler http.Handler
}

// NewWebSocketTransport creates a WebSocketTransport serving /ws and
// /healthz plus any extra routes. It starts broadcasting immediately;
// ListenAndServe binds addr.
func NewWebSocketTransport(addr string, routes ...Route) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr: addr,
		log:  log.Named("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // browsers on any origin may watch
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, broadcastBuffer),
		done:      make(chan struct{}),
	}

	wst.mux = http.NewServeMux()
	wst.mux.HandleFunc("/ws", wst.handleWebSocket)
	wst.mux.HandleFunc("/healthz", wst.handleHealth)
	for _, r := range routes {
		wst.mux.Handle(r.Pattern, r.Handler)
	}
	wst.server = &http.Server{
		Addr:              addr,
		Handler:           wst.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go wst.handleBroadcasts()
	return wst
}

// Handler returns the HTTP handler, for embedding or tests.
func (wst *WebSocketTransport) Handler() http.Handler {
	return wst.mux
}

// ListenAndServe blocks serving HTTP until Close. It returns nil after a
// clean shutdown.
func (wst *WebSocketTransport) ListenAndServe() error {
	wst.log.Infof("serving websocket on %s/ws", wst.addr)
	if err := wst.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.log.Warnf("upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.log.Infof("client connected from %s, total: %d", r.RemoteAddr, total)

	// Reads only detect disconnects; clients have nothing to say.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	if ok {
		conn.Close()
		wst.log.Infof("client disconnected, total: %d", total)
	}
}

func (wst *WebSocketTransport) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": wst.Clients(),
	})
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.writeAll(data)
		}
	}
}

func (wst *WebSocketTransport) writeAll(data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		wst.log.Errorf("marshal %T: %v", data, err)
		return
	}

	wst.clientsMu.Lock()
	var failed []*websocket.Conn
	for client := range wst.clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
			wst.log.Warnf("error sending to client: %v", err)
			failed = append(failed, client)
		}
	}
	wst.clientsMu.Unlock()

	for _, c := range failed {
		wst.drop(c)
	}
}

// Send queues data for broadcast to all connected WebSocket clients. A full
// queue drops the message.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}

	select {
	case wst.broadcast <- data:
	default:
		if n := wst.dropped.Add(1); n%100 == 1 {
			wst.log.Warnf("broadcast queue full, %d messages dropped", n)
		}
	}
	return nil
}

// Close disconnects every client and shuts the server down.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wst.log.Infof("closing server")
		close(wst.done)

		wst.clientsMu.Lock()
		for client := range wst.clients {
			_ = client.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeTimeout))
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = wst.server.Shutdown(ctx)
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
