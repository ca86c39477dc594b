package methodchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	maxFrameSize = 64 << 20
)

// conn is one connected UI client.
type conn struct {
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	server *Server
	once   sync.Once
}

// Server serves a Dispatcher over WebSocket and fans push events out to
// every connected client.
type Server struct {
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	clients map[*conn]bool
	http    *http.Server
	lis     net.Listener
	closing bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server for d.
func NewServer(d *Dispatcher) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		dispatcher: d,
		clients:    make(map[*conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     loopbackOrigin,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// loopbackOrigin accepts native clients (no Origin) and pages served from
// the local machine only.
func loopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Handler returns the HTTP handler serving the channel endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.HandleWebSocket)
	return mux
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.lis = lis
	s.http = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	srv := s.http
	s.mu.Unlock()

	log.Printf("Channel: listening on ws://%s%s", lis.Addr(), Path)
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Channel: server stopped: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// HandleWebSocket upgrades one client connection.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Channel: WebSocket upgrade failed: %v", err)
		return
	}
	ws.SetReadLimit(maxFrameSize)

	c := &conn{ws: ws, send: make(chan []byte, sendBuffer), done: make(chan struct{}), server: s}
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = ws.Close()
		return
	}
	s.clients[c] = true
	s.mu.Unlock()
	log.Printf("Channel: client connected from %s", r.RemoteAddr)

	go c.writePump()
	go c.readPump()
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast pushes an event to every client. Slow clients drop the event.
func (s *Server) Broadcast(event string, data any) {
	payload, err := json.Marshal(Push{Event: event, Data: data})
	if err != nil {
		log.Printf("Channel: cannot encode %s event: %v", event, err)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		c.push(payload)
	}
}

// beginCall accounts for one in-flight call. It fails once Close has begun,
// so no call is added while Close waits.
func (s *Server) beginCall() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) endCall() { s.wg.Done() }

func (s *Server) removeClient(c *conn) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
}

// Close stops accepting clients, disconnects the connected ones and waits
// for in-flight calls.
func (s *Server) Close() error {
	s.cancel()
	var result *multierror.Error

	s.mu.Lock()
	s.closing = true
	srv := s.http
	s.http = nil
	clients := make([]*conn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	if srv != nil {
		if err := srv.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, c := range clients {
		if err := c.ws.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
	}
	s.wg.Wait()
	return result.ErrorOrNil()
}

// push queues a frame without waiting; a slow client misses it.
func (c *conn) push(payload []byte) {
	select {
	case c.send <- payload:
	case <-c.done:
	default:
		log.Printf("Channel: client send buffer full, dropping event")
	}
}

func (c *conn) close() {
	c.once.Do(func() { close(c.done) })
}

// readPump reads requests and runs each on its own goroutine so a slow
// capture does not hold up polls.
func (c *conn) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.ws.Close()
	}()

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Channel: WebSocket error: %v", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			log.Printf("Channel: invalid frame: %v", err)
			c.respond(failure(0, InvalidArgs("malformed request: %v", err)))
			continue
		}

		if !c.server.beginCall() {
			return
		}
		go func() {
			defer c.server.endCall()
			c.respond(c.server.dispatcher.Dispatch(c.server.ctx, req))
		}()
	}
}

func (c *conn) respond(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("Channel: cannot encode response %d: %v", resp.ID, err)
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}

// writePump sends queued frames to the WebSocket.
func (c *conn) writePump() {
	defer c.ws.Close()

	for {
		select {
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Channel: WebSocket write error: %v", err)
				return
			}
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
