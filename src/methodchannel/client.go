package methodchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrClientClosed is returned by calls made after the connection dropped.
var ErrClientClosed = errors.New("channel client closed")

// Event is a push received by a Client.
type Event struct {
	Name string
	Data json.RawMessage
}

// Client calls methods on a running Server.
type Client struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan frame
	closed  bool

	events chan Event
	done   chan struct{}
}

// Dial connects to the channel served at addr (host:port).
func Dial(ctx context.Context, addr string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: Path}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	c := &Client{
		ws:      ws,
		pending: make(map[int64]chan frame),
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events delivers push events until the connection closes.
func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		close(c.events)
		close(c.done)
	}()
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			log.Printf("Channel client: invalid frame: %v", err)
			continue
		}
		if f.Event != "" {
			select {
			case c.events <- Event{Name: f.Event, Data: f.Data}:
			default:
			}
			continue
		}
		if f.ID == nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[*f.ID]
		delete(c.pending, *f.ID)
		c.mu.Unlock()
		if ok {
			ch <- f
		}
	}
}

// Call invokes method with args and decodes the result into out, which may
// be nil. Remote failures are returned as *Error.
func (c *Client) Call(ctx context.Context, method string, args any, out any) error {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode %s args: %w", method, err)
		}
		raw = b
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan frame, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req, err := json.Marshal(Request{ID: id, Method: method, Args: raw})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	err = c.ws.WriteMessage(websocket.TextMessage, req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case f, ok := <-ch:
		if !ok {
			return ErrClientClosed
		}
		if f.Error != nil {
			return f.Error
		}
		if out == nil || len(f.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(f.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close shuts the connection and waits for the reader to stop.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.ws.Close()
	<-c.done
	return err
}
