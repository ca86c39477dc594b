package eventloop

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenshot-native/src/config"
	"screenshot-native/src/messages"
	"screenshot-native/src/overlay"
	"screenshot-native/src/screenshot"
	"screenshot-native/src/selection"
	"screenshot-native/src/session"
	"screenshot-native/src/singleinstance"
	"screenshot-native/src/worker"
)

type fakeServer struct {
	conns chan singleinstance.Conn
}

func newFakeServer() *fakeServer { return &fakeServer{conns: make(chan singleinstance.Conn, 4)} }

func (s *fakeServer) Start(ctx context.Context) error { return nil }
func (s *fakeServer) Port() int                       { return 0 }
func (s *fakeServer) Close() error                    { return nil }

func (s *fakeServer) Next(ctx context.Context) (singleinstance.Conn, error) {
	select {
	case c := <-s.conns:
		return c, nil
	case <-ctx.Done():
		return nil, net.ErrClosed
	}
}

type fakeConn struct {
	stdout bool

	mu     sync.Mutex
	data   []byte
	errMsg string
	closed chan struct{}
}

func newFakeConn(stdout bool) *fakeConn { return &fakeConn{stdout: stdout, closed: make(chan struct{})} }

func (c *fakeConn) Request() singleinstance.Request {
	return singleinstance.Request{OutputToStdout: c.stdout}
}

func (c *fakeConn) RespondSuccess(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	return nil
}

func (c *fakeConn) RespondError(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = msg
	return nil
}

func (c *fakeConn) Close() error {
	close(c.closed)
	return nil
}

func (c *fakeConn) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not answered")
	}
}

type recorder struct {
	mu   sync.Mutex
	msgs []messages.Message
}

func (r *recorder) Publish(m messages.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) snapshot() []messages.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]messages.Message(nil), r.msgs...)
}

func startLoop(t *testing.T, sel overlay.SelectorFunc, capture worker.CaptureFunc, pub messages.Publisher) *fakeServer {
	t.Helper()
	srv := newFakeServer()
	l := New(Options{
		Runner:    session.NewRunner(sel, &session.Slot{}, nil),
		Pool:      worker.New(1, capture),
		Server:    srv,
		Publisher: pub,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv
}

func TestDelegatedStdoutRequestGetsPNG(t *testing.T) {
	var captured screenshot.Region
	sel := overlay.SelectorFunc(func(ctx context.Context) (selection.Result, error) {
		return selection.Result{X: 5, Y: 6, Width: 70, Height: 80}, nil
	})
	capture := func(ctx context.Context, region screenshot.Region) ([]byte, error) {
		captured = region
		return []byte("png-bytes"), nil
	}
	pub := &recorder{}
	srv := startLoop(t, sel, capture, pub)

	conn := newFakeConn(true)
	srv.conns <- conn
	conn.wait(t)

	assert.Equal(t, []byte("png-bytes"), conn.data)
	assert.Empty(t, conn.errMsg)
	assert.Equal(t, screenshot.Region{X: 5, Y: 6, Width: 70, Height: 80}, captured)
	assert.Contains(t, pub.snapshot(), messages.Message(messages.RegionSelected{X: 5, Y: 6, Width: 70, Height: 80}))
}

func TestDelegatedRequestCancelled(t *testing.T) {
	sel := overlay.SelectorFunc(func(ctx context.Context) (selection.Result, error) {
		return selection.CancelledResult(), nil
	})
	pub := &recorder{}
	srv := startLoop(t, sel, nil, pub)

	conn := newFakeConn(true)
	srv.conns <- conn
	conn.wait(t)

	assert.Equal(t, session.ErrSelectionCancelled.Error(), conn.errMsg)
	assert.Equal(t, []messages.Message{messages.RegionCancelled{}}, pub.snapshot())
}

func TestDelegatedRequestCaptureError(t *testing.T) {
	sel := overlay.SelectorFunc(func(ctx context.Context) (selection.Result, error) {
		return selection.Result{Width: 20, Height: 20}, nil
	})
	capture := func(ctx context.Context, region screenshot.Region) ([]byte, error) {
		return nil, errors.New("device lost")
	}
	srv := startLoop(t, sel, capture, nil)

	conn := newFakeConn(true)
	srv.conns <- conn
	conn.wait(t)

	assert.Equal(t, "device lost", conn.errMsg)
	assert.Nil(t, conn.data)
}

func TestDelegatedRequestOverlayFailure(t *testing.T) {
	sel := overlay.SelectorFunc(func(ctx context.Context) (selection.Result, error) {
		return selection.Result{}, errors.New("no backdrop")
	})
	pub := &recorder{}
	srv := startLoop(t, sel, nil, pub)

	conn := newFakeConn(false)
	srv.conns <- conn
	conn.wait(t)

	assert.Equal(t, "Failed to select region: no backdrop", conn.errMsg)
	assert.Equal(t, []messages.Message{messages.OverlayFailed{Message: "no backdrop"}}, pub.snapshot())
}

func TestHotkeyPublishesAction(t *testing.T) {
	pub := &recorder{}
	srv := newFakeServer()
	l := New(Options{
		Runner: session.NewRunner(overlay.SelectorFunc(func(ctx context.Context) (selection.Result, error) {
			return selection.CancelledResult(), nil
		}), &session.Slot{}, nil),
		Pool:      worker.New(1, nil),
		Server:    srv,
		Publisher: pub,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()

	l.HotkeyPressed("custom")
	l.HotkeyPressed(config.RegionCaptureAction)
	require.Eventually(t, func() bool { return len(pub.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []messages.Message{
		messages.HotkeyPressed{ActionID: "custom"},
		messages.HotkeyPressed{ActionID: config.RegionCaptureAction},
		messages.RegionCancelled{},
	}, pub.snapshot())
}

func TestTriggerDoesNotAnnounceHotkey(t *testing.T) {
	pub := &recorder{}
	l := New(Options{
		Runner: session.NewRunner(overlay.SelectorFunc(func(ctx context.Context) (selection.Result, error) {
			return selection.CancelledResult(), nil
		}), &session.Slot{}, nil),
		Pool:      worker.New(1, nil),
		Server:    newFakeServer(),
		Publisher: pub,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()

	l.Trigger(config.RegionCaptureAction)
	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []messages.Message{messages.RegionCancelled{}}, pub.snapshot())
}

func TestPostDropsWhenQueueFull(t *testing.T) {
	l := New(Options{
		Runner: session.NewRunner(overlay.SelectorFunc(nil), &session.Slot{}, nil),
		Pool:   worker.New(1, nil),
		Server: newFakeServer(),
	})
	defer l.pool.Close()
	for i := 0; i < cap(l.triggers)+3; i++ {
		l.HotkeyPressed("a")
	}
	assert.Len(t, l.triggers, cap(l.triggers))
}

func TestNewDefaults(t *testing.T) {
	l := New(Options{Runner: session.NewRunner(overlay.SelectorFunc(nil), &session.Slot{}, nil), Server: newFakeServer()})
	defer l.pool.Close()
	assert.Equal(t, defaultDeadline, l.Deadline())
	assert.Panics(t, func() { New(Options{}) })
}
