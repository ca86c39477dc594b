package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"strconv"
	"sync"
	"time"
)

const handshakeTimeout = 3 * time.Second

type tcpServer struct {
	mu       sync.Mutex
	lis      net.Listener
	port     int
	incoming chan *tcpConn
	closed   chan struct{}
	once     sync.Once
}

func newTCPServer() *tcpServer {
	return &tcpServer{incoming: make(chan *tcpConn, 8), closed: make(chan struct{})}
}

// Start binds only the first port of the range so two residents can never
// both own it.
func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	ports := ConfiguredPorts()
	addr := net.JoinHostPort(residentHost, strconv.Itoa(ports.Start))
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		log.Printf("singleinstance: bind %s: %v", addr, err)
		return err
	}
	s.lis = lis
	s.port = ports.Start
	log.Printf("singleinstance: resident on %s (clients scan %s)", addr, ports)
	go s.serve(ctx, lis)
	return nil
}

func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) serve(ctx context.Context, lis net.Listener) {
	for {
		c, err := lis.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Printf("singleinstance: accept: %v", err)
			}
			return
		}
		tc, ok := s.handshake(c)
		if !ok {
			continue
		}
		select {
		case s.incoming <- tc:
		case <-s.closed:
			_ = tc.RespondError("resident shutting down")
			_ = c.Close()
			return
		case <-ctx.Done():
			_ = c.Close()
			return
		}
	}
}

// handshake answers probes inline and returns capture requests for Next.
func (s *tcpServer) handshake(c net.Conn) (*tcpConn, bool) {
	_ = c.SetDeadline(time.Now().Add(handshakeTimeout))
	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)
	line, err := readLine(br)
	if err != nil {
		_ = c.Close()
		return nil, false
	}
	if line == cmdPing {
		_, _ = bw.WriteString(pongBanner + "\n")
		_ = bw.Flush()
		_ = c.Close()
		return nil, false
	}
	req, ok := parseCapture(line)
	if !ok {
		log.Printf("singleinstance: rejecting %q from %s", line, c.RemoteAddr())
		_ = writeErr(bw, "unknown command")
		_ = c.Close()
		return nil, false
	}
	// The user may take a while to pick a region.
	_ = c.SetDeadline(time.Time{})
	log.Printf("singleinstance: capture request from %s stdout=%v", c.RemoteAddr(), req.OutputToStdout)
	return &tcpConn{c: c, req: req, w: bw}, true
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, net.ErrClosed
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.once.Do(func() { close(s.closed) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	err := s.lis.Close()
	s.lis = nil
	return err
}

type tcpConn struct {
	c   net.Conn
	req Request
	w   *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.req }

func (tc *tcpConn) RespondSuccess(png []byte) error { return writeOK(tc.w, png) }

func (tc *tcpConn) RespondError(msg string) error { return writeErr(tc.w, msg) }

func (tc *tcpConn) Close() error { return tc.c.Close() }
