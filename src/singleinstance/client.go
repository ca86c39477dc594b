package singleinstance

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"
)

// probeTimeout bounds each PING so a full range scan stays short.
const probeTimeout = 150 * time.Millisecond

type tcpClient struct {
	dialer net.Dialer
}

// TryRunOnce finds the resident and waits for its reply. The wait is bounded
// only by ctx because the resident waits on the user.
func (c *tcpClient) TryRunOnce(ctx context.Context, outputToStdout bool) (bool, []byte, error) {
	addr, ok := findResident(ctx, &c.dialer)
	if !ok {
		return false, nil, nil
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		// Gone between probe and request; run standalone.
		return false, nil, nil
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	bw := bufio.NewWriter(conn)
	if _, err := bw.WriteString(captureCommand(outputToStdout)); err != nil {
		return true, nil, err
	}
	if err := bw.Flush(); err != nil {
		return true, nil, err
	}
	png, err := readReply(bufio.NewReader(conn))
	return true, png, err
}

// DetectResidentPort reports the port of a running resident, if any.
func DetectResidentPort(ctx context.Context) (int, bool) {
	addr, ok := findResident(ctx, &net.Dialer{})
	if !ok {
		return 0, false
	}
	_, p, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(p)
	return port, true
}

func findResident(ctx context.Context, d *net.Dialer) (string, bool) {
	ports := ConfiguredPorts()
	for port := ports.Start; port <= ports.End; port++ {
		if ctx.Err() != nil {
			return "", false
		}
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if probe(ctx, d, addr) {
			return addr, true
		}
	}
	return "", false
}

func probe(ctx context.Context, d *net.Dialer, addr string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if _, err := conn.Write([]byte(cmdPing + "\n")); err != nil {
		return false
	}
	line, err := readLine(bufio.NewReader(conn))
	return err == nil && line == pongBanner
}
