package singleinstance

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Line-oriented framing. Replies to CAPTURE carry a byte count so a
// truncated PNG is detected instead of delivered.
const (
	residentHost = "127.0.0.1"

	cmdPing    = "PING"
	cmdCapture = "CAPTURE"
	pongBanner = "PONG screenshot-native"

	modeStdout    = "stdout"
	modeClipboard = "clipboard"

	replyOK  = "OK"
	replyErr = "ERR"

	// maxPayload bounds a reply; a full 8K virtual desktop fits comfortably.
	maxPayload = 512 << 20
)

var errMalformed = errors.New("singleinstance: malformed message")

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func captureCommand(stdout bool) string {
	if stdout {
		return cmdCapture + " " + modeStdout + "\n"
	}
	return cmdCapture + " " + modeClipboard + "\n"
}

// parseCapture reports the requested mode of a CAPTURE line.
func parseCapture(line string) (Request, bool) {
	verb, mode, _ := strings.Cut(line, " ")
	if verb != cmdCapture {
		return Request{}, false
	}
	switch mode {
	case modeStdout:
		return Request{OutputToStdout: true}, true
	case modeClipboard:
		return Request{}, true
	}
	return Request{}, false
}

func writeOK(w *bufio.Writer, png []byte) error {
	if _, err := fmt.Fprintf(w, "%s %d\n", replyOK, len(png)); err != nil {
		return err
	}
	if _, err := w.Write(png); err != nil {
		return err
	}
	return w.Flush()
}

func writeErr(w *bufio.Writer, msg string) error {
	if _, err := fmt.Fprintf(w, "%s %s\n", replyErr, strconv.Quote(msg)); err != nil {
		return err
	}
	return w.Flush()
}

// readReply decodes an OK or ERR reply. A resident-side failure comes back
// as a plain error carrying the resident's message.
func readReply(br *bufio.Reader) ([]byte, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	verb, rest, _ := strings.Cut(line, " ")
	switch verb {
	case replyOK:
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 || n > maxPayload {
			return nil, fmt.Errorf("%w: bad length %q", errMalformed, rest)
		}
		if n == 0 {
			return nil, nil
		}
		png := make([]byte, n)
		if _, err := io.ReadFull(br, png); err != nil {
			return nil, fmt.Errorf("read capture from resident: %w", err)
		}
		return png, nil
	case replyErr:
		msg, err := strconv.Unquote(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errMalformed, line)
		}
		return nil, errors.New(msg)
	}
	return nil, fmt.Errorf("%w: %q", errMalformed, line)
}
