package methodchannel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func args(t *testing.T, v any) Args {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	a, err := ParseArgs(raw)
	require.NoError(t, err)
	return a
}

func TestArgsInt(t *testing.T) {
	a := args(t, map[string]any{"x": -20, "y": 3.0, "w": 3.5, "h": "10", "big": 1e12})

	x, err := a.Int("x")
	require.NoError(t, err)
	assert.Equal(t, -20, x)

	y, err := a.Int("y")
	require.NoError(t, err)
	assert.Equal(t, 3, y)

	for _, name := range []string{"w", "h", "big", "missing"} {
		_, err := a.Int(name)
		assert.True(t, IsCode(err, CodeInvalidArguments), name)
	}
}

func TestArgsStringAndBytes(t *testing.T) {
	a := args(t, map[string]any{
		"id":    "00000000000A0B0C",
		"b64":   []byte{1, 2, 255},
		"list":  []int{1, 2, 255},
		"bad":   []int{1, 256},
		"num":   5,
		"null":  nil,
		"notb6": "@@@",
	})

	id, err := a.String("id")
	require.NoError(t, err)
	assert.Equal(t, "00000000000A0B0C", id)

	b, err := a.Bytes("b64")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 255}, b)

	b, err = a.Bytes("list")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 255}, b)

	for _, name := range []string{"bad", "num", "null", "notb6", "missing"} {
		_, err := a.Bytes(name)
		assert.True(t, IsCode(err, CodeInvalidArguments), name)
	}
	_, err = a.String("num")
	assert.True(t, IsCode(err, CodeInvalidArguments))
}

func TestParseArgs(t *testing.T) {
	a, err := ParseArgs(nil)
	require.NoError(t, err)
	assert.Empty(t, a)

	a, err = ParseArgs(json.RawMessage(" null "))
	require.NoError(t, err)
	assert.Empty(t, a)

	_, err = ParseArgs(json.RawMessage(`[1,2]`))
	assert.True(t, IsCode(err, CodeInvalidArguments))
}

func newTestDispatcher() *Dispatcher {
	d := NewDispatcher()
	d.Handle("echo", CodeInternal, func(ctx context.Context, a Args) (any, error) {
		return a.String("text")
	})
	d.Handle("nothing", CodeInternal, func(ctx context.Context, a Args) (any, error) {
		return nil, nil
	})
	d.Handle("capture", CodeCapture, func(ctx context.Context, a Args) (any, error) {
		return nil, errors.New("BitBlt failed")
	})
	d.Handle("validate", CodeCapture, func(ctx context.Context, a Args) (any, error) {
		_, err := a.Int("width")
		return nil, err
	})
	d.Handle("explode", CodeOverlay, func(ctx context.Context, a Args) (any, error) {
		panic("boom")
	})
	return d
}

func TestDispatch(t *testing.T) {
	d := newTestDispatcher()
	ctx := context.Background()

	resp := d.Dispatch(ctx, Request{ID: 1, Method: "echo", Args: json.RawMessage(`{"text":"hi"}`)})
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `"hi"`, string(resp.Result))

	resp = d.Dispatch(ctx, Request{ID: 2, Method: "nothing"})
	require.Nil(t, resp.Error)
	assert.Equal(t, "null", string(resp.Result))

	resp = d.Dispatch(ctx, Request{ID: 3, Method: "nope"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotImplemented, resp.Error.Code)

	resp = d.Dispatch(ctx, Request{ID: 4, Method: "capture"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeCapture, resp.Error.Code)
	assert.Equal(t, "BitBlt failed", resp.Error.Message)

	resp = d.Dispatch(ctx, Request{ID: 5, Method: "validate", Args: json.RawMessage(`{"width":"x"}`)})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidArguments, resp.Error.Code)

	resp = d.Dispatch(ctx, Request{ID: 6, Method: "echo", Args: json.RawMessage(`"text"`)})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidArguments, resp.Error.Code)

	resp = d.Dispatch(ctx, Request{ID: 7, Method: "explode"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeOverlay, resp.Error.Code)
	assert.EqualValues(t, 7, resp.ID)

	assert.Equal(t, []string{"capture", "echo", "explode", "nothing", "validate"}, d.Methods())
}

func TestResponseEncoding(t *testing.T) {
	b, err := json.Marshal(success(9, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":9,"result":null}`, string(b))

	b, err = json.Marshal(failure(10, InvalidArgs("missing argument %q", "x")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":10,"error":{"code":"INVALID_ARGUMENTS","message":"missing argument \"x\""}}`, string(b))
}

func startTestServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	srv := NewServer(newTestDispatcher())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, strings.TrimPrefix(ts.URL, "http://"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.Eventually(t, func() bool { return srv.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	return srv, client
}

func TestWebSocketRoundTrip(t *testing.T) {
	_, client := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var text string
	require.NoError(t, client.Call(ctx, "echo", map[string]any{"text": "over the wire"}, &text))
	assert.Equal(t, "over the wire", text)

	err := client.Call(ctx, "capture", nil, nil)
	assert.True(t, IsCode(err, CodeCapture))

	err = client.Call(ctx, "missingMethod", nil, nil)
	assert.True(t, IsCode(err, CodeNotImplemented))
}

func TestBroadcastReachesClient(t *testing.T) {
	srv, client := startTestServer(t)

	srv.Broadcast("regionSelected", map[string]int{"x": 1, "y": 2, "width": 30, "height": 40})

	select {
	case ev := <-client.Events():
		assert.Equal(t, "regionSelected", ev.Name)
		assert.JSONEq(t, `{"x":1,"y":2,"width":30,"height":40}`, string(ev.Data))
	case <-time.After(5 * time.Second):
		t.Fatal("push event not received")
	}
}

func TestLoopbackOrigin(t *testing.T) {
	for origin, want := range map[string]bool{
		"":                      true,
		"http://localhost:3000": true,
		"http://127.0.0.1:8080": true,
		"http://[::1]":          true,
		"https://evil.example":  false,
		"http://192.168.1.20":   false,
		"::not a url::":         false,
	} {
		r := httptest.NewRequest(http.MethodGet, Path, nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		assert.Equal(t, want, loopbackOrigin(r), origin)
	}
}

func TestCloseWaitsForCallsAndRefusesNewOnes(t *testing.T) {
	s := NewServer(NewDispatcher())
	require.True(t, s.beginCall())

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()

	closing := func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.closing
	}
	require.Eventually(t, closing, time.Second, 5*time.Millisecond)
	assert.False(t, s.beginCall(), "calls are refused once Close starts")
	select {
	case <-closed:
		t.Fatal("Close returned with a call in flight")
	case <-time.After(50 * time.Millisecond):
	}

	s.endCall()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the call finished")
	}
	assert.False(t, s.beginCall())
}
