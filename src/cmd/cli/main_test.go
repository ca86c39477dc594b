package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenshot-native/src/messages"
	"screenshot-native/src/methodchannel"
	"screenshot-native/src/windowlist"
)

var fakePNG = append(append([]byte{}, pngMagic...), []byte("rest-of-image")...)

// startResident serves d on a loopback httptest server and returns its address.
func startResident(t *testing.T, d *methodchannel.Dispatcher) (*methodchannel.Server, string) {
	t.Helper()
	srv := methodchannel.NewServer(d)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, strings.TrimPrefix(ts.URL, "http://")
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := runWithArgs(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in      []string
		want    *regionArgs
		wantErr bool
	}{
		{in: []string{"10", "20", "300", "200"}, want: &regionArgs{X: 10, Y: 20, Width: 300, Height: 200}},
		{in: []string{"-1920", "0", "100", "100"}, want: &regionArgs{X: -1920, Width: 100, Height: 100}},
		{in: []string{"a", "0", "1", "1"}, wantErr: true},
		{in: []string{"0", "0", "0", "10"}, wantErr: true},
		{in: []string{"0", "0", "10", "-5"}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseRegion(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestValidatePNG(t *testing.T) {
	assert.NoError(t, validatePNG(fakePNG))
	assert.Error(t, validatePNG(nil))
	assert.Error(t, validatePNG([]byte("GIF89a........")))
}

func TestFullWritesPNGToStdout(t *testing.T) {
	d := methodchannel.NewDispatcher()
	d.Handle("captureFullScreen", methodchannel.CodeCapture, func(ctx context.Context, a methodchannel.Args) (any, error) {
		return fakePNG, nil
	})
	_, addr := startResident(t, d)

	stdout, _, err := run(t, "--addr", addr, "full")
	require.NoError(t, err)
	assert.Equal(t, string(fakePNG), stdout)
}

func TestRegionWritesFileAndJSON(t *testing.T) {
	got := make(chan methodchannel.Args, 1)
	d := methodchannel.NewDispatcher()
	d.Handle("captureRegion", methodchannel.CodeCapture, func(ctx context.Context, a methodchannel.Args) (any, error) {
		got <- a
		return fakePNG, nil
	})
	_, addr := startResident(t, d)

	path := filepath.Join(t.TempDir(), "shot.png")
	stdout, _, err := run(t, "--addr", addr, "--json", "-o", path, "region", "5", "6", "70", "80")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fakePNG, data)

	var res CaptureResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, "region 5,6 70x80", res.Source)
	assert.Equal(t, len(fakePNG), res.Bytes)

	w, err := (<-got).Int("width")
	require.NoError(t, err)
	assert.Equal(t, 70, w)
}

func TestJSONNeedsOutputFile(t *testing.T) {
	_, addr := startResident(t, methodchannel.NewDispatcher())
	_, _, err := run(t, "--addr", addr, "--json", "full")
	assert.ErrorContains(t, err, "--json needs --out")
}

func TestRemoteErrorIsReturned(t *testing.T) {
	_, addr := startResident(t, methodchannel.NewDispatcher())
	_, _, err := run(t, "--addr", addr, "window", "00000000DEADBEEF")
	require.Error(t, err)
	assert.True(t, methodchannel.IsCode(err, methodchannel.CodeNotImplemented), "got %v", err)
}

func TestWindowsTable(t *testing.T) {
	d := methodchannel.NewDispatcher()
	d.Handle("getAvailableWindows", methodchannel.CodeEnum, func(ctx context.Context, a methodchannel.Args) (any, error) {
		return []windowlist.Descriptor{
			{Title: "Editor", ID: "0000000000010ABC", AppName: "code", Icon: fakePNG},
			{Title: "Terminal", ID: "0000000000020DEF"},
		}, nil
	})
	_, addr := startResident(t, d)

	stdout, _, err := run(t, "--addr", addr, "windows")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "0000000000010ABC")
	assert.Contains(t, lines[1], "Editor")

	stdout, _, err = run(t, "--addr", addr, "--json", "windows")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "icon")
}

func TestSelectWaitsForPush(t *testing.T) {
	d := methodchannel.NewDispatcher()
	srv, addr := startResident(t, d)
	d.Handle("showNativeRegionCapture", methodchannel.CodeOverlay, func(ctx context.Context, a methodchannel.Args) (any, error) {
		go func() {
			time.Sleep(50 * time.Millisecond)
			srv.Broadcast(messages.TypeRegionSelected, messages.RegionSelected{X: 1, Y: 2, Width: 30, Height: 40})
		}()
		return true, nil
	})
	d.Handle("getRegionSelectionResult", methodchannel.CodeOverlay, func(ctx context.Context, a methodchannel.Args) (any, error) {
		return nil, nil
	})

	stdout, _, err := run(t, "--addr", addr, "select")
	require.NoError(t, err)
	assert.Equal(t, "1 2 30 40\n", stdout)
}

func TestSelectFallsBackToPolling(t *testing.T) {
	d := methodchannel.NewDispatcher()
	d.Handle("showNativeRegionCapture", methodchannel.CodeOverlay, func(ctx context.Context, a methodchannel.Args) (any, error) {
		return true, nil
	})
	d.Handle("getRegionSelectionResult", methodchannel.CodeOverlay, func(ctx context.Context, a methodchannel.Args) (any, error) {
		return map[string]bool{"cancelled": true}, nil
	})
	_, addr := startResident(t, d)

	stdout, stderr, err := run(t, "--addr", addr, "select")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "selection cancelled")
}

func TestSelectBusy(t *testing.T) {
	d := methodchannel.NewDispatcher()
	d.Handle("showNativeRegionCapture", methodchannel.CodeOverlay, func(ctx context.Context, a methodchannel.Args) (any, error) {
		return false, nil
	})
	_, addr := startResident(t, d)

	_, _, err := run(t, "--addr", addr, "select")
	assert.ErrorContains(t, err, "already running")
}

func TestHotkeyRegister(t *testing.T) {
	d := methodchannel.NewDispatcher()
	d.Handle("registerHotkey", methodchannel.CodeInvalidArguments, func(ctx context.Context, a methodchannel.Args) (any, error) {
		spec, err := a.String("shortcut")
		if err != nil {
			return nil, err
		}
		return spec == "Ctrl+Shift+S", nil
	})
	_, addr := startResident(t, d)

	stdout, _, err := run(t, "--addr", addr, "hotkey", "register", "snap", "Ctrl+Shift+S")
	require.NoError(t, err)
	assert.Equal(t, "snap: ok\n", stdout)

	_, _, err = run(t, "--addr", addr, "hotkey", "register", "snap", "Ctrl+Alt+Del")
	assert.ErrorContains(t, err, "refused")
}

func TestDialFailureMentionsResident(t *testing.T) {
	_, _, err := run(t, "--addr", "127.0.0.1:1", "--timeout", "500ms", "full")
	assert.ErrorContains(t, err, "is the resident running?")
}
