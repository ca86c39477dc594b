package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenshot-native/src/overlay"
	"screenshot-native/src/screenshot"
	"screenshot-native/src/selection"
	"screenshot-native/src/singleinstance"
)

func TestSlotDeliversOnce(t *testing.T) {
	var s Slot
	_, ok := s.Take()
	assert.False(t, ok, "empty slot is pending")

	want := selection.Result{X: 10, Y: 20, Width: 300, Height: 200}
	s.Post(want)

	got, ok := s.Take()
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = s.Take()
	assert.False(t, ok, "second poll must not see the same result")
}

func TestSlotConcurrentTakeDeliversOnce(t *testing.T) {
	var s Slot
	s.Post(selection.CancelledResult())

	var wg sync.WaitGroup
	var mu sync.Mutex
	hits := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.Take(); ok {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, hits)
}

func TestRunnerPostsResultAndNotifies(t *testing.T) {
	release := make(chan struct{})
	want := selection.Result{X: -100, Y: 5, Width: 40, Height: 30}
	sel := overlay.SelectorFunc(func(ctx context.Context) (selection.Result, error) {
		<-release
		return want, nil
	})
	notified := make(chan selection.Result, 1)
	r := NewRunner(sel, &Slot{}, func(res selection.Result, err error) {
		assert.NoError(t, err)
		notified <- res
	})

	require.NoError(t, r.Start(context.Background()))
	assert.True(t, r.Running())
	assert.ErrorIs(t, r.Start(context.Background()), ErrBusy)

	_, ok := r.Slot().Take()
	assert.False(t, ok, "pending while the overlay is up")

	close(release)
	select {
	case got := <-notified:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("session result was not delivered")
	}
	r.Wait()
	assert.False(t, r.Running())

	got, ok := r.Slot().Take()
	require.True(t, ok)
	assert.Equal(t, want, got)
	_, ok = r.Slot().Take()
	assert.False(t, ok)
}

func TestRunnerStartupFailurePostsCancelled(t *testing.T) {
	boom := errors.New("backdrop capture failed")
	sel := overlay.SelectorFunc(func(ctx context.Context) (selection.Result, error) {
		return selection.Result{}, boom
	})
	var gotErr error
	r := NewRunner(sel, &Slot{}, func(_ selection.Result, err error) { gotErr = err })

	require.NoError(t, r.Start(context.Background()))
	r.Wait()

	assert.ErrorIs(t, gotErr, boom)
	got, ok := r.Slot().Take()
	require.True(t, ok)
	assert.True(t, got.Cancelled)
}

func TestRunnerRecoversPanic(t *testing.T) {
	sel := overlay.SelectorFunc(func(ctx context.Context) (selection.Result, error) {
		panic("window proc exploded")
	})
	r := NewRunner(sel, &Slot{}, nil)
	require.NoError(t, r.Start(context.Background()))
	r.Wait()

	got, ok := r.Slot().Take()
	require.True(t, ok)
	assert.True(t, got.Cancelled)
	assert.NoError(t, r.Start(context.Background()), "runner is reusable after a panic")
	r.Wait()
}

func TestRunnerStartDropsStaleResult(t *testing.T) {
	slot := &Slot{}
	slot.Post(selection.Result{X: 1, Y: 1, Width: 20, Height: 20})
	block := make(chan struct{})
	r := NewRunner(overlay.SelectorFunc(func(ctx context.Context) (selection.Result, error) {
		<-block
		return selection.CancelledResult(), nil
	}), slot, nil)

	require.NoError(t, r.Start(context.Background()))
	_, ok := slot.Take()
	assert.False(t, ok)
	close(block)
	r.Wait()
}

type recordingTarget struct {
	png    []byte
	failed error
}

func (t *recordingTarget) OnSuccess(png []byte) error { t.png = png; return nil }
func (t *recordingTarget) OnFailure(err error) error  { t.failed = err; return nil }

func TestExecuteCapturesSelectedRegion(t *testing.T) {
	target := &recordingTarget{}
	var captured screenshot.Region
	res, err := Execute(context.Background(), Options{
		Select: func(ctx context.Context) (selection.Result, error) {
			return selection.Result{X: 5, Y: 6, Width: 70, Height: 80}, nil
		},
		Capture: func(ctx context.Context, region screenshot.Region) ([]byte, error) {
			captured = region
			return []byte("png"), nil
		},
		Target: target,
	})
	require.NoError(t, err)
	assert.Equal(t, screenshot.Region{X: 5, Y: 6, Width: 70, Height: 80}, captured)
	assert.Equal(t, captured, res.Region)
	assert.Equal(t, []byte("png"), target.png)
	assert.NoError(t, target.failed)
}

func TestExecuteCancelled(t *testing.T) {
	target := &recordingTarget{}
	_, err := Execute(context.Background(), Options{
		Select: func(ctx context.Context) (selection.Result, error) {
			return selection.CancelledResult(), nil
		},
		Capture: func(ctx context.Context, region screenshot.Region) ([]byte, error) {
			t.Fatal("capture must not run after cancel")
			return nil, nil
		},
		Target: target,
	})
	assert.ErrorIs(t, err, ErrSelectionCancelled)
	assert.ErrorIs(t, target.failed, ErrSelectionCancelled)
	assert.Nil(t, target.png)
}

func TestExecuteCaptureFailure(t *testing.T) {
	target := &recordingTarget{}
	boom := &screenshot.CaptureError{Op: "capture region", Err: errors.New("BitBlt failed")}
	_, err := Execute(context.Background(), Options{
		Select: func(ctx context.Context) (selection.Result, error) {
			return selection.Result{Width: 20, Height: 20}, nil
		},
		Capture: func(ctx context.Context, region screenshot.Region) ([]byte, error) {
			return nil, boom
		},
		Target: target,
	})
	assert.ErrorIs(t, err, screenshot.ErrCapture)
	assert.Equal(t, boom, target.failed)
}

func TestExecuteRequiresSelectAndTarget(t *testing.T) {
	_, err := Execute(context.Background(), Options{Target: &recordingTarget{}})
	assert.Error(t, err)
	_, err = Execute(context.Background(), Options{Select: func(ctx context.Context) (selection.Result, error) {
		return selection.Result{}, nil
	}})
	assert.Error(t, err)
}

func TestStdoutTargetWritesRawBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, StdoutTarget{Writer: &buf}.OnSuccess([]byte{0x89, 'P', 'N', 'G'}))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, buf.Bytes())
}

type fakeConn struct {
	success []byte
	errMsg  string
}

func (c *fakeConn) Request() singleinstance.Request  { return singleinstance.Request{OutputToStdout: true} }
func (c *fakeConn) RespondSuccess(data []byte) error { c.success = data; return nil }
func (c *fakeConn) RespondError(msg string) error    { c.errMsg = msg; return nil }
func (c *fakeConn) Close() error                     { return nil }

func TestDelegatedTargetStdout(t *testing.T) {
	conn := &fakeConn{}
	target := DelegatedTarget{Conn: conn, OutputToStdout: true}
	require.NoError(t, target.OnSuccess([]byte("png")))
	assert.Equal(t, []byte("png"), conn.success)

	require.NoError(t, target.OnFailure(ErrSelectionCancelled))
	assert.Equal(t, "selection cancelled", conn.errMsg)
}
