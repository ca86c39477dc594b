package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"screenshot-native/src/clipboard"
	"screenshot-native/src/screenshot"
	"screenshot-native/src/selection"
	"screenshot-native/src/singleinstance"
)

var ErrSelectionCancelled = errors.New("selection cancelled")

// SelectFunc runs one blocking selection session.
type SelectFunc func(ctx context.Context) (selection.Result, error)

// CaptureFunc encodes the pixels of a region as PNG.
type CaptureFunc func(ctx context.Context, region screenshot.Region) ([]byte, error)

// ResultTarget receives the PNG produced by a run-once capture.
type ResultTarget interface {
	OnSuccess(png []byte) error
	OnFailure(err error) error
}

type Options struct {
	Select  SelectFunc
	Capture CaptureFunc
	Target  ResultTarget
}

type Result struct {
	Region screenshot.Region
	PNG    []byte
}

// RegionOf converts a committed selection into a capture region.
func RegionOf(r selection.Result) screenshot.Region {
	return screenshot.Region{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// Execute runs select → capture → deliver once. Every failure is reported
// to the target before it is returned.
func Execute(ctx context.Context, opts Options) (Result, error) {
	if opts.Select == nil {
		return Result{}, errors.New("Select is required")
	}
	if opts.Target == nil {
		return Result{}, errors.New("Target is required")
	}
	capture := opts.Capture
	if capture == nil {
		capture = captureWithContext
	}

	sel, err := opts.Select(ctx)
	if err != nil {
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}
	if sel.Cancelled {
		_ = opts.Target.OnFailure(ErrSelectionCancelled)
		return Result{}, ErrSelectionCancelled
	}

	region := RegionOf(sel)
	data, err := capture(ctx, region)
	if err != nil {
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}
	if err := opts.Target.OnSuccess(data); err != nil {
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}
	return Result{Region: region, PNG: data}, nil
}

type ClipboardTarget struct{}

func (ClipboardTarget) OnSuccess(png []byte) error {
	return clipboard.WriteImage(png)
}

func (ClipboardTarget) OnFailure(err error) error {
	return nil
}

type StdoutTarget struct {
	Writer io.Writer
}

func (t StdoutTarget) OnSuccess(png []byte) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	_, err := w.Write(png)
	return err
}

func (t StdoutTarget) OnFailure(err error) error {
	return nil
}

// DelegatedTarget answers a run-once client that handed its request to the
// resident instance.
type DelegatedTarget struct {
	Conn           singleinstance.Conn
	OutputToStdout bool
}

func (t DelegatedTarget) OnSuccess(png []byte) error {
	if t.Conn == nil {
		return errors.New("delegated target missing connection")
	}
	if t.OutputToStdout {
		return t.Conn.RespondSuccess(png)
	}
	if err := clipboard.WriteImage(png); err != nil {
		return fmt.Errorf("clipboard error: %w", err)
	}
	return t.Conn.RespondSuccess(nil)
}

func (t DelegatedTarget) OnFailure(err error) error {
	if t.Conn == nil {
		return nil
	}
	if err == nil {
		return t.Conn.RespondError("unknown session error")
	}
	return t.Conn.RespondError(err.Error())
}

func captureWithContext(ctx context.Context, region screenshot.Region) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return screenshot.CaptureRegion(region)
}
