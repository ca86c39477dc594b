package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"screenshot-native/src/config"
	"screenshot-native/src/messages"
	"screenshot-native/src/screenshot"
	"screenshot-native/src/session"
	"screenshot-native/src/singleinstance"
	"screenshot-native/src/tray"
	"screenshot-native/src/worker"
)

// ErrBusy is reported to callers when a capture is already in flight.
var ErrBusy = errors.New("Busy, please retry")

const defaultDeadline = 10 * time.Second

// Loop is the single-threaded coordinator for run-once requests, hotkey
// presses and tray actions.
type Loop struct {
	runner         *session.Runner
	pool           *worker.Pool
	srv            singleinstance.Server
	publisher      messages.Publisher
	busy           bool
	results        chan result
	triggers       chan trigger
	defaultTooltip string
	deadline       time.Duration
}

// Options wires a Loop. Runner is required; the rest have defaults.
type Options struct {
	Runner    *session.Runner
	Pool      *worker.Pool
	Server    singleinstance.Server
	Publisher messages.Publisher
	Deadline  time.Duration
}

type trigger struct {
	action string
	hotkey bool
}

type result struct {
	png    []byte
	err    error
	target resultTarget
	cancel context.CancelFunc
}

type resultTarget interface {
	OnSuccess(png []byte) error
	OnProcessError(err error)
	OnDeliveryError(err error)
	Close()
}

type clipboardResultTarget struct{}

func (clipboardResultTarget) OnSuccess(png []byte) error {
	return session.ClipboardTarget{}.OnSuccess(png)
}

func (clipboardResultTarget) OnProcessError(err error) {
	log.Printf("capture failed: %v", err)
}

func (clipboardResultTarget) OnDeliveryError(err error) {
	log.Printf("clipboard error: %v", err)
}

func (clipboardResultTarget) Close() {}

type delegatedResultTarget struct {
	sink session.DelegatedTarget
	conn singleinstance.Conn
}

func newDelegatedResultTarget(conn singleinstance.Conn, outputToStdout bool) delegatedResultTarget {
	return delegatedResultTarget{
		sink: session.DelegatedTarget{Conn: conn, OutputToStdout: outputToStdout},
		conn: conn,
	}
}

func (t delegatedResultTarget) OnSuccess(png []byte) error {
	return t.sink.OnSuccess(png)
}

func (t delegatedResultTarget) OnProcessError(err error) {
	_ = t.sink.OnFailure(err)
}

func (t delegatedResultTarget) OnDeliveryError(err error) {
	_ = t.sink.OnFailure(err)
}

func (t delegatedResultTarget) Close() {
	if t.conn != nil {
		_ = t.conn.Close()
	}
}

type requestCallbacks struct {
	onBusy        func()
	onSelectError func(err error)
	onCancelled   func()
}

// New creates a loop. It panics without a runner.
func New(opts Options) *Loop {
	if opts.Runner == nil {
		panic("eventloop: Runner is required")
	}
	pool := opts.Pool
	if pool == nil {
		pool = worker.New(1, nil)
	}
	srv := opts.Server
	if srv == nil {
		srv = singleinstance.NewServer()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = messages.PublisherFunc(func(messages.Message) {})
	}
	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = defaultDeadline
	}

	return &Loop{
		runner:         opts.Runner,
		pool:           pool,
		srv:            srv,
		publisher:      publisher,
		results:        make(chan result, 1),
		triggers:       make(chan trigger, 4),
		defaultTooltip: "Screenshot Native",
		deadline:       deadline,
	}
}

// SetDefaultTooltip optionally sets the tray tooltip base text.
func (l *Loop) SetDefaultTooltip(tt string) { l.defaultTooltip = tt }

// Deadline returns the per-capture deadline for this loop.
func (l *Loop) Deadline() time.Duration { return l.deadline }

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if b {
		tray.SetTooltip("Screenshot Native: capturing...")
	} else {
		tray.SetTooltip(l.defaultTooltip)
	}
}

// HotkeyPressed is the hotkey manager callback. It never blocks; presses
// arriving while the queue is full are dropped.
func (l *Loop) HotkeyPressed(actionID string) {
	l.post(trigger{action: actionID, hotkey: true})
}

// Trigger runs a built-in action as if its hotkey had been pressed, without
// announcing a hotkey event.
func (l *Loop) Trigger(actionID string) {
	l.post(trigger{action: actionID})
}

func (l *Loop) post(t trigger) {
	select {
	case l.triggers <- t:
	default:
		log.Printf("eventloop: dropping %q, queue full", t.action)
	}
}

// Run starts the singleinstance server and processes requests until ctx is
// cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.srv.Start(ctx); err != nil {
		return err
	}
	defer l.srv.Close()
	if p := l.srv.Port(); p > 0 {
		log.Printf("Resident listening on 127.0.0.1:%d", p)
	}
	defer l.pool.Close()

	// Accept loop in background to avoid blocking result handling
	reqCh := make(chan singleinstance.Conn, 4)
	go func() {
		defer close(reqCh)
		for {
			conn, err := l.srv.Next(ctx)
			if err != nil {
				return
			}
			select {
			case reqCh <- conn:
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-l.triggers:
			l.handleTrigger(ctx, t)
		case conn, ok := <-reqCh:
			if !ok {
				return nil
			}
			l.handleConn(ctx, conn)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	target := newDelegatedResultTarget(conn, conn.Request().OutputToStdout)
	l.startRegion(ctx, target, requestCallbacks{
		onBusy: func() {
			target.OnProcessError(ErrBusy)
			target.Close()
		},
		onSelectError: func(err error) {
			target.OnProcessError(fmt.Errorf("Failed to select region: %w", err))
			target.Close()
		},
		onCancelled: func() {
			target.OnProcessError(session.ErrSelectionCancelled)
			target.Close()
		},
	})
}

func (l *Loop) handleTrigger(ctx context.Context, t trigger) {
	log.Printf("handleTrigger: action=%q hotkey=%v", t.action, t.hotkey)
	if t.hotkey {
		l.publisher.Publish(messages.HotkeyPressed{ActionID: t.action})
	}

	switch t.action {
	case config.RegionCaptureAction:
		l.startRegion(ctx, clipboardResultTarget{}, requestCallbacks{
			onBusy: func() {
				log.Printf("handleTrigger: busy, skipping")
			},
			onSelectError: func(err error) {
				log.Printf("handleTrigger: selection error: %v", err)
			},
			onCancelled: func() {
				log.Printf("handleTrigger: selection cancelled")
			},
		})
	case config.FullscreenCaptureAction:
		if l.busy {
			log.Printf("handleTrigger: busy, skipping full screen capture")
			return
		}
		l.submit(ctx, worker.FullScreen, clipboardResultTarget{}, func() {
			log.Printf("handleTrigger: capture queue full")
		})
	}
}

func (l *Loop) handleResult(res result) {
	log.Printf("handleResult: called with %d bytes, err=%v", len(res.png), res.err)
	defer func() {
		l.setBusy(false)
		if res.cancel != nil {
			res.cancel()
		}
	}()
	if res.target == nil {
		log.Printf("handleResult: missing target")
		return
	}
	defer res.target.Close()

	if res.err != nil {
		log.Printf("handleResult: capture error: %v", res.err)
		res.target.OnProcessError(res.err)
		return
	}

	if err := res.target.OnSuccess(res.png); err != nil {
		log.Printf("handleResult: delivery error: %v", err)
		res.target.OnDeliveryError(err)
	}
}

func (l *Loop) startRegion(ctx context.Context, target resultTarget, callbacks requestCallbacks) {
	if l.busy {
		if callbacks.onBusy != nil {
			callbacks.onBusy()
		}
		return
	}

	sel, err := l.runner.Run(ctx)
	if errors.Is(err, session.ErrBusy) {
		if callbacks.onBusy != nil {
			callbacks.onBusy()
		}
		return
	}
	l.publisher.Publish(messages.FromSelection(sel, err))
	if err != nil {
		if callbacks.onSelectError != nil {
			callbacks.onSelectError(err)
		}
		return
	}
	if sel.Cancelled {
		if callbacks.onCancelled != nil {
			callbacks.onCancelled()
		}
		return
	}

	l.submit(ctx, session.RegionOf(sel), target, callbacks.onBusy)
}

func (l *Loop) submit(ctx context.Context, region screenshot.Region, target resultTarget, onBusy func()) {
	jobCtx, cancel := context.WithTimeout(ctx, l.deadline)

	l.setBusy(true)
	submitted := l.pool.Submit(jobCtx, region, func(png []byte, err error) {
		l.results <- result{png: png, err: err, target: target, cancel: cancel}
	})
	if !submitted {
		cancel()
		l.setBusy(false)
		if onBusy != nil {
			onBusy()
		}
	}
}
