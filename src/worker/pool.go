package worker

import (
	"context"
	"log"
	"runtime"
	"sync"

	"screenshot-native/src/screenshot"
)

// FullScreen is the region that asks for a capture of the whole virtual screen.
var FullScreen = screenshot.Region{}

// CaptureFunc encodes the pixels of region as PNG.
type CaptureFunc func(ctx context.Context, region screenshot.Region) ([]byte, error)

// ResultCallback is invoked on capture completion (from a worker goroutine).
// The event loop should pass a closure that posts back into the event loop safely.
type ResultCallback func(png []byte, err error)

// Pool is a fixed-size capture worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	jobs    chan job
	capture CaptureFunc
	wg      sync.WaitGroup
}

type job struct {
	ctx    context.Context
	region screenshot.Region
	cb     ResultCallback
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
// A nil capture uses the screenshot package.
func New(size int, capture CaptureFunc) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if capture == nil {
		capture = Capture
	}
	p := &Pool{jobs: make(chan job, 1), capture: capture}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				log.Printf("Worker: Starting capture for region %dx%d", j.region.Width, j.region.Height)
				data, err := captureWithContext(j.ctx, j.region, p.capture)
				log.Printf("Worker: Capture completed, bytes=%d, err=%v", len(data), err)
				j.cb(data, err)
			}
		}()
	}
}

// Submit enqueues a capture job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, region screenshot.Region, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, region: region, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// Capture is the default CaptureFunc: FullScreen grabs every display, any
// other region is validated and captured as is.
func Capture(ctx context.Context, region screenshot.Region) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if region == FullScreen {
		return screenshot.CaptureFullScreen()
	}
	return screenshot.CaptureRegion(region)
}

// captureWithContext runs capture and stops waiting once ctx is done.
func captureWithContext(ctx context.Context, region screenshot.Region, capture CaptureFunc) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		return capture(ctx, region)
	}
	type outcome struct {
		data []byte
		err  error
	}
	resCh := make(chan outcome, 1)
	go func() {
		data, err := capture(ctx, region)
		resCh <- outcome{data, err}
	}()
	select {
	case r := <-resCh:
		return r.data, r.err
	case <-ctx.Done():
		// The capture keeps running in the background; its result is dropped.
		return nil, ctx.Err()
	}
}
