package methodchannel

import (
	"context"
	"log"
	"sort"
	"sync"
)

// Handler serves one method. A returned *Error is sent as is; any other
// error is reported under the code the handler was registered with.
type Handler func(ctx context.Context, args Args) (any, error)

type route struct {
	code    Code
	handler Handler
}

// Dispatcher routes requests to handlers by method name.
type Dispatcher struct {
	mu     sync.RWMutex
	routes map[string]route
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{routes: make(map[string]route)}
}

// Handle registers h for method. Failures that are not *Error are reported
// with code.
func (d *Dispatcher) Handle(method string, code Code, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[method] = route{code: code, handler: h}
}

// Methods lists the registered method names.
func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.routes))
	for m := range d.routes {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs one request to completion.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (resp Response) {
	d.mu.RLock()
	r, ok := d.routes[req.Method]
	d.mu.RUnlock()
	if !ok {
		return failure(req.ID, Errorf(CodeNotImplemented, "method %q is not implemented", req.Method))
	}

	args, err := ParseArgs(req.Args)
	if err != nil {
		return failure(req.ID, asError(err, CodeInvalidArguments))
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("PANIC in %s handler: %v", req.Method, rec)
			resp = failure(req.ID, Errorf(r.code, "%s failed: %v", req.Method, rec))
		}
	}()
	result, err := r.handler(ctx, args)
	if err != nil {
		e := asError(err, r.code)
		log.Printf("Channel: %s failed: %v", req.Method, e)
		return failure(req.ID, e)
	}
	return success(req.ID, result)
}
