package dynamic

import (
	"log/slog"
	"net/http"
	"reflect"
	"sync"
	"time"
	"unsafe"
)

// Registry is an ordered, mutable list of handlers that runs as a single
// stage of an HTTP pipeline. The list may be changed at any time, including
// while requests are being served.
type Registry struct {
	mu sync.RWMutex
	// handlers is replaced, never modified in place, so a pass can keep
	// iterating the slice it read at its start.
	handlers []Handler

	logger  *slog.Logger
	timeout time.Duration
	onError ErrorHandler
	seed    []Handler
}

// New returns a new Registry configured by opts.
func New(opts ...Option) *Registry {
	reg := &Registry{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(reg)
	}
	reg.handlers = reg.accept("new", reg.seed)
	reg.seed = nil
	return reg
}

// Use appends handlers to the end of the registry. Nil handlers are skipped
// with a warning. Passes that already started are not affected.
func (reg *Registry) Use(handlers ...Handler) {
	valid := reg.accept("use", handlers)
	if len(valid) == 0 {
		return
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	next := make([]Handler, len(reg.handlers), len(reg.handlers)+len(valid))
	copy(next, reg.handlers)
	reg.handlers = append(next, valid...)
}

// Unuse removes every occurrence of h. Removing a handler that is not
// registered does nothing.
//
// Handlers built with HTTP, HTTPFunc or Middleware match any other adapter
// built from the same value. A HandlerFunc matches the same function value:
// every closure that captures variables is distinct, even when created by the
// same function literal, while a top-level function matches itself. Method
// values allocate a new closure on every evaluation, so keep the Handler that
// was registered to remove it later.
func (reg *Registry) Unuse(h Handler) {
	if !valid(h) {
		return
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	var next []Handler
	for _, cur := range reg.handlers {
		if !same(cur, h) {
			next = append(next, cur)
		}
	}
	reg.handlers = next
}

// Clean removes all handlers.
func (reg *Registry) Clean() {
	reg.mu.Lock()
	reg.handlers = nil
	reg.mu.Unlock()
}

// Get returns the registered handlers in execution order. The returned slice
// is a copy.
func (reg *Registry) Get() []Handler {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]Handler, len(reg.handlers))
	copy(out, reg.handlers)
	return out
}

// Len returns the number of registered handlers.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.handlers)
}

// Handle returns a middleware that runs the registered handlers for every
// request and then calls the next handler. Each call returns a new middleware
// backed by the same registry.
//
// When a handler aborts the pass with an error, the error is logged and next
// is not called. See WithErrorForwarding to report it instead. A nil next
// handler responds with 404 Not Found.
func (reg *Registry) Handle() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := reg.run(w, r)
			switch res.outcome {
			case proceed:
				next.ServeHTTP(w, r)
			case failed:
				if reg.onError != nil {
					reg.onError(w, r, res.err, res.written)
				}
			}
		})
	}
}

// Handler returns the registry as a Handler so it can be registered with
// another registry. When a pass fails, next is only called (with the error)
// if error forwarding is enabled; otherwise the parent pass waits as it would
// for any handler that never completes.
func (reg *Registry) Handler() Handler {
	return &registryHandler{reg: reg}
}

type registryHandler struct {
	reg *Registry
}

func (h *registryHandler) ServeNext(w http.ResponseWriter, r *http.Request, next Next) {
	res := h.reg.run(w, r)
	switch res.outcome {
	case proceed:
		next(nil)
	case terminal:
		next(ErrHandled)
	case failed:
		if h.reg.onError != nil {
			next(res.err)
		}
	}
}

func (h *registryHandler) origin() any {
	return h.reg
}

func (reg *Registry) snapshot() []Handler {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.handlers
}

// accept returns the valid handlers and warns about the others.
func (reg *Registry) accept(op string, handlers []Handler) []Handler {
	var out []Handler
	for i, h := range handlers {
		if !valid(h) {
			reg.logger.Warn("dynamic: invalid handler skipped", "op", op, "index", i)
			continue
		}
		out = append(out, h)
	}
	return out
}

func valid(h Handler) bool {
	if h == nil {
		return false
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Chan, reflect.Slice, reflect.Interface:
		return !v.IsNil()
	}
	return true
}

func same(a, b Handler) bool {
	return identical(identity(a), identity(b))
}

func identity(h Handler) any {
	if w, ok := h.(wrapped); ok {
		return w.origin()
	}
	return h
}

func identical(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() || va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Func:
		return closure(va) == closure(vb)
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}

// closure returns the address of the closure record behind a func value.
// Value.Pointer reports the code pointer instead, which every closure made
// by one function literal shares.
func closure(v reflect.Value) unsafe.Pointer {
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return *(*unsafe.Pointer)(p.UnsafePointer())
}
