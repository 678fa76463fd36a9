package dynamic

import (
	"net/http"
)

// Next is the continuation handed to every Handler. Calling it with a nil
// error lets the pass proceed to the following handler; calling it with
// ErrHandled ends the pass without an error; calling it with any other
// non-nil error aborts the pass. Only the first call has any effect.
type Next func(err error)

// Handler is a unit of request processing that can be registered with a
// Registry.
//
// A handler must do exactly one of the following:
//   - write a response and return without calling next, which ends the pass;
//   - call next(nil), before returning or later from another goroutine;
//   - call next(ErrHandled) after writing a response from another goroutine;
//   - call next(err) to abort the pass.
//
// A handler that returns without writing keeps the pass waiting for next, so
// an asynchronous handler must always call it.
type Handler interface {
	ServeNext(w http.ResponseWriter, r *http.Request, next Next)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, next Next)

// ServeNext calls f(w, r, next).
func (f HandlerFunc) ServeNext(w http.ResponseWriter, r *http.Request, next Next) {
	f(w, r, next)
}

// Func returns f as a Handler.
func Func(f func(w http.ResponseWriter, r *http.Request, next Next)) Handler {
	return HandlerFunc(f)
}

// wrapped is implemented by the adapters in this package so that Unuse can
// match an adapter by the value it was built from.
type wrapped interface {
	origin() any
}

// httpHandler runs a standard http.Handler as a chain member.
type httpHandler struct {
	handler http.Handler
	from    any
}

// HTTP adapts a standard http.Handler. If the handler writes nothing the
// pass continues, otherwise its response is terminal. A router that answers
// unknown paths itself (http.ServeMux writes a 404) therefore always ends
// the pass.
func HTTP(h http.Handler) Handler {
	if h == nil {
		return nil
	}
	return &httpHandler{handler: h, from: h}
}

// HTTPFunc adapts a standard handler function, see HTTP.
func HTTPFunc(f func(http.ResponseWriter, *http.Request)) Handler {
	if f == nil {
		return nil
	}
	return &httpHandler{handler: http.HandlerFunc(f), from: f}
}

func (h *httpHandler) ServeNext(w http.ResponseWriter, r *http.Request, next Next) {
	rw := trackWriter(w)
	h.handler.ServeHTTP(rw, r)
	if !rw.Written() {
		next(nil)
	}
}

func (h *httpHandler) origin() any {
	return h.from
}

// middlewareHandler runs a func(http.Handler) http.Handler as a chain member.
type middlewareHandler struct {
	mw func(http.Handler) http.Handler
}

// Middleware adapts a standard middleware. The pass continues when the
// middleware calls its inner handler or writes nothing; a middleware that
// writes a response without calling its inner handler ends the pass. The
// request and response writer the middleware hands to its inner handler are
// not carried over to the rest of the chain.
func Middleware(mw func(http.Handler) http.Handler) Handler {
	if mw == nil {
		return nil
	}
	return &middlewareHandler{mw: mw}
}

func (h *middlewareHandler) ServeNext(w http.ResponseWriter, r *http.Request, next Next) {
	rw := trackWriter(w)
	called := false
	inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	})
	h.mw(inner).ServeHTTP(rw, r)
	if called || !rw.Written() {
		next(nil)
	}
}

func (h *middlewareHandler) origin() any {
	return h.mw
}
