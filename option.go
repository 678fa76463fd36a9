package dynamic

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Registry created by New.
type Option func(*Registry)

// ErrorHandler receives the error that aborted a pass when error forwarding
// is enabled. written reports whether any handler of the pass had already
// written a response.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error, written bool)

// WithHandlers seeds the registry. Nil handlers are skipped with a warning.
func WithHandlers(handlers ...Handler) Option {
	return func(reg *Registry) {
		reg.seed = append(reg.seed, handlers...)
	}
}

// WithLogger sets the logger that receives the registry's warnings and
// handler errors. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(reg *Registry) {
		if logger != nil {
			reg.logger = logger
		}
	}
}

// WithTimeout bounds how long a pass waits for a handler that returned
// without signalling completion. Zero, the default, waits until the request
// context is done.
//
// The pass does not stop a handler that timed out. Like http.TimeoutHandler,
// it cuts the handler off from the response: once the wait ends, the
// handler's writes return http.ErrHandlerTimeout and its header changes are
// dropped, so they cannot interleave with the error response. Handlers that
// do long work should watch r.Context() and return early.
func WithTimeout(d time.Duration) Option {
	return func(reg *Registry) {
		reg.timeout = d
	}
}

// WithErrorForwarding makes a failed pass report its error to the host
// instead of stopping silently. For Handle the error goes to h, or to
// DefaultErrorHandler when h is nil. For Handler the error goes to the
// parent's continuation.
//
// The error is logged either way.
func WithErrorForwarding(h ErrorHandler) Option {
	return func(reg *Registry) {
		if h == nil {
			h = DefaultErrorHandler
		}
		reg.onError = h
	}
}

// DefaultErrorHandler writes a 500 Internal Server Error unless a response
// was already written.
func DefaultErrorHandler(w http.ResponseWriter, r *http.Request, err error, written bool) {
	if written {
		return
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
