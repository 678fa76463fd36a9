package dynamic

import (
	"bufio"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
)

// ResponseWriter is the http.ResponseWriter handed to every Handler during a
// pass. It records what the handler wrote so the pass can tell a terminal
// response from a handler that is still working.
// It also implements http.Flusher, http.Hijacker, and http.Pusher when the
// underlying ResponseWriter supports these interfaces.
type ResponseWriter interface {
	http.ResponseWriter
	// Status returns the HTTP status code of the response.
	Status() int
	// Size returns the number of bytes written to the response.
	Size() int
	// Written returns whether the response has been written to.
	Written() bool
}

// responseWriter wraps http.ResponseWriter and tracks response status and size.
// Each handler of a pass gets its own responseWriter, so Written reports only
// what that handler did.
type responseWriter struct {
	http.ResponseWriter

	// mu serialises writes from a handler that completes on another
	// goroutine with detach called by the pass.
	mu          sync.Mutex
	status      int
	size        int
	wroteHeader bool
	detached    bool
	header      http.Header

	// committed is read by the pass while a handler may still be writing
	// from another goroutine.
	committed atomic.Bool
}

// Compile-time interface checks
var (
	_ http.ResponseWriter = (*responseWriter)(nil)
	_ http.Flusher        = (*responseWriter)(nil)
	_ http.Hijacker       = (*responseWriter)(nil)
	_ http.Pusher         = (*responseWriter)(nil)
	_ ResponseWriter      = (*responseWriter)(nil)
)

// Status returns the HTTP status code of the response. If not yet written, it returns 200 OK.
func (rw *responseWriter) Status() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

// Size returns the number of bytes written to the response.
func (rw *responseWriter) Size() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.size
}

// Written returns whether the response has been written to. A flushed or
// hijacked response counts as written.
func (rw *responseWriter) Written() bool {
	return rw.committed.Load()
}

// Header returns the header map of the underlying writer, or a private map
// once the writer is detached.
func (rw *responseWriter) Header() http.Header {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.detached {
		if rw.header == nil {
			rw.header = make(http.Header)
		}
		return rw.header
	}
	return rw.ResponseWriter.Header()
}

// WriteHeader sends an HTTP response header with the provided status code.
// Only the first call is forwarded.
func (rw *responseWriter) WriteHeader(status int) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.wroteHeader || rw.detached {
		return
	}
	rw.status = status
	rw.wroteHeader = true
	rw.committed.Store(true)
	rw.ResponseWriter.WriteHeader(status)
}

// Write writes the data to the connection as part of an HTTP reply. A
// detached writer discards b and returns http.ErrHandlerTimeout.
func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.detached {
		return 0, http.ErrHandlerTimeout
	}
	rw.commit()
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Unwrap returns the underlying http.ResponseWriter.
// This enables http.ResponseController to access the original ResponseWriter.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Flush implements http.Flusher. Flushing commits the response.
func (rw *responseWriter) Flush() {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.detached {
		return
	}
	rw.commit()
	http.NewResponseController(rw.ResponseWriter).Flush()
}

// Hijack implements http.Hijacker.
// Allows the caller to take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.detached {
		return nil, nil, http.ErrHandlerTimeout
	}
	conn, buf, err := http.NewResponseController(rw.ResponseWriter).Hijack()
	if err == nil {
		rw.committed.Store(true)
	}
	return conn, buf, err
}

// Push implements http.Pusher.
// Initiates an HTTP/2 server push.
func (rw *responseWriter) Push(target string, opts *http.PushOptions) error {
	pusher, ok := rw.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}

// commit records an implicit 200 OK. Callers hold mu.
func (rw *responseWriter) commit() {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.status = http.StatusOK
	rw.committed.Store(true)
}

// detach cuts the writer off from the response once the pass has given up
// on its handler. Later writes are discarded.
func (rw *responseWriter) detach() {
	rw.mu.Lock()
	rw.detached = true
	rw.mu.Unlock()
}

// trackWriter wraps w in a fresh responseWriter.
func trackWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w}
}
