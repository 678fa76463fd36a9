package dynamic

import (
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type outcome int

const (
	// proceed means every handler completed and the host may continue.
	proceed outcome = iota
	// terminal means a handler wrote a response and ended the pass.
	terminal
	// failed means a handler aborted the pass with an error.
	failed
)

type result struct {
	outcome outcome
	err     error
	// written reports whether any handler of the pass wrote a response.
	written bool
}

// run executes one pass over the handlers registered when it starts.
func (reg *Registry) run(w http.ResponseWriter, r *http.Request) result {
	var res result
	for i, h := range reg.snapshot() {
		rw := trackWriter(w)
		out, err := reg.step(i, h, rw, r)
		if rw.Written() {
			res.written = true
		}
		switch out {
		case terminal:
			res.outcome = terminal
			return res
		case failed:
			reg.logger.Error("dynamic: handler failed", "index", i, "error", err)
			res.outcome = failed
			res.err = err
			return res
		}
	}
	res.outcome = proceed
	return res
}

// step runs a single handler and waits for it to complete.
//
// A handler that called next before returning is done. One that returned
// without calling next but wrote a response has ended the pass. Anything else
// is still working and is waited for until it calls next, which for a
// response written later is next(ErrHandled).
func (reg *Registry) step(index int, h Handler, rw *responseWriter, r *http.Request) (outcome, error) {
	signal := make(chan error, 1)
	var once sync.Once
	h.ServeNext(rw, r, func(err error) {
		once.Do(func() {
			signal <- err
		})
	})

	select {
	case err := <-signal:
		return settle(err)
	default:
	}
	if rw.Written() {
		return terminal, nil
	}
	return reg.await(index, signal, rw, r)
}

// await waits for a handler that returned without completing. When the
// request context or the timeout ends the wait first, rw is detached so the
// handler can no longer write to the response.
func (reg *Registry) await(index int, signal <-chan error, rw *responseWriter, r *http.Request) (outcome, error) {
	var timeout <-chan time.Time
	if reg.timeout > 0 {
		t := time.NewTimer(reg.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case err := <-signal:
		return settle(err)
	case <-r.Context().Done():
		rw.detach()
		return failed, errors.Wrapf(r.Context().Err(), "dynamic: handler %d did not complete", index)
	case <-timeout:
		rw.detach()
		return failed, errors.Wrapf(ErrTimeout, "handler %d did not complete within %s", index, reg.timeout)
	}
}

func settle(err error) (outcome, error) {
	switch {
	case errors.Is(err, ErrHandled):
		return terminal, nil
	case err != nil:
		return failed, err
	}
	return proceed, nil
}
