package dynamic

import "github.com/pkg/errors"

// ErrTimeout is the cause of the error logged when a handler does not signal
// completion within the duration set by WithTimeout.
var ErrTimeout = errors.New("dynamic: handler timed out")

// ErrHandled is passed to next by a handler that wrote the response from
// another goroutine after returning. The pass ends as if the handler had
// written before returning, and nothing is logged.
var ErrHandled = errors.New("dynamic: response handled")
