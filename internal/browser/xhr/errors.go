// browser/xhr/errors.go
package xhr

import (
	"errors"
	"fmt"
)

// ErrCORSRejected is wrapped by a NetworkError when a cross-origin exchange
// is not authorized. Scripts cannot tell it apart from any other failure.
var ErrCORSRejected = errors.New("cross-origin request rejected")

// ErrSchedulerClosed reports that a background result had nowhere to go.
var ErrSchedulerClosed = errors.New("scheduler no longer accepts work")

// Exception names surfaced to scripts.
const (
	InvalidStateError = "InvalidStateError"
	SyntaxError       = "SyntaxError"
	SecurityError     = "SecurityError"
	NetworkErrorName  = "NetworkError"
)

var exceptionCodes = map[string]int{
	InvalidStateError: 11,
	SyntaxError:       12,
	SecurityError:     18,
	NetworkErrorName:  19,
}

// StateError is a protocol violation reported synchronously at the call site.
type StateError struct {
	Name    string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("xhr: %s: %s", e.Name, e.Message)
}

func (e *StateError) ExceptionName() string { return e.Name }
func (e *StateError) ExceptionCode() int    { return exceptionCodes[e.Name] }

func invalidState(msg string) error { return &StateError{Name: InvalidStateError, Message: msg} }

// NetworkError wraps a failed exchange. It is returned only for synchronous
// dispatch; background failures surface through events.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("xhr: network error for %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) ExceptionName() string { return NetworkErrorName }
func (e *NetworkError) ExceptionCode() int    { return exceptionCodes[NetworkErrorName] }
