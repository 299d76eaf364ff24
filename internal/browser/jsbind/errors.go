// internal/browser/jsbind/errors.go
package jsbind

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/xkilldash9x/domscript/internal/browser/dom"
)

// This file holds the typed errors of the binding layer and the translation
// of Go errors into script exceptions. Typed errors let callers classify
// failures with errors.As instead of matching messages.

// BindingError reports a state the binder should never reach, such as a node
// slot pointing outside the arena. It is raised with panic.
type BindingError struct {
	NodeID dom.NodeID
	Reason string
}

// Error implements the error interface.
func (e *BindingError) Error() string {
	return fmt.Sprintf("binding error for node %d: %s", e.NodeID, e.Reason)
}

// ErrIllegalInvocation is thrown when a member runs against a receiver of
// the wrong host type.
var ErrIllegalInvocation = errors.New("Illegal invocation")

var errInvalidURL = errors.New("invalid URL")

// Legacy DOMException codes by name. Names outside the table report 0.
var exceptionCodes = map[string]int{
	"IndexSizeError":        1,
	"HierarchyRequestError": 3,
	"WrongDocumentError":    4,
	"InvalidCharacterError": 5,
	"NotFoundError":         8,
	"NotSupportedError":     9,
	"InvalidStateError":     11,
	"SyntaxError":           12,
	"SecurityError":         18,
	"NetworkError":          19,
	"AbortError":            20,
}

// domException is the native value behind a DOMException object.
type domException struct {
	name    string
	message string
	code    int
}

// newDOMException builds a DOMException object with the realm's prototype.
func (r *Realm) newDOMException(name, message string) *goja.Object {
	ex := &domException{name: name, message: message, code: exceptionCodes[name]}
	obj := r.vm.CreateObject(r.prototypeOf("DOMException"))
	r.register(obj, ex, r.window)
	return obj
}

// throw raises err as a script exception. Errors carrying a DOM exception
// name become DOMException objects; anything else becomes a Go error value.
func (r *Realm) throw(err error) {
	var ex dom.Exception
	if errors.As(err, &ex) {
		panic(r.newDOMException(ex.ExceptionName(), err.Error()))
	}
	panic(r.vm.NewGoError(err))
}

// throwDOM raises a DOMException by name.
func (r *Realm) throwDOM(name, message string) {
	panic(r.newDOMException(name, message))
}

func (r *Realm) throwTypeError(format string, args ...any) {
	panic(r.vm.NewTypeError(fmt.Sprintf(format, args...)))
}
