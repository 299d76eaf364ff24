// browser/dom/errors.go
package dom

import "fmt"

// Exception is implemented by errors that surface to scripts as DOMException.
type Exception interface {
	error
	ExceptionName() string
	ExceptionCode() int
}

// HierarchyRequestError reports a tree mutation that would produce an
// invalid document.
type HierarchyRequestError struct {
	Op     string
	Reason string
}

func (e *HierarchyRequestError) Error() string {
	return fmt.Sprintf("dom: %s: hierarchy request error: %s", e.Op, e.Reason)
}

func (e *HierarchyRequestError) ExceptionName() string { return "HierarchyRequestError" }
func (e *HierarchyRequestError) ExceptionCode() int    { return 3 }

// NotFoundError reports a reference node that is not where the caller said.
type NotFoundError struct {
	Op     string
	Reason string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dom: %s: not found: %s", e.Op, e.Reason)
}

func (e *NotFoundError) ExceptionName() string { return "NotFoundError" }
func (e *NotFoundError) ExceptionCode() int    { return 8 }

// InvalidCharacterError reports a name that is not a valid XML name.
type InvalidCharacterError struct {
	Name string
}

func (e *InvalidCharacterError) Error() string {
	return fmt.Sprintf("dom: invalid character in name %q", e.Name)
}

func (e *InvalidCharacterError) ExceptionName() string { return "InvalidCharacterError" }
func (e *InvalidCharacterError) ExceptionCode() int    { return 5 }

// SyntaxError reports a selector that could not be compiled.
type SyntaxError struct {
	Selector string
	Err      error
}

func (e *SyntaxError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dom: invalid selector %q: %v", e.Selector, e.Err)
	}
	return fmt.Sprintf("dom: invalid selector %q", e.Selector)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

func (e *SyntaxError) ExceptionName() string { return "SyntaxError" }
func (e *SyntaxError) ExceptionCode() int    { return 12 }
