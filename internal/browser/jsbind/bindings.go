// internal/browser/jsbind/bindings.go
package jsbind

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domscript/internal/browser/jsconfig"
)

// DefaultBindings returns the Go implementations of every member in the
// embedded class catalog.
func DefaultBindings() *jsconfig.Bindings {
	b := jsconfig.NewBindings()
	registerEventTarget(b)
	registerEvent(b)
	registerDOMException(b)
	registerWindow(b)
	registerNavigator(b)
	registerNode(b)
	registerCharacterData(b)
	registerElement(b)
	registerHTMLElements(b)
	registerDocument(b)
	registerXHR(b)
	registerURL(b)
	registerDOMParser(b)
	return b
}

// NewDefaultRegistry validates the embedded catalog against DefaultBindings.
func NewDefaultRegistry(logger *zap.Logger) (*jsconfig.Registry, error) {
	catalog, err := jsconfig.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	return jsconfig.NewRegistry(catalog, DefaultBindings(), logger)
}

// classBindings registers the members of one class against the realm type.
type classBindings struct {
	b     *jsconfig.Bindings
	class string
}

func (c classBindings) getter(name string, get func(r *Realm, this goja.Value) goja.Value) {
	c.b.Getters[jsconfig.Key(c.class, name)] = func(h jsconfig.Host, this goja.Value) goja.Value {
		return get(h.(*Realm), this)
	}
}

func (c classBindings) setter(name string, set func(r *Realm, this, v goja.Value)) {
	c.b.Setters[jsconfig.Key(c.class, name)] = func(h jsconfig.Host, this, v goja.Value) {
		set(h.(*Realm), this, v)
	}
}

func (c classBindings) accessor(name string, get func(r *Realm, this goja.Value) goja.Value, set func(r *Realm, this, v goja.Value)) {
	c.getter(name, get)
	c.setter(name, set)
}

func (c classBindings) method(name string, m func(r *Realm, call goja.FunctionCall) goja.Value) {
	c.b.Methods[jsconfig.Key(c.class, name)] = func(h jsconfig.Host, call goja.FunctionCall) goja.Value {
		return m(h.(*Realm), call)
	}
}

func (c classBindings) constructor(fn func(r *Realm, args []goja.Value) *goja.Object) {
	c.b.Constructors[jsconfig.Key(c.class, "constructor")] = func(h jsconfig.Host, args []goja.Value) *goja.Object {
		return fn(h.(*Realm), args)
	}
}

// argument returns args[i] or undefined.
func argument(args []goja.Value, i int) goja.Value {
	if i < len(args) && args[i] != nil {
		return args[i]
	}
	return goja.Undefined()
}

// stringArg converts an argument to a string, mapping undefined to def.
func stringArg(v goja.Value, def string) string {
	if v == nil || goja.IsUndefined(v) {
		return def
	}
	return v.String()
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}
