// internal/browser/jsbind/realm.go
package jsbind

import (
	"fmt"
	"sync/atomic"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domscript/internal/browser/dom"
	"github.com/xkilldash9x/domscript/internal/browser/jsconfig"
	"github.com/xkilldash9x/domscript/internal/browser/profile"
)

// Scope is the enclosing scope chain of a host object. The window is the
// outermost scope and has no parent.
type Scope interface {
	ParentScope() Scope
}

// Projection is the script-side view of a host value: a DOM node, the
// window, an event, a request. It records the class it was projected
// through (nil for the generic fallback) and its enclosing scope.
type Projection struct {
	obj     *goja.Object
	native  any
	class   *Prototype
	scope   Scope
	profile *profile.Profile
	events  *listenerSet
}

// Object returns the goja object scripts see.
func (p *Projection) Object() *goja.Object { return p.obj }

// Native returns the Go value behind the object.
func (p *Projection) Native() any { return p.native }

// Node returns the projected DOM node, or nil for other host values.
func (p *Projection) Node() *dom.Node {
	n, _ := p.native.(*dom.Node)
	return n
}

// Class returns the prototype the object was projected through, or nil for
// the plain fallback object.
func (p *Projection) Class() *Prototype { return p.class }

// Prototype returns the object's current script prototype.
func (p *Projection) Prototype() *goja.Object { return p.obj.Prototype() }

// ParentScope implements Scope.
func (p *Projection) ParentScope() Scope { return p.scope }

// Profile returns the profile the object was created under.
func (p *Projection) Profile() *profile.Profile { return p.profile }

var realmIDs atomic.Uint32

// Realm is one goja runtime with a profile's prototype graph materialized
// into it. It implements jsconfig.Host for the member implementations. A
// realm is confined to the goroutine running its runtime.
type Realm struct {
	id      uint32
	vm      *goja.Runtime
	graph   *Graph
	profile *profile.Profile
	logger  *zap.Logger
	window  *Window

	protos  map[string]*goja.Object
	ctors   map[string]*constructor
	proxies map[*goja.Object]*constructor
	// hostKey is the realm-private symbol under which each host object
	// carries its projection, so a projection lives exactly as long as its
	// object.
	hostKey *goja.Symbol
}

func newRealm(vm *goja.Runtime, g *Graph, p *profile.Profile, logger *zap.Logger) *Realm {
	return &Realm{
		id:      realmIDs.Add(1),
		vm:      vm,
		graph:   g,
		profile: p,
		logger:  logger,
		protos:  make(map[string]*goja.Object),
		ctors:   make(map[string]*constructor),
		proxies: make(map[*goja.Object]*constructor),
		hostKey: goja.NewSymbol("host"),
	}
}

// Runtime implements jsconfig.Host.
func (r *Realm) Runtime() *goja.Runtime { return r.vm }

// Graph returns the profile graph the realm was materialized from.
func (r *Realm) Graph() *Graph { return r.graph }

// Profile returns the realm's profile.
func (r *Realm) Profile() *profile.Profile { return r.profile }

// Window returns the window owning the realm.
func (r *Realm) Window() *Window { return r.window }

// materialize creates the prototype objects and global constructors.
func (r *Realm) materialize() error {
	objectProto, err := r.builtinPrototype("Object")
	if err != nil {
		return err
	}
	errorProto, err := r.builtinPrototype("Error")
	if err != nil {
		return err
	}

	// Pass 1: members.
	for _, p := range r.graph.order {
		proto := r.vm.CreateObject(nil)
		d := p.desc
		for _, c := range d.Constants {
			if err := r.defineConstant(proto, c); err != nil {
				return fmt.Errorf("failed to define %s.%s: %w", d.Name, c.Name, err)
			}
		}
		for _, prop := range d.Properties {
			if err := r.defineAccessor(proto, prop); err != nil {
				return fmt.Errorf("failed to define %s.%s: %w", d.Name, prop.Name, err)
			}
		}
		for _, fn := range d.Functions {
			if err := r.defineMethod(proto, fn); err != nil {
				return fmt.Errorf("failed to define %s.%s: %w", d.Name, fn.Name, err)
			}
		}
		r.protos[d.Name] = proto
	}

	// Pass 2: prototype links.
	for _, p := range r.graph.order {
		parent := objectProto
		switch {
		case p.parent != nil:
			parent = r.protos[p.parent.Name()]
		case p.desc.ErrorBase:
			parent = errorProto
		}
		if err := r.protos[p.Name()].SetPrototype(parent); err != nil {
			return fmt.Errorf("failed to link %s to its parent: %w", p.Name(), err)
		}
	}

	// Pass 3: constructors and globals.
	global := r.vm.GlobalObject()
	for _, p := range r.graph.order {
		c, err := r.newConstructor(p)
		if err != nil {
			return err
		}
		r.ctors[p.Name()] = c
		r.proxies[c.proxy] = c
		if err := r.protos[p.Name()].DefineDataProperty("constructor", c.proxy, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
			return fmt.Errorf("failed to define %s.prototype.constructor: %w", p.Name(), err)
		}
		if err := global.DefineDataProperty(p.Name(), c.proxy, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
			return fmt.Errorf("failed to install global %s: %w", p.Name(), err)
		}
	}

	if winProto, ok := r.protos["Window"]; ok {
		if err := global.SetPrototype(winProto); err != nil {
			return fmt.Errorf("failed to link the global object to Window.prototype: %w", err)
		}
	}
	return nil
}

func (r *Realm) builtinPrototype(name string) (*goja.Object, error) {
	ctor, ok := r.vm.Get(name).(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("runtime has no %s constructor", name)
	}
	proto, ok := ctor.Get("prototype").(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("runtime has no %s.prototype", name)
	}
	return proto, nil
}

func (r *Realm) defineConstant(obj *goja.Object, c jsconfig.Constant) error {
	return obj.DefineDataProperty(c.Name, r.vm.ToValue(c.Value), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func (r *Realm) defineAccessor(proto *goja.Object, prop jsconfig.Property) error {
	get := prop.Getter
	getter := r.newFunction("get "+prop.Name, func(call goja.FunctionCall) goja.Value {
		return get(r, call.This)
	})
	var setter goja.Value
	if set := prop.Setter; set != nil {
		setter = r.newFunction("set "+prop.Name, func(call goja.FunctionCall) goja.Value {
			set(r, call.This, call.Argument(0))
			return goja.Undefined()
		})
	}
	return proto.DefineAccessorProperty(prop.Name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

func (r *Realm) defineMethod(proto *goja.Object, fn jsconfig.Function) error {
	call := fn.Call
	method := r.newFunction(fn.Name, func(c goja.FunctionCall) goja.Value {
		return call(r, c)
	})
	return proto.DefineDataProperty(fn.Name, method, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

// newFunction wraps fn with a script-visible name.
func (r *Realm) newFunction(name string, fn func(goja.FunctionCall) goja.Value) *goja.Object {
	obj := r.vm.ToValue(fn).(*goja.Object)
	_ = obj.DefineDataProperty("name", r.vm.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	return obj
}

// prototypeOf returns the materialized prototype of a class, or nil when the
// class is not configured for the profile.
func (r *Realm) prototypeOf(class string) *goja.Object {
	return r.protos[class]
}

// constructorPrototype returns the prototype instances of class receive.
func (r *Realm) constructorPrototype(class string) *goja.Object {
	p, ok := r.graph.ConstructorPrototype(class)
	if !ok {
		return nil
	}
	return r.protos[p.Name()]
}

// Constructor returns the global constructor object of a class.
func (r *Realm) Constructor(class string) (*goja.Object, bool) {
	c, ok := r.ctors[class]
	if !ok {
		return nil, false
	}
	return c.proxy, true
}

// Resolver returns the member resolver behind a class's constructor.
func (r *Realm) Resolver(class string) (MemberResolver, bool) {
	c, ok := r.ctors[class]
	if !ok {
		return nil, false
	}
	return c.resolver, true
}

// register records obj as the projection of native.
func (r *Realm) register(obj *goja.Object, native any, scope Scope) *Projection {
	p := &Projection{obj: obj, native: native, scope: scope, profile: r.profile}
	if err := obj.DefineDataPropertySymbol(r.hostKey, r.vm.ToValue(p), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		panic(&BindingError{Reason: fmt.Sprintf("cannot attach projection: %v", err)})
	}
	return p
}

// lookupHost returns the projection carried by obj itself. A projection
// inherited through the prototype chain does not count.
func (r *Realm) lookupHost(obj *goja.Object) *Projection {
	if obj == nil {
		return nil
	}
	v := obj.GetSymbol(r.hostKey)
	if v == nil {
		return nil
	}
	p, ok := v.Export().(*Projection)
	if !ok || p.obj != obj {
		return nil
	}
	return p
}

// newHost creates an object with the class's constructor prototype and
// registers it. Unconfigured classes yield a null-prototype object that the
// constructor fixup completes.
func (r *Realm) newHost(class string, native any) (*goja.Object, *Projection) {
	obj := r.vm.CreateObject(r.constructorPrototype(class))
	p := r.register(obj, native, r.window)
	if proto, ok := r.graph.ConstructorPrototype(class); ok {
		p.class = proto
	}
	return obj, p
}

// hostOf returns the projection behind v. An undefined or null receiver
// means the global object.
func (r *Realm) hostOf(v goja.Value) *Projection {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return r.lookupHost(r.vm.GlobalObject())
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return r.lookupHost(obj)
}

// nativeOf returns the native value of type T behind this, or throws a
// TypeError.
func nativeOf[T any](r *Realm, this goja.Value) T {
	if p := r.hostOf(this); p != nil {
		if v, ok := p.native.(T); ok {
			return v
		}
	}
	r.throwTypeError("%s", ErrIllegalInvocation)
	var zero T
	return zero
}

// nodeOf returns the DOM node behind this, or throws a TypeError.
func (r *Realm) nodeOf(this goja.Value) *dom.Node {
	return nativeOf[*dom.Node](r, this)
}

// nodeArg converts an argument to a node. A non-node argument throws.
func (r *Realm) nodeArg(v goja.Value, method string) *dom.Node {
	if p := r.hostOf(v); p != nil && v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		if n := p.Node(); n != nil {
			return n
		}
	}
	r.throwTypeError("Failed to execute '%s': parameter is not of type 'Node'.", method)
	return nil
}

// optionalNodeArg is nodeArg that maps null and undefined to nil.
func (r *Realm) optionalNodeArg(v goja.Value, method string) *dom.Node {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return r.nodeArg(v, method)
}

// project returns the script object of n, or null.
func (r *Realm) project(n *dom.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	return r.window.binder.ProjectionFor(n).obj
}

// projectAll returns a script array of node objects.
func (r *Realm) projectAll(nodes []*dom.Node) goja.Value {
	items := make([]any, len(nodes))
	for i, n := range nodes {
		items[i] = r.project(n)
	}
	return r.vm.NewArray(items...)
}

// nullableString maps a (value, ok) pair to a string or null.
func (r *Realm) nullableString(s string, ok bool) goja.Value {
	if !ok {
		return goja.Null()
	}
	return r.vm.ToValue(s)
}
