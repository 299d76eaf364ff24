// internal/browser/jsbind/resolver.go
package jsbind

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/xkilldash9x/domscript/internal/browser/profile"
)

// MemberResolver answers member queries against a class constructor,
// consulting the class's ancestors when the constructor itself lacks a
// member.
type MemberResolver interface {
	HasMember(name string) bool
	GetMember(name string) (goja.Value, bool)
	ListMembers() []string
}

// legacyName remaps the reported constructor name of a legacy global.
// An empty name reports the constructor as anonymous.
type legacyName struct {
	feature profile.Feature
	name    string
}

var legacyNames = map[string]legacyName{
	"webkitURL":     {feature: profile.WebkitURLAlias, name: "URL"},
	"ActiveXObject": {feature: profile.HideActiveXObjectName, name: ""},
}

// lookup yields the object one resolver level reads from. It may return nil
// when the level has no object in scope.
type lookup func() *goja.Object

// compositeResolver consults the constructor itself, then the global
// constructor of each precomputed ancestor, in order.
type compositeResolver struct {
	realm     *Realm
	class     *Prototype
	scope     Scope
	self      *goja.Object
	delegates []lookup
}

func newCompositeResolver(r *Realm, class *Prototype, scope Scope, self *goja.Object) *compositeResolver {
	c := &compositeResolver{realm: r, class: class, scope: scope, self: self}
	c.delegates = append(c.delegates, func() *goja.Object { return self })
	for _, name := range class.desc.Ancestors {
		c.delegates = append(c.delegates, c.globalLookup(name))
	}
	return c
}

// globalLookup reads an ancestor's constructor from the enclosing window.
// Proxies are unwrapped so each level only reports its own members.
func (c *compositeResolver) globalLookup(name string) lookup {
	return func() *goja.Object {
		w := windowOf(c.scope)
		if w == nil {
			return nil
		}
		obj, ok := w.Global().Get(name).(*goja.Object)
		if !ok {
			return nil
		}
		if ctor, isProxy := c.realm.proxies[obj]; isProxy {
			return ctor.target
		}
		return obj
	}
}

// HasMember implements MemberResolver.
func (c *compositeResolver) HasMember(name string) bool {
	if name == "name" {
		if _, ok := c.constructorName(); !ok {
			return false
		}
	}
	for _, l := range c.delegates {
		if obj := l(); obj != nil && obj.Get(name) != nil {
			return true
		}
	}
	return false
}

// GetMember implements MemberResolver. A direct read on the constructor
// wins; otherwise the constants of the static ancestor chain are searched,
// stopping at the first level the profile does not configure. Every
// constructor owns "prototype", so the fallback never serves it.
func (c *compositeResolver) GetMember(name string) (goja.Value, bool) {
	if name == "name" {
		n, ok := c.constructorName()
		return c.realm.vm.ToValue(n), ok
	}
	if v := c.self.Get(name); v != nil {
		return v, true
	}
	for _, ancestor := range c.class.desc.Ancestors {
		level, ok := c.realm.graph.Lookup(ancestor)
		if !ok {
			break
		}
		if k, ok := level.desc.Constant(name); ok {
			return c.realm.vm.ToValue(k.Value), true
		}
	}
	return nil, false
}

// ListMembers implements MemberResolver. Names are reported in encounter
// order, each once.
func (c *compositeResolver) ListMembers() []string {
	_, named := c.constructorName()
	seen := make(map[string]bool)
	var out []string
	for _, l := range c.delegates {
		obj := l()
		if obj == nil {
			continue
		}
		for _, key := range obj.GetOwnPropertyNames() {
			if seen[key] || (key == "name" && !named) {
				continue
			}
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

// constructorName reports the script-visible name of the class. ok is false
// when the profile hides the name altogether.
func (c *compositeResolver) constructorName() (string, bool) {
	name := c.class.Name()
	legacy, ok := legacyNames[name]
	if !ok || !resolveBrowserVersion(c.scope).HasFeature(legacy.feature) {
		return name, true
	}
	return legacy.name, legacy.name != ""
}

// windowOf walks the scope chain up to the window.
func windowOf(s Scope) *Window {
	for s != nil {
		if w, ok := s.(*Window); ok {
			return w
		}
		s = s.ParentScope()
	}
	return nil
}

// resolveBrowserVersion returns the profile of the window enclosing s, or
// the default profile for a detached scope.
func resolveBrowserVersion(s Scope) *profile.Profile {
	if w := windowOf(s); w != nil {
		return w.Profile()
	}
	return profile.Default()
}

// constructor is the global binding of one class: a native constructor
// target behind a proxy whose traps route through the resolver.
type constructor struct {
	realm    *Realm
	class    *Prototype
	target   *goja.Object
	proxy    *goja.Object
	resolver MemberResolver
}

func (r *Realm) newConstructor(p *Prototype) (*constructor, error) {
	c := &constructor{realm: r, class: p}
	c.target = r.vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		return c.construct(call.Arguments)
	}).(*goja.Object)

	name := p.Name()
	if err := c.target.DefineDataProperty("name", r.vm.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return nil, fmt.Errorf("failed to name constructor %s: %w", name, err)
	}
	if proto := r.constructorPrototype(name); proto != nil {
		if err := c.target.DefineDataProperty("prototype", proto, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
			return nil, fmt.Errorf("failed to define %s.prototype: %w", name, err)
		}
	}
	for _, k := range p.desc.Constants {
		if err := r.defineConstant(c.target, k); err != nil {
			return nil, fmt.Errorf("failed to define %s.%s: %w", name, k.Name, err)
		}
	}

	res := newCompositeResolver(r, p, r.window, c.target)
	c.resolver = res
	proxy := r.vm.NewProxy(c.target, &goja.ProxyTrapConfig{
		Has: func(_ *goja.Object, prop string) bool {
			return res.HasMember(prop)
		},
		Get: func(_ *goja.Object, prop string, _ goja.Value) goja.Value {
			v, ok := res.GetMember(prop)
			if !ok && prop != "name" {
				return goja.Undefined()
			}
			return v
		},
		OwnKeys: func(_ *goja.Object) *goja.Object {
			keys := res.ListMembers()
			items := make([]any, len(keys))
			for i, k := range keys {
				items[i] = k
			}
			return r.vm.NewArray(items...)
		},
		Apply: func(_ *goja.Object, _ goja.Value, args []goja.Value) goja.Value {
			return c.construct(args)
		},
		Construct: func(_ *goja.Object, args []goja.Value, _ *goja.Object) *goja.Object {
			return c.construct(args)
		},
	})
	c.proxy = r.vm.ToValue(proxy).(*goja.Object)
	return c, nil
}

// construct runs the class's constructor and completes the result: a
// missing prototype becomes the constructor prototype and a missing scope
// becomes the caller's window. Nothing already assigned is overwritten and
// an object never becomes its own prototype or scope.
func (c *constructor) construct(args []goja.Value) *goja.Object {
	r := c.realm
	ctor := c.class.desc.Constructor
	if ctor == nil {
		r.throwTypeError("Illegal constructor")
	}
	obj := ctor(r, args)
	if obj == nil {
		r.throwTypeError("Failed to construct '%s'", c.class.Name())
	}

	if obj.Prototype() == nil {
		if proto := r.constructorPrototype(c.class.Name()); proto != nil && proto != obj {
			_ = obj.SetPrototype(proto)
		}
	}
	if p := r.lookupHost(obj); p != nil {
		if p.scope == nil && p.native != any(r.window) {
			p.scope = r.window
		}
		if p.class == nil {
			p.class, _ = r.graph.ConstructorPrototype(c.class.Name())
		}
	}
	return obj
}
