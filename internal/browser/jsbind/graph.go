// internal/browser/jsbind/graph.go
package jsbind

import (
	"fmt"
	"runtime"
	"sync"
	"weak"

	"github.com/xkilldash9x/domscript/internal/browser/jsconfig"
	"github.com/xkilldash9x/domscript/internal/browser/profile"
)

// Prototype is the profile-level node of the prototype graph. It is shared by
// every runtime bound under the same profile and never mutated after Build.
type Prototype struct {
	desc   *jsconfig.ClassDescriptor
	parent *Prototype
	index  int
}

// Name returns the global name of the class.
func (p *Prototype) Name() string { return p.desc.Name }

// Descriptor returns the class metadata for the graph's profile.
func (p *Prototype) Descriptor() *jsconfig.ClassDescriptor { return p.desc }

// Parent returns the parent prototype, or nil for a root.
func (p *Prototype) Parent() *Prototype { return p.parent }

// Graph is the prototype graph of one profile. It holds its profile weakly
// so that a cached graph does not keep its own cache key alive.
type Graph struct {
	profile weak.Pointer[profile.Profile]
	order   []*Prototype
	byName  map[string]*Prototype
	byDOM   map[string]*Prototype
}

// Build creates the prototype graph for p. A parent that is not configured
// for the same profile is a configuration error.
func Build(reg *jsconfig.Registry, p *profile.Profile) (*Graph, error) {
	descs, err := reg.DescriptorsFor(p)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		profile: weak.Make(p),
		order:   make([]*Prototype, 0, len(descs)),
		byName:  make(map[string]*Prototype, len(descs)),
		byDOM:   make(map[string]*Prototype),
	}

	// Pass 1: one prototype per descriptor.
	for i, d := range descs {
		proto := &Prototype{desc: d, index: i}
		g.order = append(g.order, proto)
		g.byName[d.Name] = proto
		for _, typ := range d.DOMTypes {
			if other, dup := g.byDOM[typ]; dup {
				return nil, &jsconfig.ConfigError{
					Profile: p.Key(),
					Class:   d.Name,
					Reason:  fmt.Sprintf("DOM type %s is already projected by %s", typ, other.Name()),
				}
			}
			g.byDOM[typ] = proto
		}
	}

	// Pass 2: parent links by name.
	for _, proto := range g.order {
		name := proto.desc.Parent
		if name == "" {
			continue
		}
		parent, ok := g.byName[name]
		if !ok {
			return nil, &jsconfig.ConfigError{
				Profile: p.Key(),
				Class:   proto.Name(),
				Reason:  fmt.Sprintf("parent %s is not configured for this profile", name),
			}
		}
		proto.parent = parent
	}
	return g, nil
}

// Profile returns the profile the graph was built for, or nil once that
// profile has been collected.
func (g *Graph) Profile() *profile.Profile { return g.profile.Value() }

// Lookup returns the prototype of a class by global name.
func (g *Graph) Lookup(name string) (*Prototype, bool) {
	p, ok := g.byName[name]
	return p, ok
}

// ForDOMType returns the class projecting the named DOM native type.
func (g *Graph) ForDOMType(typeName string) (*Prototype, bool) {
	p, ok := g.byDOM[typeName]
	return p, ok
}

// Prototypes returns every prototype in catalog order.
func (g *Graph) Prototypes() []*Prototype {
	return append([]*Prototype(nil), g.order...)
}

// ConstructorPrototype returns the prototype instances created through the
// class's constructor receive. For a double binding it is one hop up the
// chain: the aliased class's prototype, not a copy of it.
func (g *Graph) ConstructorPrototype(name string) (*Prototype, bool) {
	p, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	if p.desc.Alias && p.parent != nil {
		return p.parent, true
	}
	return p, true
}

// graphCaches holds one per-profile cache per registry. Registries are
// weak keys; an entry is dropped when its registry is collected.
var (
	graphCachesMu sync.Mutex
	graphCaches   = make(map[weak.Pointer[jsconfig.Registry]]*profile.Cache[*Graph])
)

// GraphFor returns the memoized graph of reg under p. Concurrent first
// requests share one build.
func GraphFor(reg *jsconfig.Registry, p *profile.Profile) (*Graph, error) {
	if reg == nil {
		return nil, fmt.Errorf("class registry cannot be nil")
	}
	if p == nil {
		return nil, fmt.Errorf("profile cannot be nil")
	}
	return graphCache(reg).Get(p, func(p *profile.Profile) (*Graph, error) {
		return Build(reg, p)
	})
}

func graphCache(reg *jsconfig.Registry) *profile.Cache[*Graph] {
	key := weak.Make(reg)
	graphCachesMu.Lock()
	defer graphCachesMu.Unlock()
	cache, ok := graphCaches[key]
	if !ok {
		cache = profile.NewCache[*Graph]()
		graphCaches[key] = cache
		runtime.AddCleanup(reg, dropGraphCache, key)
	}
	return cache
}

func dropGraphCache(key weak.Pointer[jsconfig.Registry]) {
	graphCachesMu.Lock()
	delete(graphCaches, key)
	graphCachesMu.Unlock()
}
