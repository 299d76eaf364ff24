// browser/jsconfig/registry.go
package jsconfig

import (
	"fmt"

	"github.com/expr-lang/expr/vm"
	"github.com/xkilldash9x/domscript/internal/browser/profile"
	"go.uber.org/zap"
)

// Registry turns a catalog plus implementation bindings into per-profile
// class descriptors. Everything profile-independent (expression programs,
// ancestor chains, binding presence) is checked once at construction.
type Registry struct {
	catalog   *Catalog
	bindings  *Bindings
	logger    *zap.Logger
	programs  map[string]*vm.Program
	ancestors [][]string
	cache     *profile.Cache[[]*ClassDescriptor]
}

// NewRegistry validates the catalog against the bindings.
func NewRegistry(catalog *Catalog, bindings *Bindings, logger *zap.Logger) (*Registry, error) {
	if catalog == nil {
		return nil, fmt.Errorf("class catalog cannot be nil")
	}
	if bindings == nil {
		bindings = NewBindings()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		catalog:  catalog,
		bindings: bindings,
		logger:   logger.Named("jsconfig"),
		programs: make(map[string]*vm.Program),
		cache:    profile.NewCache[[]*ClassDescriptor](),
	}

	first := make(map[string]*ClassSpec)
	for i := range catalog.Classes {
		spec := &catalog.Classes[i]
		if _, ok := first[spec.Name]; !ok {
			first[spec.Name] = spec
		}
	}

	for i := range catalog.Classes {
		spec := &catalog.Classes[i]
		if err := r.compileSpec(spec); err != nil {
			return nil, err
		}
		if err := r.checkBindings(spec); err != nil {
			return nil, err
		}
		chain, err := ancestorChain(spec, first)
		if err != nil {
			return nil, err
		}
		r.ancestors = append(r.ancestors, chain)
	}
	return r, nil
}

// Catalog returns the metadata the registry was built from.
func (r *Registry) Catalog() *Catalog { return r.catalog }

// Classes lists the distinct class names of the catalog in declaration order.
func (r *Registry) Classes() []string {
	seen := make(map[string]bool, len(r.catalog.Classes))
	names := make([]string, 0, len(r.catalog.Classes))
	for _, c := range r.catalog.Classes {
		if !seen[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
	}
	return names
}

// Bindings returns the implementation table.
func (r *Registry) Bindings() *Bindings { return r.bindings }

// DescriptorsFor returns the classes available under p in catalog order.
// The result is cached per profile and must be treated as read-only.
func (r *Registry) DescriptorsFor(p *profile.Profile) ([]*ClassDescriptor, error) {
	if p == nil {
		return nil, fmt.Errorf("profile cannot be nil")
	}
	return r.cache.Get(p, r.build)
}

func (r *Registry) build(p *profile.Profile) ([]*ClassDescriptor, error) {
	env := availabilityEnv(p)
	byName := make(map[string]bool)
	out := make([]*ClassDescriptor, 0, len(r.catalog.Classes))

	for i := range r.catalog.Classes {
		spec := &r.catalog.Classes[i]
		ok, err := r.holds(spec.When, env)
		if err != nil {
			return nil, newConfigError(p.Key(), spec.Name, "availability expression failed", err)
		}
		if !ok {
			continue
		}
		if byName[spec.Name] {
			return nil, newConfigError(p.Key(), spec.Name, "two classes bind the same global name", nil)
		}
		byName[spec.Name] = true

		d, err := r.describe(p, spec, r.ancestors[i], env)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}

	r.logger.Debug("Built class descriptors.",
		zap.String("profile", p.Key()),
		zap.Int("classes", len(out)))
	return out, nil
}

func (r *Registry) describe(p *profile.Profile, spec *ClassSpec, ancestors []string, env map[string]any) (*ClassDescriptor, error) {
	d := &ClassDescriptor{
		Name:      spec.Name,
		Host:      spec.HostType(),
		Parent:    spec.Extends,
		Ancestors: ancestors,
		DOMTypes:  spec.DOM,
		Alias:     spec.Alias,
		ErrorBase: spec.ErrorBase,
	}

	for _, rule := range spec.Parents {
		ok, err := r.holds(rule.When, env)
		if err != nil {
			return nil, newConfigError(p.Key(), spec.Name, "parent rule failed", err)
		}
		if ok {
			d.Parent = rule.Name
			break
		}
	}

	if spec.Constructor {
		d.Constructor = r.bindings.Constructors[Key(spec.Name, "constructor")]
	}

	for _, c := range spec.Constants {
		ok, err := r.holds(c.When, env)
		if err != nil {
			return nil, newConfigError(p.Key(), spec.Name, "constant "+c.Name, err)
		}
		if ok {
			d.Constants = append(d.Constants, Constant{Name: c.Name, Value: c.Value, ReadOnly: true})
		}
	}
	for _, prop := range spec.Properties {
		ok, err := r.holds(prop.When, env)
		if err != nil {
			return nil, newConfigError(p.Key(), spec.Name, "property "+prop.Name, err)
		}
		if !ok {
			continue
		}
		key := Key(spec.Name, prop.Name)
		entry := Property{Name: prop.Name, Getter: r.bindings.Getters[key]}
		if prop.Writable {
			entry.Setter = r.bindings.Setters[key]
		}
		d.Properties = append(d.Properties, entry)
	}
	for _, fn := range spec.Functions {
		ok, err := r.holds(fn.When, env)
		if err != nil {
			return nil, newConfigError(p.Key(), spec.Name, "function "+fn.Name, err)
		}
		if ok {
			d.Functions = append(d.Functions, Function{Name: fn.Name, Call: r.bindings.Methods[Key(spec.Name, fn.Name)]})
		}
	}
	return d, nil
}

func (r *Registry) holds(source string, env map[string]any) (bool, error) {
	return evalAvailability(r.programs[source], env)
}

func (r *Registry) compileSpec(spec *ClassSpec) error {
	sources := []string{spec.When}
	for _, rule := range spec.Parents {
		sources = append(sources, rule.When)
	}
	for _, c := range spec.Constants {
		sources = append(sources, c.When)
	}
	for _, p := range spec.Properties {
		sources = append(sources, p.When)
	}
	for _, f := range spec.Functions {
		sources = append(sources, f.When)
	}
	for _, src := range sources {
		if src == "" {
			continue
		}
		if _, ok := r.programs[src]; ok {
			continue
		}
		program, err := compileAvailability(src)
		if err != nil {
			return newConfigError("", spec.Name, fmt.Sprintf("invalid availability expression %q", src), err)
		}
		r.programs[src] = program
	}
	return nil
}

func (r *Registry) checkBindings(spec *ClassSpec) error {
	b := r.bindings
	if spec.Constructor {
		if _, ok := b.Constructors[Key(spec.Name, "constructor")]; !ok {
			return newConfigError("", spec.Name, "constructor has no implementation", nil)
		}
	}
	for _, p := range spec.Properties {
		key := Key(spec.Name, p.Name)
		if _, ok := b.Getters[key]; !ok {
			return newConfigError("", spec.Name, "property "+p.Name+" has no getter", nil)
		}
		if p.Writable {
			if _, ok := b.Setters[key]; !ok {
				return newConfigError("", spec.Name, "writable property "+p.Name+" has no setter", nil)
			}
		}
	}
	for _, f := range spec.Functions {
		if _, ok := b.Methods[Key(spec.Name, f.Name)]; !ok {
			return newConfigError("", spec.Name, "function "+f.Name+" has no implementation", nil)
		}
	}
	return nil
}

// ancestorChain follows `extends` by name. Every link must name a class
// known to the catalog and the chain must terminate.
func ancestorChain(spec *ClassSpec, first map[string]*ClassSpec) ([]string, error) {
	var chain []string
	visited := map[string]bool{spec.Name: true}
	for next := spec.Extends; next != ""; {
		parent, ok := first[next]
		if !ok {
			return nil, newConfigError("", spec.Name, fmt.Sprintf("extends unknown class %q", next), nil)
		}
		if visited[next] {
			return nil, newConfigError("", spec.Name, fmt.Sprintf("inheritance cycle through %q", next), nil)
		}
		visited[next] = true
		chain = append(chain, next)
		next = parent.Extends
	}
	return chain, nil
}
