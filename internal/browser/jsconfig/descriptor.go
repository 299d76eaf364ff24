package jsconfig

import "github.com/dop251/goja"

// Host is the realm a member implementation runs against. Implementations
// type-assert it to the concrete realm they were registered by.
type Host interface {
	Runtime() *goja.Runtime
}

// Getter reads a property from this.
type Getter func(h Host, this goja.Value) goja.Value

// Setter writes a property on this.
type Setter func(h Host, this goja.Value, value goja.Value)

// Method implements a function member.
type Method func(h Host, call goja.FunctionCall) goja.Value

// Constructor creates a new host object. The returned object may leave its
// prototype and scope unassigned; the caller fills them in.
type Constructor func(h Host, args []goja.Value) *goja.Object

// Bindings maps "Class.member" keys to Go implementations. Constructors are
// keyed "Class.constructor".
type Bindings struct {
	Getters      map[string]Getter
	Setters      map[string]Setter
	Methods      map[string]Method
	Constructors map[string]Constructor
}

// NewBindings returns an empty table.
func NewBindings() *Bindings {
	return &Bindings{
		Getters:      make(map[string]Getter),
		Setters:      make(map[string]Setter),
		Methods:      make(map[string]Method),
		Constructors: make(map[string]Constructor),
	}
}

// Key builds the binding key for a class member.
func Key(class, member string) string { return class + "." + member }

// ClassDescriptor is the per-profile view of one class: only the members
// available under the profile, with implementations resolved.
type ClassDescriptor struct {
	Name        string
	Host        string
	Parent      string
	Ancestors   []string
	DOMTypes    []string
	Alias       bool
	ErrorBase   bool
	Constructor Constructor
	Constants   []Constant
	Properties  []Property
	Functions   []Function
}

// Constant is a permanent, read-only member.
type Constant struct {
	Name     string
	Value    any
	ReadOnly bool
}

// Property is an accessor member. Setter is nil for read-only properties.
type Property struct {
	Name   string
	Getter Getter
	Setter Setter
}

// Function is a method member.
type Function struct {
	Name string
	Call Method
}

// Constant looks up a configured constant by exact name.
func (d *ClassDescriptor) Constant(name string) (Constant, bool) {
	for _, c := range d.Constants {
		if c.Name == name {
			return c, true
		}
	}
	return Constant{}, false
}

// MemberNames lists constants, properties and functions in declaration order.
func (d *ClassDescriptor) MemberNames() []string {
	names := make([]string, 0, len(d.Constants)+len(d.Properties)+len(d.Functions))
	for _, c := range d.Constants {
		names = append(names, c.Name)
	}
	for _, p := range d.Properties {
		names = append(names, p.Name)
	}
	for _, f := range d.Functions {
		names = append(names, f.Name)
	}
	return names
}
