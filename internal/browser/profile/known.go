package profile

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownProfileError is returned by Lookup for keys that name no built-in profile.
type UnknownProfileError struct {
	Key string
}

func (e *UnknownProfileError) Error() string {
	return fmt.Sprintf("unknown browser profile %q (known: %s)", e.Key, strings.Join(Keys(), ", "))
}

var (
	Chrome120 = mustNew(Chrome, "120.0.6099",
		WithFeatures(ImageDoubleBinding, OptionDoubleBinding, WebkitURLAlias, XHRLowercaseResponseHeaders, XHRFireOpenedOnSend))
	Edge120 = mustNew(Edge, "120.0.2210",
		WithFeatures(ImageDoubleBinding, OptionDoubleBinding, WebkitURLAlias, XHRLowercaseResponseHeaders, XHRFireOpenedOnSend))
	Firefox115 = mustNew(Firefox, "115.6.0",
		WithFeatures(ImageDoubleBinding, OptionDoubleBinding, XHRLowercaseResponseHeaders, XHRFireOpenedOnSend))
	Firefox121 = mustNew(Firefox, "121.0.0",
		WithFeatures(ImageDoubleBinding, OptionDoubleBinding, XHRLowercaseResponseHeaders, XHRFireOpenedOnSend))
	IE11 = mustNew(InternetExplorer, "11.0.0",
		WithFeatures(HideActiveXObjectName, XHRFireOpenedOnSend))
)

var (
	builtins = map[string]*Profile{}
	aliases  = map[string]string{
		"chrome":      "chrome-120",
		"edge":        "edge-120",
		"firefox":     "firefox-121",
		"firefox-esr": "firefox-115",
		"ie":          "ie-11",
	}
)

func init() {
	for _, p := range []*Profile{Chrome120, Edge120, Firefox115, Firefox121, IE11} {
		builtins[p.Key()] = p
	}
}

func mustNew(vendor Vendor, version string, opts ...Option) *Profile {
	p, err := New(vendor, version, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Default is the profile used when configuration names none.
func Default() *Profile { return Chrome120 }

// Lookup resolves a profile key or vendor alias, case-insensitively.
// The same key always yields the same *Profile so per-profile caches hit.
func Lookup(key string) (*Profile, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return Default(), nil
	}
	if target, ok := aliases[k]; ok {
		k = target
	}
	if p, ok := builtins[k]; ok {
		return p, nil
	}
	return nil, &UnknownProfileError{Key: key}
}

// Keys lists the built-in profile keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(builtins))
	for k := range builtins {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns the built-in profiles ordered by key.
func All() []*Profile {
	out := make([]*Profile, 0, len(builtins))
	for _, k := range Keys() {
		out = append(out, builtins[k])
	}
	return out
}
