// browser/jsconfig/catalog.go
package jsconfig

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-yaml"
)

//go:embed classes.yaml
var defaultCatalogYAML []byte

// Catalog is the declarative class metadata, usually loaded from YAML.
// Class names may repeat when variants are guarded by disjoint `when`
// expressions; at most one variant may be available under a profile.
type Catalog struct {
	Classes []ClassSpec `yaml:"classes"`
}

// ClassSpec describes one script-visible class before profile evaluation.
type ClassSpec struct {
	Name        string         `yaml:"name"`
	Host        string         `yaml:"host"`
	Extends     string         `yaml:"extends"`
	Parents     []ParentRule   `yaml:"parents"`
	DOM         []string       `yaml:"dom"`
	When        string         `yaml:"when"`
	Alias       bool           `yaml:"alias"`
	Constructor bool           `yaml:"constructor"`
	ErrorBase   bool           `yaml:"error_base"`
	Constants   []ConstantSpec `yaml:"constants"`
	Properties  []PropertySpec `yaml:"properties"`
	Functions   []FunctionSpec `yaml:"functions"`
}

// ParentRule overrides the parent of a class for profiles matching When.
// An empty Name removes the parent.
type ParentRule struct {
	When string `yaml:"when"`
	Name string `yaml:"name"`
}

// ConstantSpec is a read-only, permanent member.
type ConstantSpec struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
	When  string `yaml:"when"`
}

// PropertySpec is an accessor member.
type PropertySpec struct {
	Name     string `yaml:"name"`
	Writable bool   `yaml:"writable"`
	When     string `yaml:"when"`
}

// FunctionSpec is a method member.
type FunctionSpec struct {
	Name string `yaml:"name"`
	When string `yaml:"when"`
}

// HostType returns the native host type name of the class.
func (c *ClassSpec) HostType() string {
	if c.Host != "" {
		return c.Host
	}
	return c.Name
}

var (
	defaultCatalog     *Catalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the embedded catalog. It is parsed once.
func DefaultCatalog() (*Catalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = ParseCatalog(defaultCatalogYAML)
	})
	return defaultCatalog, defaultCatalogErr
}

// ParseCatalog decodes YAML class metadata.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse class catalog: %w", err)
	}
	for i := range c.Classes {
		cls := &c.Classes[i]
		if cls.Name == "" {
			return nil, fmt.Errorf("class catalog entry %d has no name", i)
		}
		for j := range cls.Constants {
			v, err := normalizeConstant(cls.Constants[j].Value)
			if err != nil {
				return nil, fmt.Errorf("constant %s.%s: %w", cls.Name, cls.Constants[j].Name, err)
			}
			cls.Constants[j].Value = v
		}
	}
	return &c, nil
}

// LoadCatalog reads a catalog file from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// normalizeConstant narrows YAML scalars to the value kinds goja handles
// predictably: int64, float64, string and bool.
func normalizeConstant(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64, string, bool:
		return n, nil
	case nil:
		return nil, fmt.Errorf("missing value")
	default:
		return nil, fmt.Errorf("unsupported constant type %T", v)
	}
}
