// browser/profile/profile.go
package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Vendor identifies the browser family a profile emulates.
type Vendor string

const (
	Chrome           Vendor = "chrome"
	Edge             Vendor = "edge"
	Firefox          Vendor = "firefox"
	InternetExplorer Vendor = "ie"
)

// Feature is a named behavioral switch carried by a profile. Class metadata
// and the bindings consult features instead of comparing vendors directly.
type Feature string

const (
	// ImageDoubleBinding exposes the Image constructor as a second global
	// binding over the HTMLImageElement prototype.
	ImageDoubleBinding Feature = "JS_IMAGE_DOUBLE_BINDING"
	// OptionDoubleBinding does the same for Option / HTMLOptionElement.
	OptionDoubleBinding Feature = "JS_OPTION_DOUBLE_BINDING"
	// WebkitURLAlias reports the legacy webkitURL constructor under the name URL.
	WebkitURLAlias Feature = "JS_WEBKIT_URL_ALIAS"
	// HideActiveXObjectName reports ActiveXObject as an absent name even though
	// the constructor still works.
	HideActiveXObjectName Feature = "JS_HIDE_ACTIVEX_NAME"
	// XHRLowercaseResponseHeaders lower-cases names in getAllResponseHeaders.
	XHRLowercaseResponseHeaders Feature = "XHR_LOWERCASE_RESPONSE_HEADERS"
	// XHRFireOpenedOnSend fires the opened readystatechange a second time on send.
	XHRFireOpenedOnSend Feature = "XHR_FIRE_OPENED_ON_SEND"
)

// Profile is an immutable vendor+version combination. It is used as the
// cache key for every piece of per-browser class and prototype metadata.
type Profile struct {
	key       string
	vendor    Vendor
	version   *semver.Version
	features  map[Feature]struct{}
	userAgent string
	platform  string
	language  string
}

// Option customizes a profile at construction time.
type Option func(*Profile)

// WithFeatures adds feature flags.
func WithFeatures(features ...Feature) Option {
	return func(p *Profile) {
		for _, f := range features {
			p.features[f] = struct{}{}
		}
	}
}

// WithUserAgent overrides the user agent string.
func WithUserAgent(ua string) Option {
	return func(p *Profile) { p.userAgent = ua }
}

// WithPlatform overrides navigator.platform.
func WithPlatform(platform string) Option {
	return func(p *Profile) { p.platform = platform }
}

// WithLanguage overrides navigator.language.
func WithLanguage(lang string) Option {
	return func(p *Profile) { p.language = lang }
}

// New builds a profile. The version must parse as a (possibly partial)
// semantic version such as "120" or "115.0.1".
func New(vendor Vendor, version string, opts ...Option) (*Profile, error) {
	if vendor == "" {
		return nil, fmt.Errorf("profile vendor cannot be empty")
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q for %s profile: %w", version, vendor, err)
	}
	p := &Profile{
		key:      fmt.Sprintf("%s-%d", vendor, v.Major()),
		vendor:   vendor,
		version:  v,
		features: make(map[Feature]struct{}),
		platform: "Win32",
		language: "en-US",
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.userAgent == "" {
		p.userAgent = defaultUserAgent(vendor, v)
	}
	return p, nil
}

// Key is the stable identifier of the profile, e.g. "chrome-120".
func (p *Profile) Key() string { return p.key }

// Vendor returns the browser family.
func (p *Profile) Vendor() Vendor { return p.vendor }

// Version returns the full semantic version.
func (p *Profile) Version() *semver.Version { return p.version }

// Major returns the major version number.
func (p *Profile) Major() int { return int(p.version.Major()) }

// UserAgent returns the navigator.userAgent value.
func (p *Profile) UserAgent() string { return p.userAgent }

// Platform returns the navigator.platform value.
func (p *Profile) Platform() string { return p.platform }

// Language returns the navigator.language value.
func (p *Profile) Language() string { return p.language }

// HasFeature reports whether the feature flag is set.
func (p *Profile) HasFeature(f Feature) bool {
	if p == nil {
		return false
	}
	_, ok := p.features[f]
	return ok
}

// Features returns the set flags in sorted order.
func (p *Profile) Features() []Feature {
	out := make([]Feature, 0, len(p.features))
	for f := range p.features {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Satisfies checks the profile version against a semver constraint such as ">= 115".
func (p *Profile) Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	return c.Check(p.version), nil
}

func (p *Profile) String() string { return p.key }

func defaultUserAgent(vendor Vendor, v *semver.Version) string {
	switch vendor {
	case Chrome:
		return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36", v.Major())
	case Edge:
		return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36 Edg/%d.0.0.0", v.Major(), v.Major())
	case Firefox:
		return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:%d.0) Gecko/20100101 Firefox/%d.0", v.Major(), v.Major())
	case InternetExplorer:
		return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; WOW64; Trident/7.0; rv:%d.0) like Gecko", v.Major())
	default:
		return "Mozilla/5.0 " + strings.ToUpper(string(vendor))
	}
}
