// internal/browser/jsbind/url.go
package jsbind

import (
	"bytes"
	"html"
	"net/url"
	"strings"

	"github.com/dop251/goja"

	"github.com/xkilldash9x/domscript/internal/browser/dom"
	"github.com/xkilldash9x/domscript/internal/browser/jsconfig"
)

// specialSchemes have an authority and a non-empty path.
var specialSchemes = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
	"file":  "",
}

type urlHost struct {
	u *url.URL
}

func parseScriptURL(raw, base string, hasBase bool) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if hasBase {
		b, err := url.Parse(strings.TrimSpace(base))
		if err != nil || b.Scheme == "" {
			return nil, errInvalidURL
		}
		u, err := b.Parse(raw)
		if err != nil {
			return nil, errInvalidURL
		}
		return normalizeURL(u), nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return nil, errInvalidURL
	}
	return normalizeURL(u), nil
}

func normalizeURL(u *url.URL) *url.URL {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if port, ok := specialSchemes[u.Scheme]; ok {
		if port != "" && u.Port() == port {
			u.Host = u.Hostname()
		}
		if u.Path == "" {
			u.Path = "/"
		}
	}
	return u
}

func (h *urlHost) origin() string {
	if _, ok := specialSchemes[h.u.Scheme]; !ok || h.u.Scheme == "file" {
		return "null"
	}
	return h.u.Scheme + "://" + h.u.Host
}

func (h *urlHost) search() string {
	if h.u.RawQuery == "" {
		return ""
	}
	return "?" + h.u.RawQuery
}

func (h *urlHost) hash() string {
	if h.u.Fragment == "" {
		return ""
	}
	return "#" + h.u.EscapedFragment()
}

func registerURL(b *jsconfig.Bindings) {
	construct := func(class string) func(r *Realm, args []goja.Value) *goja.Object {
		return func(r *Realm, args []goja.Value) *goja.Object {
			if len(args) == 0 {
				r.throwTypeError("Failed to construct '%s': 1 argument required, but only 0 present.", class)
			}
			base := argument(args, 1)
			u, err := parseScriptURL(args[0].String(), stringArg(base, ""), !goja.IsUndefined(base))
			if err != nil {
				r.throwTypeError("Failed to construct '%s': Invalid URL", class)
			}
			obj := r.vm.CreateObject(nil)
			r.register(obj, &urlHost{u: u}, nil)
			return obj
		}
	}

	c := classBindings{b: b, class: "URL"}
	c.constructor(construct("URL"))
	classBindings{b: b, class: "webkitURL"}.constructor(construct("URL"))

	part := func(name string, get func(h *urlHost) string) {
		c.getter(name, func(r *Realm, this goja.Value) goja.Value {
			return r.vm.ToValue(get(nativeOf[*urlHost](r, this)))
		})
	}
	part("href", func(h *urlHost) string { return h.u.String() })
	part("origin", (*urlHost).origin)
	part("protocol", func(h *urlHost) string { return h.u.Scheme + ":" })
	part("host", func(h *urlHost) string { return h.u.Host })
	part("hostname", func(h *urlHost) string { return h.u.Hostname() })
	part("port", func(h *urlHost) string { return h.u.Port() })
	part("pathname", func(h *urlHost) string {
		if h.u.Opaque != "" {
			return h.u.Opaque
		}
		return h.u.EscapedPath()
	})
	part("search", (*urlHost).search)
	part("hash", (*urlHost).hash)

	href := func(r *Realm, call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(nativeOf[*urlHost](r, call.This).u.String())
	}
	c.method("toString", href)
	c.method("toJSON", href)
}

type domParser struct{}

// parserErrorNamespace marks the error document DOMParser returns for
// malformed XML.
const parserErrorNamespace = "http://www.mozilla.org/newlayout/xml/parsererror.xml"

func registerDOMParser(b *jsconfig.Bindings) {
	c := classBindings{b: b, class: "DOMParser"}
	c.constructor(func(r *Realm, _ []goja.Value) *goja.Object {
		obj := r.vm.CreateObject(nil)
		r.register(obj, &domParser{}, nil)
		return obj
	})
	c.method("parseFromString", func(r *Realm, call goja.FunctionCall) goja.Value {
		nativeOf[*domParser](r, call.This)
		markup := call.Argument(0).String()
		mimeType := call.Argument(1).String()
		doc := r.parseDocument(markup, mimeType)
		return r.project(doc.Node())
	})
}

func (r *Realm) parseDocument(markup, mimeType string) *dom.Document {
	opts := []dom.DocumentOption{dom.WithURL(r.window.document.URL()), dom.WithCharset("UTF-8"), dom.WithContentType(mimeType)}
	switch mimeType {
	case "text/html":
		doc, err := dom.ParseHTML(strings.NewReader(markup), opts...)
		if err != nil {
			r.throw(err)
		}
		return doc
	case "text/xml", "application/xml", "application/xhtml+xml", "image/svg+xml":
		doc, err := dom.ParseXML(strings.NewReader(markup), opts...)
		if err == nil {
			return doc
		}
		var buf bytes.Buffer
		buf.WriteString(`<parsererror xmlns="` + parserErrorNamespace + `">`)
		buf.WriteString(html.EscapeString(err.Error()))
		buf.WriteString(`</parsererror>`)
		doc, err = dom.ParseXML(&buf, opts...)
		if err != nil {
			r.throw(err)
		}
		return doc
	}
	r.throwTypeError("Failed to execute 'parseFromString': The provided value '%s' is not a valid enum value of type SupportedType.", mimeType)
	return nil
}
