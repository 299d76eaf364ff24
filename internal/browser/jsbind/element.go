// internal/browser/jsbind/element.go
package jsbind

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/xkilldash9x/domscript/internal/browser/dom"
	"github.com/xkilldash9x/domscript/internal/browser/jsconfig"
)

func registerElement(b *jsconfig.Bindings) {
	c := classBindings{b: b, class: "Element"}

	c.getter("tagName", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.nodeOf(this).TagName())
	})
	c.reflect("id", "id")
	c.reflect("className", "class")
	c.accessor("innerHTML",
		func(r *Realm, this goja.Value) goja.Value {
			return r.vm.ToValue(r.nodeOf(this).InnerHTML())
		},
		func(r *Realm, this, v goja.Value) {
			if err := r.nodeOf(this).SetInnerHTML(stringArg(v, "")); err != nil {
				r.throw(err)
			}
		})
	c.getter("outerHTML", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.nodeOf(this).OuterHTML())
	})
	c.getter("children", func(r *Realm, this goja.Value) goja.Value {
		return r.projectAll(r.nodeOf(this).Children())
	})
	c.getter("childElementCount", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(len(r.nodeOf(this).Children()))
	})

	c.method("getAttribute", func(r *Realm, call goja.FunctionCall) goja.Value {
		return r.nullableString(r.nodeOf(call.This).Attr(call.Argument(0).String()))
	})
	c.method("setAttribute", func(r *Realm, call goja.FunctionCall) goja.Value {
		n := r.nodeOf(call.This)
		name := call.Argument(0).String()
		if !validAttrName(name) {
			r.throwDOM("InvalidCharacterError", "'"+name+"' is not a valid attribute name.")
		}
		n.SetAttr(name, call.Argument(1).String())
		return goja.Undefined()
	})
	c.method("removeAttribute", func(r *Realm, call goja.FunctionCall) goja.Value {
		r.nodeOf(call.This).RemoveAttr(call.Argument(0).String())
		return goja.Undefined()
	})
	c.method("hasAttribute", func(r *Realm, call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(r.nodeOf(call.This).HasAttr(call.Argument(0).String()))
	})
	c.method("getAttributeNode", func(r *Realm, call goja.FunctionCall) goja.Value {
		return r.project(r.nodeOf(call.This).AttributeNode(call.Argument(0).String()))
	})
	c.method("querySelector", querySelector)
	c.method("querySelectorAll", querySelectorAll)
	c.method("getElementsByTagName", func(r *Realm, call goja.FunctionCall) goja.Value {
		n := r.nodeOf(call.This)
		return r.projectAll(n.Document().ElementsByTagName(n, call.Argument(0).String()))
	})
	c.method("getElementsByClassName", func(r *Realm, call goja.FunctionCall) goja.Value {
		n := r.nodeOf(call.This)
		return r.projectAll(n.Document().ElementsByClassName(n, call.Argument(0).String()))
	})
}

func validAttrName(name string) bool {
	return name != "" && !strings.ContainsAny(name, " \t\n\f\r/>=\"'<")
}

// reflect binds a string property to a content attribute.
func (c classBindings) reflect(prop, attr string) {
	c.reflectDefault(prop, attr, "")
}

// reflectDefault is reflect with a value for a missing attribute.
func (c classBindings) reflectDefault(prop, attr, def string) {
	c.accessor(prop,
		func(r *Realm, this goja.Value) goja.Value {
			if v, ok := r.nodeOf(this).Attr(attr); ok {
				return r.vm.ToValue(v)
			}
			return r.vm.ToValue(def)
		},
		func(r *Realm, this, v goja.Value) {
			r.nodeOf(this).SetAttr(attr, stringArg(v, "undefined"))
		})
}

// reflectEnum is reflect for keyword attributes, which read lower case and
// fall back to def.
func (c classBindings) reflectEnum(prop, attr, def string) {
	c.accessor(prop,
		func(r *Realm, this goja.Value) goja.Value {
			if v, ok := r.nodeOf(this).Attr(attr); ok && v != "" {
				return r.vm.ToValue(strings.ToLower(v))
			}
			return r.vm.ToValue(def)
		},
		func(r *Realm, this, v goja.Value) {
			r.nodeOf(this).SetAttr(attr, stringArg(v, "undefined"))
		})
}

// reflectURL is reflect for URL attributes, which read resolved against the
// document address.
func (c classBindings) reflectURL(prop, attr string) {
	c.accessor(prop,
		func(r *Realm, this goja.Value) goja.Value {
			n := r.nodeOf(this)
			v, ok := n.Attr(attr)
			if !ok {
				return r.vm.ToValue("")
			}
			return r.vm.ToValue(resolveAgainst(n.Document(), v))
		},
		func(r *Realm, this, v goja.Value) {
			r.nodeOf(this).SetAttr(attr, stringArg(v, "undefined"))
		})
}

// reflectText binds a property to the element's text content.
func (c classBindings) reflectText(prop string) {
	c.accessor(prop,
		func(r *Realm, this goja.Value) goja.Value {
			s, _ := r.nodeOf(this).TextContent()
			return r.vm.ToValue(s)
		},
		func(r *Realm, this, v goja.Value) {
			r.nodeOf(this).SetTextContent(stringArg(v, ""))
		})
}

func resolveAgainst(doc *dom.Document, ref string) string {
	ref = strings.TrimSpace(ref)
	base, err := url.Parse(doc.URL())
	if err != nil || base.Scheme == "" {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func registerHTMLElements(b *jsconfig.Bindings) {
	html := classBindings{b: b, class: "HTMLElement"}
	html.reflect("title", "title")
	html.accessor("hidden",
		func(r *Realm, this goja.Value) goja.Value {
			return r.vm.ToValue(r.nodeOf(this).HasAttr("hidden"))
		},
		func(r *Realm, this, v goja.Value) {
			n := r.nodeOf(this)
			if v.ToBoolean() {
				n.SetAttr("hidden", "")
			} else {
				n.RemoveAttr("hidden")
			}
		})
	html.reflectText("innerText")

	classBindings{b: b, class: "HTMLTitleElement"}.reflectText("text")
	classBindings{b: b, class: "HTMLDivElement"}.reflect("align", "align")
	classBindings{b: b, class: "HTMLParagraphElement"}.reflect("align", "align")

	anchor := classBindings{b: b, class: "HTMLAnchorElement"}
	anchor.reflectURL("href", "href")
	anchor.reflect("target", "target")

	img := classBindings{b: b, class: "HTMLImageElement"}
	img.reflectURL("src", "src")
	img.reflect("alt", "alt")
	classBindings{b: b, class: "Image"}.constructor(func(r *Realm, args []goja.Value) *goja.Object {
		n := r.createElement("img")
		for i, attr := range []string{"width", "height"} {
			if v := argument(args, i); !goja.IsUndefined(v) {
				n.SetAttr(attr, strconv.FormatInt(v.ToInteger(), 10))
			}
		}
		return r.window.binder.ProjectionFor(n).obj
	})

	input := classBindings{b: b, class: "HTMLInputElement"}
	input.reflect("value", "value")
	input.reflectEnum("type", "type", "text")
	input.reflect("name", "name")

	button := classBindings{b: b, class: "HTMLButtonElement"}
	button.reflectEnum("type", "type", "submit")
	button.reflect("name", "name")

	form := classBindings{b: b, class: "HTMLFormElement"}
	form.reflectURL("action", "action")
	form.reflectEnum("method", "method", "get")

	option := classBindings{b: b, class: "HTMLOptionElement"}
	option.accessor("value",
		func(r *Realm, this goja.Value) goja.Value {
			n := r.nodeOf(this)
			if v, ok := n.Attr("value"); ok {
				return r.vm.ToValue(v)
			}
			s, _ := n.TextContent()
			return r.vm.ToValue(strings.TrimSpace(s))
		},
		func(r *Realm, this, v goja.Value) {
			r.nodeOf(this).SetAttr("value", stringArg(v, "undefined"))
		})
	option.reflectText("text")
	classBindings{b: b, class: "Option"}.constructor(func(r *Realm, args []goja.Value) *goja.Object {
		n := r.createElement("option")
		if text := argument(args, 0); !goja.IsUndefined(text) {
			n.SetTextContent(text.String())
		}
		if value := argument(args, 1); !goja.IsUndefined(value) {
			n.SetAttr("value", value.String())
		}
		return r.window.binder.ProjectionFor(n).obj
	})

	script := classBindings{b: b, class: "HTMLScriptElement"}
	script.reflectURL("src", "src")
	script.reflect("type", "type")
	script.reflect("charset", "charset")
	script.reflectText("text")

	link := classBindings{b: b, class: "HTMLLinkElement"}
	link.reflectURL("href", "href")
	link.reflect("rel", "rel")
	link.reflect("charset", "charset")

	classBindings{b: b, class: "HTMLStyleElement"}.reflect("type", "type")
}

// createElement creates an element in the window's document. Tags passed
// here are known to be valid.
func (r *Realm) createElement(tag string) *dom.Node {
	n, err := r.window.document.CreateElement(tag)
	if err != nil {
		r.throw(err)
	}
	return n
}
