// internal/browser/jsbind/node.go
package jsbind

import (
	"unicode/utf16"

	"github.com/dop251/goja"

	"github.com/xkilldash9x/domscript/internal/browser/dom"
	"github.com/xkilldash9x/domscript/internal/browser/jsconfig"
)

func registerNode(b *jsconfig.Bindings) {
	c := classBindings{b: b, class: "Node"}

	c.getter("nodeType", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(int(r.nodeOf(this).Kind()))
	})
	c.getter("nodeName", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.nodeOf(this).NodeName())
	})
	c.accessor("nodeValue",
		func(r *Realm, this goja.Value) goja.Value {
			return r.nullableString(r.nodeOf(this).NodeValue())
		},
		func(r *Realm, this, v goja.Value) {
			n := r.nodeOf(this)
			if isNullish(v) {
				v = r.vm.ToValue("")
			}
			n.SetNodeValue(v.String())
		})
	c.getter("parentNode", func(r *Realm, this goja.Value) goja.Value {
		return r.project(r.nodeOf(this).Parent())
	})
	c.getter("parentElement", func(r *Realm, this goja.Value) goja.Value {
		return r.project(r.nodeOf(this).ParentElement())
	})
	c.getter("childNodes", func(r *Realm, this goja.Value) goja.Value {
		return r.projectAll(r.nodeOf(this).ChildNodes())
	})
	c.getter("firstChild", func(r *Realm, this goja.Value) goja.Value {
		return r.project(r.nodeOf(this).FirstChild())
	})
	c.getter("lastChild", func(r *Realm, this goja.Value) goja.Value {
		return r.project(r.nodeOf(this).LastChild())
	})
	c.getter("previousSibling", func(r *Realm, this goja.Value) goja.Value {
		return r.project(r.nodeOf(this).PrevSibling())
	})
	c.getter("nextSibling", func(r *Realm, this goja.Value) goja.Value {
		return r.project(r.nodeOf(this).NextSibling())
	})
	c.getter("ownerDocument", func(r *Realm, this goja.Value) goja.Value {
		n := r.nodeOf(this)
		if n.Kind() == dom.DocumentKind {
			return goja.Null()
		}
		return r.project(n.Document().Node())
	})
	c.accessor("textContent",
		func(r *Realm, this goja.Value) goja.Value {
			return r.nullableString(r.nodeOf(this).TextContent())
		},
		func(r *Realm, this, v goja.Value) {
			n := r.nodeOf(this)
			if isNullish(v) {
				v = r.vm.ToValue("")
			}
			n.SetTextContent(v.String())
		})

	c.method("appendChild", func(r *Realm, call goja.FunctionCall) goja.Value {
		n := r.nodeOf(call.This)
		child := r.nodeArg(call.Argument(0), "appendChild")
		if _, err := n.AppendChild(child); err != nil {
			r.throw(err)
		}
		return call.Argument(0)
	})
	c.method("insertBefore", func(r *Realm, call goja.FunctionCall) goja.Value {
		n := r.nodeOf(call.This)
		child := r.nodeArg(call.Argument(0), "insertBefore")
		ref := r.optionalNodeArg(call.Argument(1), "insertBefore")
		if _, err := n.InsertBefore(child, ref); err != nil {
			r.throw(err)
		}
		return call.Argument(0)
	})
	c.method("removeChild", func(r *Realm, call goja.FunctionCall) goja.Value {
		n := r.nodeOf(call.This)
		child := r.nodeArg(call.Argument(0), "removeChild")
		if _, err := n.RemoveChild(child); err != nil {
			r.throw(err)
		}
		return call.Argument(0)
	})
	c.method("replaceChild", func(r *Realm, call goja.FunctionCall) goja.Value {
		n := r.nodeOf(call.This)
		child := r.nodeArg(call.Argument(0), "replaceChild")
		old := r.nodeArg(call.Argument(1), "replaceChild")
		if _, err := n.ReplaceChild(child, old); err != nil {
			r.throw(err)
		}
		return call.Argument(1)
	})
	c.method("cloneNode", func(r *Realm, call goja.FunctionCall) goja.Value {
		n := r.nodeOf(call.This)
		return r.project(n.Clone(call.Argument(0).ToBoolean()))
	})
	c.method("hasChildNodes", func(r *Realm, call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(r.nodeOf(call.This).HasChildNodes())
	})
	c.method("contains", func(r *Realm, call goja.FunctionCall) goja.Value {
		n := r.nodeOf(call.This)
		other := r.optionalNodeArg(call.Argument(0), "contains")
		return r.vm.ToValue(other != nil && n.Contains(other))
	})
}

// utf16Len is the length of s as a script string.
func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func registerCharacterData(b *jsconfig.Bindings) {
	c := classBindings{b: b, class: "CharacterData"}
	c.accessor("data",
		func(r *Realm, this goja.Value) goja.Value {
			return r.vm.ToValue(r.nodeOf(this).Data())
		},
		func(r *Realm, this, v goja.Value) {
			r.nodeOf(this).SetNodeValue(stringArg(v, ""))
		})
	c.getter("length", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(utf16Len(r.nodeOf(this).Data()))
	})
	c.method("appendData", func(r *Realm, call goja.FunctionCall) goja.Value {
		n := r.nodeOf(call.This)
		n.SetNodeValue(n.Data() + call.Argument(0).String())
		return goja.Undefined()
	})

	classBindings{b: b, class: "Text"}.constructor(func(r *Realm, args []goja.Value) *goja.Object {
		n := r.window.document.CreateTextNode(stringArg(argument(args, 0), ""))
		return r.window.binder.ProjectionFor(n).obj
	})
	classBindings{b: b, class: "Comment"}.constructor(func(r *Realm, args []goja.Value) *goja.Object {
		n := r.window.document.CreateComment(stringArg(argument(args, 0), ""))
		return r.window.binder.ProjectionFor(n).obj
	})

	doctype := classBindings{b: b, class: "DocumentType"}
	doctype.getter("name", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.nodeOf(this).NodeName())
	})
	doctype.getter("publicId", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.nodeOf(this).PublicID())
	})
	doctype.getter("systemId", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.nodeOf(this).SystemID())
	})

	fragment := classBindings{b: b, class: "DocumentFragment"}
	fragment.constructor(func(r *Realm, _ []goja.Value) *goja.Object {
		return r.window.binder.ProjectionFor(r.window.document.CreateDocumentFragment()).obj
	})
	fragment.method("querySelector", querySelector)
	fragment.method("querySelectorAll", querySelectorAll)

	attr := classBindings{b: b, class: "Attr"}
	attr.getter("name", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.nodeOf(this).AttrName())
	})
	attr.accessor("value",
		func(r *Realm, this goja.Value) goja.Value {
			return r.vm.ToValue(r.nodeOf(this).AttrValue())
		},
		func(r *Realm, this, v goja.Value) {
			r.nodeOf(this).SetAttrValue(stringArg(v, ""))
		})
	attr.getter("ownerElement", func(r *Realm, this goja.Value) goja.Value {
		return r.project(r.nodeOf(this).OwnerElement())
	})
	attr.getter("specified", func(r *Realm, this goja.Value) goja.Value {
		r.nodeOf(this)
		return r.vm.ToValue(true)
	})
}

func querySelector(r *Realm, call goja.FunctionCall) goja.Value {
	n := r.nodeOf(call.This)
	match, err := n.QuerySelector(call.Argument(0).String())
	if err != nil {
		r.throw(err)
	}
	return r.project(match)
}

func querySelectorAll(r *Realm, call goja.FunctionCall) goja.Value {
	n := r.nodeOf(call.This)
	matches, err := n.QuerySelectorAll(call.Argument(0).String())
	if err != nil {
		r.throw(err)
	}
	return r.projectAll(matches)
}
