// internal/browser/jsbind/document.go
package jsbind

import (
	"github.com/dop251/goja"

	"github.com/xkilldash9x/domscript/internal/browser/dom"
	"github.com/xkilldash9x/domscript/internal/browser/jsconfig"
)

// documentOf returns the document whose root node is behind this.
func (r *Realm) documentOf(this goja.Value) *dom.Document {
	n := r.nodeOf(this)
	if n.Kind() != dom.DocumentKind {
		r.throwTypeError("%s", ErrIllegalInvocation)
	}
	return n.Document()
}

func registerDocument(b *jsconfig.Bindings) {
	c := classBindings{b: b, class: "Document"}

	c.getter("documentElement", func(r *Realm, this goja.Value) goja.Value {
		return r.project(r.documentOf(this).DocumentElement())
	})
	c.getter("body", func(r *Realm, this goja.Value) goja.Value {
		return r.project(r.documentOf(this).Body())
	})
	c.getter("head", func(r *Realm, this goja.Value) goja.Value {
		return r.project(r.documentOf(this).Head())
	})
	c.accessor("title",
		func(r *Realm, this goja.Value) goja.Value {
			return r.vm.ToValue(r.documentOf(this).Title())
		},
		func(r *Realm, this, v goja.Value) {
			r.documentOf(this).SetTitle(stringArg(v, ""))
		})
	charset := func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.documentOf(this).Charset())
	}
	c.getter("characterSet", charset)
	c.getter("charset", charset)
	c.getter("contentType", func(r *Realm, this goja.Value) goja.Value {
		d := r.documentOf(this)
		if ct := d.ContentType(); ct != "" {
			return r.vm.ToValue(ct)
		}
		if d.IsXML() {
			return r.vm.ToValue("application/xml")
		}
		return r.vm.ToValue("text/html")
	})
	c.getter("URL", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.documentOf(this).URL())
	})
	c.getter("readyState", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.documentOf(this).ReadyState())
	})

	c.method("createElement", func(r *Realm, call goja.FunctionCall) goja.Value {
		n, err := r.documentOf(call.This).CreateElement(call.Argument(0).String())
		if err != nil {
			r.throw(err)
		}
		return r.project(n)
	})
	c.method("createTextNode", func(r *Realm, call goja.FunctionCall) goja.Value {
		return r.project(r.documentOf(call.This).CreateTextNode(call.Argument(0).String()))
	})
	c.method("createComment", func(r *Realm, call goja.FunctionCall) goja.Value {
		return r.project(r.documentOf(call.This).CreateComment(call.Argument(0).String()))
	})
	c.method("createCDATASection", func(r *Realm, call goja.FunctionCall) goja.Value {
		d := r.documentOf(call.This)
		if !d.IsXML() {
			r.throwDOM("NotSupportedError", "This operation is not supported for HTML documents.")
		}
		return r.project(d.CreateCDATASection(call.Argument(0).String()))
	})
	c.method("createDocumentFragment", func(r *Realm, call goja.FunctionCall) goja.Value {
		return r.project(r.documentOf(call.This).CreateDocumentFragment())
	})
	c.method("createAttribute", func(r *Realm, call goja.FunctionCall) goja.Value {
		d := r.documentOf(call.This)
		name := call.Argument(0).String()
		if !validAttrName(name) {
			r.throwDOM("InvalidCharacterError", "'"+name+"' is not a valid attribute name.")
		}
		return r.project(d.CreateAttribute(name))
	})
	c.method("getElementById", func(r *Realm, call goja.FunctionCall) goja.Value {
		return r.project(r.documentOf(call.This).ElementByID(call.Argument(0).String()))
	})
	c.method("getElementsByTagName", func(r *Realm, call goja.FunctionCall) goja.Value {
		d := r.documentOf(call.This)
		return r.projectAll(d.ElementsByTagName(d.Node(), call.Argument(0).String()))
	})
	c.method("getElementsByClassName", func(r *Realm, call goja.FunctionCall) goja.Value {
		d := r.documentOf(call.This)
		return r.projectAll(d.ElementsByClassName(d.Node(), call.Argument(0).String()))
	})
	c.method("querySelector", querySelector)
	c.method("querySelectorAll", querySelectorAll)
}
