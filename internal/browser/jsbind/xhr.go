// internal/browser/jsbind/xhr.go
package jsbind

import (
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domscript/internal/browser/jsconfig"
	"github.com/xkilldash9x/domscript/internal/browser/xhr"
)

// xhrHost is the native value behind an XMLHttpRequest object.
type xhrHost struct {
	req      *xhr.Request
	handlers map[string]goja.Value
}

func (h *xhrHost) eventHandler(typ string) goja.Value {
	v, ok := h.handlers[typ]
	if !ok {
		return nil
	}
	if _, isFunc := goja.AssertFunction(v); !isFunc {
		return nil
	}
	return v
}

// newXHR creates a request object bound to the window's transport. proto
// may be nil, leaving the prototype to the constructor.
func (r *Realm) newXHR(proto *goja.Object) (*goja.Object, *Projection) {
	w := r.window
	req := xhr.New(xhr.Config{
		Transport: w.transport,
		Scheduler: w.scheduler,
		BaseURL:   w.baseURL(),
		Profile:   r.Profile(),
	}, w.logger)
	host := &xhrHost{req: req, handlers: make(map[string]goja.Value)}

	obj := r.vm.CreateObject(proto)
	p := r.register(obj, host, nil)
	req.AddListener(func(ev xhr.Event) {
		r.fireXHR(p, string(ev.Type))
	})
	return obj, p
}

// fireXHR dispatches a plain event at a request object. on<type> handlers
// run before listeners.
func (r *Realm) fireXHR(p *Projection, typ string) {
	ev := newEvent(typ, false, false)
	r.dispatch(p, ev, r.newEventObject(ev))
}

func (r *Realm) xhrOf(this goja.Value) *xhrHost {
	return nativeOf[*xhrHost](r, this)
}

// handlerProperty binds an on<event> attribute.
func (c classBindings) handlerProperty(prop string) {
	typ := strings.TrimPrefix(prop, "on")
	c.accessor(prop,
		func(r *Realm, this goja.Value) goja.Value {
			if v, ok := r.xhrOf(this).handlers[typ]; ok {
				return v
			}
			return goja.Null()
		},
		func(r *Realm, this, v goja.Value) {
			h := r.xhrOf(this)
			if _, isFunc := goja.AssertFunction(v); !isFunc {
				delete(h.handlers, typ)
				return
			}
			h.handlers[typ] = v
		})
}

func registerXHR(b *jsconfig.Bindings) {
	target := classBindings{b: b, class: "XMLHttpRequestEventTarget"}
	for _, prop := range []string{"onload", "onerror", "onabort", "onloadend", "onloadstart"} {
		target.handlerProperty(prop)
	}

	c := classBindings{b: b, class: "XMLHttpRequest"}
	c.constructor(func(r *Realm, _ []goja.Value) *goja.Object {
		obj, _ := r.newXHR(nil)
		return obj
	})
	for _, prop := range []string{"onreadystatechange", "onload", "onerror"} {
		c.handlerProperty(prop)
	}

	c.getter("readyState", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(int(r.xhrOf(this).req.ReadyState()))
	})
	c.getter("status", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.xhrOf(this).req.Status())
	})
	c.getter("statusText", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.xhrOf(this).req.StatusText())
	})
	c.getter("responseText", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.xhrOf(this).req.ResponseText())
	})
	c.getter("responseXML", func(r *Realm, this goja.Value) goja.Value {
		doc := r.xhrOf(this).req.ResponseXML()
		if doc == nil {
			return goja.Null()
		}
		return r.project(doc.Node())
	})
	c.getter("responseURL", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(r.xhrOf(this).req.ResponseURL())
	})
	c.accessor("withCredentials",
		func(r *Realm, this goja.Value) goja.Value {
			return r.vm.ToValue(r.xhrOf(this).req.WithCredentials())
		},
		func(r *Realm, this, v goja.Value) {
			if err := r.xhrOf(this).req.SetWithCredentials(v.ToBoolean()); err != nil {
				r.throw(err)
			}
		})

	c.method("open", func(r *Realm, call goja.FunctionCall) goja.Value {
		h := r.xhrOf(call.This)
		if len(call.Arguments) < 2 {
			r.throwTypeError("Failed to execute 'open': 2 arguments required, but only %d present.", len(call.Arguments))
		}
		async := true
		if v := call.Argument(2); !goja.IsUndefined(v) {
			async = v.ToBoolean()
		}
		user, password := call.Argument(3), call.Argument(4)
		var u, pw string
		if !isNullish(user) {
			u = user.String()
		}
		if !isNullish(password) {
			pw = password.String()
		}
		if err := h.req.Open(call.Argument(0).String(), call.Argument(1).String(), async, u, pw); err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	})
	c.method("send", func(r *Realm, call goja.FunctionCall) goja.Value {
		h := r.xhrOf(call.This)
		w := r.window
		var body []byte
		if v := call.Argument(0); !isNullish(v) {
			body = []byte(r.requestBody(v))
		}
		mode := xhr.ModeFor(h.req.Async(), w.controller)
		if _, err := h.req.Send(w.ctx, body, mode); err != nil {
			w.logger.Debug("XMLHttpRequest send failed.", zap.String("request_id", h.req.ID()), zap.Error(err))
			r.throw(err)
		}
		return goja.Undefined()
	})
	c.method("abort", func(r *Realm, call goja.FunctionCall) goja.Value {
		r.xhrOf(call.This).req.Abort()
		return goja.Undefined()
	})
	c.method("setRequestHeader", func(r *Realm, call goja.FunctionCall) goja.Value {
		h := r.xhrOf(call.This)
		if err := h.req.SetRequestHeader(call.Argument(0).String(), call.Argument(1).String()); err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	})
	c.method("getAllResponseHeaders", func(r *Realm, call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(r.xhrOf(call.This).req.GetAllResponseHeaders())
	})
	c.method("getResponseHeader", func(r *Realm, call goja.FunctionCall) goja.Value {
		return r.nullableString(r.xhrOf(call.This).req.GetResponseHeader(call.Argument(0).String()))
	})
	c.method("overrideMimeType", func(r *Realm, call goja.FunctionCall) goja.Value {
		if err := r.xhrOf(call.This).req.OverrideMimeType(call.Argument(0).String()); err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	})

	classBindings{b: b, class: "ActiveXObject"}.constructor(func(r *Realm, args []goja.Value) *goja.Object {
		progID := stringArg(argument(args, 0), "")
		if !isXMLHTTPProgID(progID) {
			panic(r.vm.NewGoError(&activeXError{progID: progID}))
		}
		proto := r.prototypeOf("XMLHttpRequest")
		obj, p := r.newXHR(proto)
		p.class, _ = r.graph.Lookup("XMLHttpRequest")
		return obj
	})
}

// requestBody serializes a send() argument. Documents send their markup.
func (r *Realm) requestBody(v goja.Value) string {
	if p := r.hostOf(v); p != nil {
		if n := p.Node(); n != nil {
			if root := n.Document().DocumentElement(); root != nil && n == n.Document().Node() {
				return root.OuterHTML()
			}
		}
	}
	return v.String()
}

// isXMLHTTPProgID reports whether an ActiveX ProgID names an XML HTTP
// component, with or without a version suffix.
func isXMLHTTPProgID(progID string) bool {
	id := strings.ToLower(progID)
	for _, prefix := range []string{"microsoft.xmlhttp", "msxml2.xmlhttp", "msxml2.serverxmlhttp", "msxml3.xmlhttp"} {
		if id == prefix || strings.HasPrefix(id, prefix+".") {
			return true
		}
	}
	return false
}

type activeXError struct {
	progID string
}

func (e *activeXError) Error() string {
	return "Automation server can't create object for '" + e.progID + "'"
}
