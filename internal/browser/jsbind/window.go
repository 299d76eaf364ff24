// internal/browser/jsbind/window.go
package jsbind

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domscript/api/schemas"
	"github.com/xkilldash9x/domscript/internal/browser/dom"
	"github.com/xkilldash9x/domscript/internal/browser/jsconfig"
	"github.com/xkilldash9x/domscript/internal/browser/profile"
	"github.com/xkilldash9x/domscript/internal/browser/xhr"
)

// Window connects a goja runtime to a document under one browser profile.
// It is the global object of the runtime and the outermost scope of every
// host object it creates.
type Window struct {
	realm    *Realm
	binder   *Binder
	document *dom.Document
	logger   *zap.Logger

	ctx        context.Context
	transport  xhr.Transport
	scheduler  xhr.Scheduler
	controller xhr.Controller

	navigator *goja.Object
	name      string
	confirm   bool

	mu          sync.Mutex
	consoleLogs []schemas.ConsoleLog
}

// Option configures a Window.
type Option func(*Window)

// WithTransport sets the transport used by XMLHttpRequest.
func WithTransport(t xhr.Transport) Option { return func(w *Window) { w.transport = t } }

// WithScheduler sets where background request results are delivered.
func WithScheduler(s xhr.Scheduler) Option { return func(w *Window) { w.scheduler = s } }

// WithController lets the embedder force synchronous request dispatch.
func WithController(c xhr.Controller) Option { return func(w *Window) { w.controller = c } }

// WithContext sets the context request exchanges run under.
func WithContext(ctx context.Context) Option { return func(w *Window) { w.ctx = ctx } }

// WithConfirmResult sets the answer window.confirm returns.
func WithConfirmResult(ok bool) Option { return func(w *Window) { w.confirm = ok } }

// NewWindow materializes the profile's classes into vm and installs the
// window as its global object. The profile is fixed for the window's
// lifetime. Configuration errors are returned unchanged.
func NewWindow(vm *goja.Runtime, reg *jsconfig.Registry, p *profile.Profile, doc *dom.Document, logger *zap.Logger, opts ...Option) (*Window, error) {
	if vm == nil {
		return nil, fmt.Errorf("goja runtime cannot be nil")
	}
	if doc == nil {
		return nil, fmt.Errorf("document cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	graph, err := GraphFor(reg, p)
	if err != nil {
		return nil, err
	}

	w := &Window{
		document: doc,
		logger:   logger.Named("jsbind"),
		ctx:      context.Background(),
		confirm:  true,
	}
	for _, opt := range opts {
		opt(w)
	}

	w.realm = newRealm(vm, graph, p, w.logger)
	w.realm.window = w
	w.binder = newBinder(w.realm)

	if err := w.realm.materialize(); err != nil {
		return nil, fmt.Errorf("failed to materialize %s classes: %w", p.Key(), err)
	}
	global := w.realm.register(vm.GlobalObject(), w, nil)
	global.class, _ = graph.Lookup("Window")
	w.navigator, _ = w.realm.newHost("Navigator", p)
	w.initConsole()

	w.logger.Debug("Window initialized.",
		zap.String("profile", p.Key()),
		zap.Int("classes", len(graph.order)),
		zap.String("url", doc.URL()))
	return w, nil
}

// ParentScope implements Scope. The window is the outermost scope.
func (w *Window) ParentScope() Scope { return nil }

// Runtime returns the goja runtime.
func (w *Window) Runtime() *goja.Runtime { return w.realm.vm }

// Realm returns the materialized class set.
func (w *Window) Realm() *Realm { return w.realm }

// Profile returns the window's browser profile.
func (w *Window) Profile() *profile.Profile { return w.realm.profile }

// Document returns the window's document.
func (w *Window) Document() *dom.Document { return w.document }

// Global returns the global object.
func (w *Window) Global() *goja.Object { return w.realm.vm.GlobalObject() }

// Binder returns the node binder of the window's realm.
func (w *Window) Binder() *Binder { return w.binder }

// ProjectionFor returns the script object of node under the window's profile.
func (w *Window) ProjectionFor(node *dom.Node) *Projection {
	return w.binder.ProjectionFor(node)
}

// ConsoleLogs drains the entries written through console since the last call.
func (w *Window) ConsoleLogs() []schemas.ConsoleLog {
	w.mu.Lock()
	defer w.mu.Unlock()
	logs := w.consoleLogs
	w.consoleLogs = nil
	return logs
}

// baseURL is the document address requests resolve against.
func (w *Window) baseURL() *url.URL {
	u, err := url.Parse(w.document.URL())
	if err != nil || u.Scheme == "" || u.Scheme == "about" {
		return nil
	}
	return u
}

func registerWindow(b *jsconfig.Bindings) {
	c := classBindings{b: b, class: "Window"}
	c.getter("window", func(r *Realm, _ goja.Value) goja.Value { return r.vm.GlobalObject() })
	c.getter("self", func(r *Realm, _ goja.Value) goja.Value { return r.vm.GlobalObject() })
	c.getter("document", func(r *Realm, this goja.Value) goja.Value {
		w := nativeOf[*Window](r, this)
		return r.project(w.document.Node())
	})
	c.getter("navigator", func(r *Realm, this goja.Value) goja.Value {
		return nativeOf[*Window](r, this).navigator
	})
	c.accessor("name",
		func(r *Realm, this goja.Value) goja.Value {
			return r.vm.ToValue(nativeOf[*Window](r, this).name)
		},
		func(r *Realm, this, v goja.Value) {
			nativeOf[*Window](r, this).name = v.String()
		})
	c.method("alert", func(r *Realm, call goja.FunctionCall) goja.Value {
		w := nativeOf[*Window](r, call.This)
		w.logger.Info("[JS Alert]", zap.String("message", call.Argument(0).String()))
		return goja.Undefined()
	})
	c.method("confirm", func(r *Realm, call goja.FunctionCall) goja.Value {
		w := nativeOf[*Window](r, call.This)
		w.logger.Info("[JS Confirm]", zap.String("message", call.Argument(0).String()))
		return r.vm.ToValue(w.confirm)
	})
}

func registerNavigator(b *jsconfig.Bindings) {
	c := classBindings{b: b, class: "Navigator"}
	c.getter("userAgent", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(nativeOf[*profile.Profile](r, this).UserAgent())
	})
	c.getter("platform", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(nativeOf[*profile.Profile](r, this).Platform())
	})
	c.getter("language", func(r *Realm, this goja.Value) goja.Value {
		return r.vm.ToValue(nativeOf[*profile.Profile](r, this).Language())
	})
	c.getter("appName", func(r *Realm, this goja.Value) goja.Value {
		nativeOf[*profile.Profile](r, this)
		return r.vm.ToValue("Netscape")
	})
	c.getter("vendor", func(r *Realm, this goja.Value) goja.Value {
		switch nativeOf[*profile.Profile](r, this).Vendor() {
		case profile.Chrome, profile.Edge:
			return r.vm.ToValue("Google Inc.")
		}
		return r.vm.ToValue("")
	})
}
