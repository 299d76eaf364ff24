// internal/browser/jsbind/events.go
package jsbind

import (
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domscript/internal/browser/jsconfig"
)

// Event phases, matching the Event constants.
const (
	phaseNone      = 0
	phaseCapturing = 1
	phaseAtTarget  = 2
	phaseBubbling  = 3
)

type listener struct {
	callback goja.Value
	capture  bool
	once     bool
}

// listenerSet holds the event listeners of one host object.
type listenerSet struct {
	byType map[string][]*listener
}

func (p *Projection) listeners() *listenerSet {
	if p.events == nil {
		p.events = &listenerSet{byType: make(map[string][]*listener)}
	}
	return p.events
}

func (s *listenerSet) add(typ string, l *listener) {
	for _, existing := range s.byType[typ] {
		if existing.capture == l.capture && existing.callback.SameAs(l.callback) {
			return
		}
	}
	s.byType[typ] = append(s.byType[typ], l)
}

func (s *listenerSet) remove(typ string, callback goja.Value, capture bool) {
	list := s.byType[typ]
	for i, l := range list {
		if l.capture == capture && l.callback.SameAs(callback) {
			s.byType[typ] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// handlerOwner is implemented by host values with on<event> attributes.
type handlerOwner interface {
	eventHandler(typ string) goja.Value
}

// event is the native value behind an Event object.
type event struct {
	typ        string
	bubbles    bool
	cancelable bool
	timeStamp  float64

	target        goja.Value
	currentTarget goja.Value
	phase         int

	canceled    bool
	stopped     bool
	stoppedNow  bool
	dispatching bool
}

func newEvent(typ string, bubbles, cancelable bool) *event {
	return &event{
		typ:           typ,
		bubbles:       bubbles,
		cancelable:    cancelable,
		timeStamp:     float64(time.Now().UnixNano()) / float64(time.Millisecond),
		target:        goja.Null(),
		currentTarget: goja.Null(),
	}
}

// newEventObject creates a script Event.
func (r *Realm) newEventObject(ev *event) *goja.Object {
	obj, _ := r.newHost("Event", ev)
	return obj
}

// dispatch runs capture, target and bubble phases over the target's node
// ancestry. It returns false when a listener cancelled the event.
func (r *Realm) dispatch(target *Projection, ev *event, evObj *goja.Object) bool {
	if ev.dispatching {
		r.throwDOM("InvalidStateError", "The event is already being dispatched.")
	}
	ev.dispatching = true
	ev.stopped, ev.stoppedNow = false, false
	ev.target = target.obj

	path := r.eventPath(target)
	ev.phase = phaseCapturing
	for i := len(path) - 1; i >= 0 && !ev.stopped; i-- {
		r.invokeListeners(path[i], ev, evObj)
	}
	if !ev.stopped {
		ev.phase = phaseAtTarget
		r.invokeListeners(target, ev, evObj)
	}
	if ev.bubbles {
		ev.phase = phaseBubbling
		for i := 0; i < len(path) && !ev.stopped; i++ {
			r.invokeListeners(path[i], ev, evObj)
		}
	}

	ev.phase = phaseNone
	ev.currentTarget = goja.Null()
	ev.dispatching = false
	return !ev.canceled
}

// eventPath lists the target's ancestors, innermost first, ending with the
// window when the node is attached to the window's document.
func (r *Realm) eventPath(target *Projection) []*Projection {
	n := target.Node()
	if n == nil {
		return nil
	}
	var path []*Projection
	top := n
	for p := n.Parent(); p != nil; p = p.Parent() {
		path = append(path, r.window.binder.ProjectionFor(p))
		top = p
	}
	if top != n && top == r.window.document.Node() {
		path = append(path, r.lookupHost(r.vm.GlobalObject()))
	}
	return path
}

func (r *Realm) invokeListeners(p *Projection, ev *event, evObj *goja.Object) {
	ev.currentTarget = p.obj

	if ev.phase == phaseAtTarget {
		if owner, ok := p.native.(handlerOwner); ok {
			if h := owner.eventHandler(ev.typ); h != nil {
				r.callListener(h, p.obj, evObj)
			}
		}
	}
	if p.events == nil {
		return
	}

	snapshot := append([]*listener(nil), p.events.byType[ev.typ]...)
	for _, l := range snapshot {
		if ev.stoppedNow {
			return
		}
		switch ev.phase {
		case phaseCapturing:
			if !l.capture {
				continue
			}
		case phaseBubbling:
			if l.capture {
				continue
			}
		}
		if l.once {
			p.events.remove(ev.typ, l.callback, l.capture)
		}
		r.callListener(l.callback, p.obj, evObj)
	}
}

// callListener invokes a function or an object's handleEvent. Exceptions
// are logged and do not stop dispatch.
func (r *Realm) callListener(callback goja.Value, this *goja.Object, evObj *goja.Object) {
	fn, ok := goja.AssertFunction(callback)
	receiver := goja.Value(this)
	if !ok {
		obj, isObj := callback.(*goja.Object)
		if !isObj {
			return
		}
		if fn, ok = goja.AssertFunction(obj.Get("handleEvent")); !ok {
			return
		}
		receiver = obj
	}
	if _, err := fn(receiver, evObj); err != nil {
		r.logger.Warn("Event listener threw.", zap.Error(err))
	}
}

func listenerOptions(v goja.Value) (capture, once bool) {
	if isNullish(v) {
		return false, false
	}
	if obj, ok := v.(*goja.Object); ok {
		if c := obj.Get("capture"); c != nil {
			capture = c.ToBoolean()
		}
		if o := obj.Get("once"); o != nil {
			once = o.ToBoolean()
		}
		return capture, once
	}
	return v.ToBoolean(), false
}

// eventTarget is the native value of objects created by new EventTarget().
type eventTarget struct{}

func registerEventTarget(b *jsconfig.Bindings) {
	c := classBindings{b: b, class: "EventTarget"}
	c.constructor(func(r *Realm, _ []goja.Value) *goja.Object {
		obj := r.vm.CreateObject(nil)
		r.register(obj, &eventTarget{}, nil)
		return obj
	})
	c.method("addEventListener", func(r *Realm, call goja.FunctionCall) goja.Value {
		p := r.hostOf(call.This)
		if p == nil {
			r.throwTypeError("%s", ErrIllegalInvocation)
		}
		callback := call.Argument(1)
		if isNullish(callback) {
			return goja.Undefined()
		}
		capture, once := listenerOptions(call.Argument(2))
		p.listeners().add(call.Argument(0).String(), &listener{callback: callback, capture: capture, once: once})
		return goja.Undefined()
	})
	c.method("removeEventListener", func(r *Realm, call goja.FunctionCall) goja.Value {
		p := r.hostOf(call.This)
		if p == nil {
			r.throwTypeError("%s", ErrIllegalInvocation)
		}
		if p.events == nil || isNullish(call.Argument(1)) {
			return goja.Undefined()
		}
		capture, _ := listenerOptions(call.Argument(2))
		p.events.remove(call.Argument(0).String(), call.Argument(1), capture)
		return goja.Undefined()
	})
	c.method("dispatchEvent", func(r *Realm, call goja.FunctionCall) goja.Value {
		p := r.hostOf(call.This)
		if p == nil {
			r.throwTypeError("%s", ErrIllegalInvocation)
		}
		var ev *event
		evObj, isObj := call.Argument(0).(*goja.Object)
		if isObj {
			ev, _ = r.hostOf(evObj).nativeEvent()
		}
		if ev == nil {
			r.throwTypeError("Failed to execute 'dispatchEvent': parameter 1 is not of type 'Event'.")
		}
		return r.vm.ToValue(r.dispatch(p, ev, evObj))
	})
}

func (p *Projection) nativeEvent() (*event, bool) {
	if p == nil {
		return nil, false
	}
	ev, ok := p.native.(*event)
	return ev, ok
}

func registerEvent(b *jsconfig.Bindings) {
	c := classBindings{b: b, class: "Event"}
	c.constructor(func(r *Realm, args []goja.Value) *goja.Object {
		if len(args) == 0 {
			r.throwTypeError("Failed to construct 'Event': 1 argument required, but only 0 present.")
		}
		var bubbles, cancelable bool
		if init, ok := argument(args, 1).(*goja.Object); ok {
			if v := init.Get("bubbles"); v != nil {
				bubbles = v.ToBoolean()
			}
			if v := init.Get("cancelable"); v != nil {
				cancelable = v.ToBoolean()
			}
		}
		obj := r.vm.CreateObject(nil)
		r.register(obj, newEvent(args[0].String(), bubbles, cancelable), nil)
		return obj
	})

	ev := func(r *Realm, this goja.Value) *event { return nativeOf[*event](r, this) }
	c.getter("type", func(r *Realm, this goja.Value) goja.Value { return r.vm.ToValue(ev(r, this).typ) })
	c.getter("bubbles", func(r *Realm, this goja.Value) goja.Value { return r.vm.ToValue(ev(r, this).bubbles) })
	c.getter("cancelable", func(r *Realm, this goja.Value) goja.Value { return r.vm.ToValue(ev(r, this).cancelable) })
	c.getter("target", func(r *Realm, this goja.Value) goja.Value { return ev(r, this).target })
	c.getter("currentTarget", func(r *Realm, this goja.Value) goja.Value { return ev(r, this).currentTarget })
	c.getter("eventPhase", func(r *Realm, this goja.Value) goja.Value { return r.vm.ToValue(ev(r, this).phase) })
	c.getter("defaultPrevented", func(r *Realm, this goja.Value) goja.Value { return r.vm.ToValue(ev(r, this).canceled) })
	c.getter("timeStamp", func(r *Realm, this goja.Value) goja.Value { return r.vm.ToValue(ev(r, this).timeStamp) })

	c.method("preventDefault", func(r *Realm, call goja.FunctionCall) goja.Value {
		if e := ev(r, call.This); e.cancelable {
			e.canceled = true
		}
		return goja.Undefined()
	})
	c.method("stopPropagation", func(r *Realm, call goja.FunctionCall) goja.Value {
		ev(r, call.This).stopped = true
		return goja.Undefined()
	})
	c.method("stopImmediatePropagation", func(r *Realm, call goja.FunctionCall) goja.Value {
		e := ev(r, call.This)
		e.stopped, e.stoppedNow = true, true
		return goja.Undefined()
	})
}

func registerDOMException(b *jsconfig.Bindings) {
	c := classBindings{b: b, class: "DOMException"}
	c.constructor(func(r *Realm, args []goja.Value) *goja.Object {
		name := stringArg(argument(args, 1), "Error")
		obj := r.vm.CreateObject(nil)
		r.register(obj, &domException{name: name, message: stringArg(argument(args, 0), ""), code: exceptionCodes[name]}, nil)
		return obj
	})
	ex := func(r *Realm, this goja.Value) *domException { return nativeOf[*domException](r, this) }
	c.getter("name", func(r *Realm, this goja.Value) goja.Value { return r.vm.ToValue(ex(r, this).name) })
	c.getter("message", func(r *Realm, this goja.Value) goja.Value { return r.vm.ToValue(ex(r, this).message) })
	c.getter("code", func(r *Realm, this goja.Value) goja.Value { return r.vm.ToValue(ex(r, this).code) })
}
