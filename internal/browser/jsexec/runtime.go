// internal/browser/jsexec/runtime.go
package jsexec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domscript/internal/browser/dom"
	"github.com/xkilldash9x/domscript/internal/browser/jsbind"
	"github.com/xkilldash9x/domscript/internal/browser/jsconfig"
	"github.com/xkilldash9x/domscript/internal/browser/profile"
	"github.com/xkilldash9x/domscript/internal/browser/xhr"
)

// DefaultTimeout is the fallback execution timeout if the context has no deadline.
const DefaultTimeout = 30 * time.Second

// ErrRuntimeClosed is returned for work submitted after Close.
var ErrRuntimeClosed = errors.New("javascript runtime is closed")

// Runtime owns an event loop whose goja VM hosts a single Window. Every
// script and every background request delivery runs on the loop goroutine.
type Runtime struct {
	loop    *eventloop.EventLoop
	window  *jsbind.Window
	logger  *zap.Logger
	timeout time.Duration

	cancel    context.CancelFunc
	execMutex sync.Mutex // serializes ExecuteScript so interrupts never cross runs
	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures a Runtime.
type Option func(*options)

type options struct {
	timeout time.Duration
	window  []jsbind.Option
}

// WithTimeout overrides DefaultTimeout for contexts without a deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithWindowOptions forwards options to the Window. They are applied after
// the runtime's own scheduler and context, so they may replace either.
func WithWindowOptions(opts ...jsbind.Option) Option {
	return func(o *options) { o.window = append(o.window, opts...) }
}

// NewRuntime starts an event loop and binds doc to a fresh Window under
// profile p. Configuration errors stop the loop and are returned unchanged.
func NewRuntime(reg *jsconfig.Registry, p *profile.Profile, doc *dom.Document, logger *zap.Logger, opts ...Option) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	loop := eventloop.NewEventLoop(eventloop.EnableConsole(false))
	loop.Start()

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		loop:    loop,
		logger:  logger.Named("jsexec"),
		timeout: o.timeout,
		cancel:  cancel,
		closed:  make(chan struct{}),
	}

	windowOpts := append([]jsbind.Option{
		jsbind.WithScheduler(xhr.SchedulerFunc(r.schedule)),
		jsbind.WithContext(ctx),
	}, o.window...)

	type built struct {
		w   *jsbind.Window
		err error
	}
	ready := make(chan built, 1)
	loop.RunOnLoop(func(vm *goja.Runtime) {
		w, err := jsbind.NewWindow(vm, reg, p, doc, logger, windowOpts...)
		ready <- built{w, err}
	})
	b := <-ready
	if b.err != nil {
		r.Close()
		return nil, b.err
	}
	r.window = b.w
	return r, nil
}

// schedule hands fn to the loop. It reports false once the runtime is closed.
func (r *Runtime) schedule(fn func()) bool {
	select {
	case <-r.closed:
		return false
	default:
	}
	return r.loop.RunOnLoop(func(*goja.Runtime) { fn() })
}

// Window returns the bound window. Its script-facing state must only be
// touched from code running on the loop.
func (r *Runtime) Window() *jsbind.Window {
	return r.window
}

// Close cancels in-flight requests and stops the loop. It is safe to call
// more than once.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
		r.cancel()
		r.loop.Stop()
	})
}

type outcome struct {
	value interface{}
	err   error
}

// ExecuteScript runs a JavaScript snippet within the persistent VM environment.
// It handles context based cancellation, timeouts, and asynchronous Promises.
// Args can be passed if the script is structured as a function wrapper.
func (r *Runtime) ExecuteScript(ctx context.Context, script string, args []interface{}) (interface{}, error) {
	r.execMutex.Lock()
	defer r.execMutex.Unlock()

	select {
	case <-r.closed:
		return nil, ErrRuntimeClosed
	default:
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	scheduled := r.loop.RunOnLoop(func(vm *goja.Runtime) {
		if err := ctx.Err(); err != nil {
			done <- outcome{err: fmt.Errorf("javascript execution interrupted by context: %w", err)}
			return
		}
		interrupted := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			vm.Interrupt(ctx.Err())
			close(interrupted)
		})
		defer func() {
			if !stop() {
				<-interrupted
			}
			vm.ClearInterrupt()
		}()

		result, err := r.evaluate(vm, script, args)
		if err != nil {
			done <- outcome{err: r.classify(ctx, err)}
			return
		}
		if promise, ok := result.Export().(*goja.Promise); ok {
			r.settle(vm, result, promise, done)
			return
		}
		done <- outcome{value: result.Export()}
	})
	if !scheduled {
		return nil, ErrRuntimeClosed
	}

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("context done while waiting for script: %w", ctx.Err())
	case <-r.closed:
		return nil, ErrRuntimeClosed
	}
}

func (r *Runtime) evaluate(vm *goja.Runtime, script string, args []interface{}) (goja.Value, error) {
	if isFunctionWrapper(script) {
		return executeFunctionWrapper(vm, script, args)
	}
	if len(args) > 0 {
		r.logger.Debug("Arguments provided to ExecuteScript in snippet mode are ignored.")
	}
	return vm.RunString(script)
}

func (r *Runtime) classify(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("javascript execution interrupted by context: %w", ctxErr)
		}
		return fmt.Errorf("javascript execution interrupted: %w", err)
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return fmt.Errorf("javascript exception: %w", exception)
	}
	return fmt.Errorf("javascript error: %w", err)
}

// settle reports a promise's outcome through done. Pending promises get
// handlers attached with the script-visible then, so they run on the loop.
func (r *Runtime) settle(vm *goja.Runtime, value goja.Value, promise *goja.Promise, done chan<- outcome) {
	switch promise.State() {
	case goja.PromiseStateFulfilled:
		done <- outcome{value: promise.Result().Export()}
		return
	case goja.PromiseStateRejected:
		done <- outcome{err: fmt.Errorf("javascript promise rejected: %v", promise.Result())}
		return
	}

	then, ok := goja.AssertFunction(value.ToObject(vm).Get("then"))
	if !ok {
		done <- outcome{err: fmt.Errorf("javascript error: promise has no callable then")}
		return
	}
	onFulfilled := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		done <- outcome{value: call.Argument(0).Export()}
		return goja.Undefined()
	})
	onRejected := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		done <- outcome{err: fmt.Errorf("javascript promise rejected: %v", call.Argument(0))}
		return goja.Undefined()
	})
	if _, err := then(value, onFulfilled, onRejected); err != nil {
		done <- outcome{err: fmt.Errorf("javascript error: %w", err)}
	}
}

// isFunctionWrapper uses heuristics to detect common function wrappers.
func isFunctionWrapper(script string) bool {
	s := strings.TrimSpace(script)
	if len(s) < 5 {
		return false
	}

	return strings.HasPrefix(s, "(function") || strings.HasPrefix(s, "(async function") ||
		strings.HasPrefix(s, "function") || strings.HasPrefix(s, "async function") ||
		strings.HasPrefix(s, "(()=>") || strings.HasPrefix(s, "(() =>") || strings.HasPrefix(s, "(async (")
}

// executeFunctionWrapper evaluates the script and calls the result with args.
func executeFunctionWrapper(vm *goja.Runtime, script string, args []interface{}) (goja.Value, error) {
	prog, err := goja.Compile("", script, false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile function wrapper script: %w", err)
	}

	val, err := vm.RunProgram(prog)
	if err != nil {
		return nil, err
	}

	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, fmt.Errorf("script did not evaluate to a callable function wrapper")
	}

	gojaArgs := make([]goja.Value, len(args))
	for i, arg := range args {
		gojaArgs[i] = vm.ToValue(arg)
	}

	return fn(vm.GlobalObject(), gojaArgs...)
}
