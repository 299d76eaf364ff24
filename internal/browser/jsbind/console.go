// internal/browser/jsbind/console.go
package jsbind

import (
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/domscript/api/schemas"
)

// initConsole installs a console object that writes through the window's
// logger and records each entry for ConsoleLogs.
func (w *Window) initConsole() {
	vm := w.realm.vm
	console := vm.NewObject()
	logFunc := func(kind string, level zapcore.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = w.formatConsoleArg(arg)
			}
			message := strings.Join(args, " ")
			w.logger.Log(level, "[JS Console]", zap.String("type", kind), zap.String("message", message))

			w.mu.Lock()
			w.consoleLogs = append(w.consoleLogs, schemas.ConsoleLog{
				Type:      kind,
				Timestamp: time.Now(),
				Text:      message,
			})
			w.mu.Unlock()
			return goja.Undefined()
		}
	}

	_ = console.Set("log", logFunc("log", zap.InfoLevel))
	_ = console.Set("info", logFunc("info", zap.InfoLevel))
	_ = console.Set("warn", logFunc("warn", zap.WarnLevel))
	_ = console.Set("error", logFunc("error", zap.ErrorLevel))
	_ = console.Set("debug", logFunc("debug", zap.DebugLevel))

	if err := vm.GlobalObject().Set("console", console); err != nil {
		w.logger.Error("Failed to set 'console' global", zap.Error(err))
	}
}

// formatConsoleArg renders plain objects and arrays as JSON. Host objects
// and functions use their string conversion.
func (w *Window) formatConsoleArg(arg goja.Value) string {
	vm := w.realm.vm
	obj, ok := arg.(*goja.Object)
	if !ok || w.realm.hostOf(obj) != nil {
		return arg.String()
	}
	if _, isFunc := goja.AssertFunction(arg); isFunc {
		return arg.String()
	}
	if jsJSON, ok := vm.Get("JSON").(*goja.Object); ok {
		if stringify, ok := goja.AssertFunction(jsJSON.Get("stringify")); ok {
			if result, err := stringify(goja.Undefined(), arg); err == nil && !goja.IsUndefined(result) {
				return result.String()
			}
		}
	}
	return arg.String()
}
