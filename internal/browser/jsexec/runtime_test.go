package jsexec_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/domscript/api/schemas"
	"github.com/xkilldash9x/domscript/internal/browser/dom"
	"github.com/xkilldash9x/domscript/internal/browser/jsbind"
	"github.com/xkilldash9x/domscript/internal/browser/jsexec"
	"github.com/xkilldash9x/domscript/internal/browser/profile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubTransport answers every request from a fixed table of bodies.
type stubTransport struct {
	mu     sync.Mutex
	bodies map[string]string
	seen   []string
}

func (s *stubTransport) Fetch(_ context.Context, req schemas.FetchRequest) (*schemas.FetchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, req.Method+" "+req.URL)
	body, ok := s.bodies[req.URL]
	if !ok {
		return &schemas.FetchResponse{URL: req.URL, Status: 404, StatusText: "Not Found"}, nil
	}
	return &schemas.FetchResponse{
		URL:        req.URL,
		Status:     200,
		StatusText: "OK",
		Headers:    []schemas.NVPair{{Name: "Content-Type", Value: "text/plain"}},
		Body:       []byte(body),
	}, nil
}

// newTestRuntime is a helper to set up a runtime over a small page for each test.
func newTestRuntime(t *testing.T, opts ...jsexec.Option) *jsexec.Runtime {
	t.Helper()

	doc, err := dom.ParseHTML(strings.NewReader(`<html><head><title>Fixture</title></head><body><p id="greeting">hello</p></body></html>`),
		dom.WithURL("http://example.com/index.html"))
	require.NoError(t, err)

	reg, err := jsbind.NewDefaultRegistry(zaptest.NewLogger(t))
	require.NoError(t, err)

	runtime, err := jsexec.NewRuntime(reg, profile.Chrome120, doc, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)

	// Stop the loop after the test so no goroutines leak.
	t.Cleanup(runtime.Close)
	return runtime
}

func TestExecuteScript_Basic(t *testing.T) {
	runtime := newTestRuntime(t)

	result, err := runtime.ExecuteScript(context.Background(), `(5 + 5) * 2`, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(20), result)
}

func TestExecuteScript_WithArgs(t *testing.T) {
	runtime := newTestRuntime(t)

	script := `(function(prefix, message) { return prefix + message; })`
	result, err := runtime.ExecuteScript(context.Background(), script, []interface{}{"Log: ", "Hello World"})
	require.NoError(t, err)
	assert.Equal(t, "Log: Hello World", result)
}

func TestExecuteScript_ReturnObject(t *testing.T) {
	runtime := newTestRuntime(t)

	result, err := runtime.ExecuteScript(context.Background(), `({status: "success", code: 200})`, nil)
	require.NoError(t, err)

	resultMap, ok := result.(map[string]interface{})
	require.True(t, ok, "Result should be a map")
	assert.Equal(t, "success", resultMap["status"])
	assert.Equal(t, int64(200), resultMap["code"])
}

func TestExecuteScript_SeesDocument(t *testing.T) {
	runtime := newTestRuntime(t)

	result, err := runtime.ExecuteScript(context.Background(),
		`document.title + ':' + document.getElementById('greeting').textContent + ':' + (window === this)`, nil)
	require.NoError(t, err)
	assert.Equal(t, "Fixture:hello:true", result)
}

func TestExecuteScript_StatePersistsAcrossRuns(t *testing.T) {
	runtime := newTestRuntime(t)
	ctx := context.Background()

	_, err := runtime.ExecuteScript(ctx, `var counter = 1; document.body.appendChild(document.createElement('hr'));`, nil)
	require.NoError(t, err)

	result, err := runtime.ExecuteScript(ctx, `counter + document.getElementsByTagName('hr').length`, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result)
}

func TestExecuteScript_Exception(t *testing.T) {
	runtime := newTestRuntime(t)

	_, err := runtime.ExecuteScript(context.Background(), `throw new Error("boom")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "javascript exception")
	assert.Contains(t, err.Error(), "boom")

	var exception *goja.Exception
	assert.True(t, errors.As(err, &exception))

	_, err = runtime.ExecuteScript(context.Background(), `document.createElement('1nvalid')`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid character")
}

func TestExecuteScript_NotAFunctionWrapper(t *testing.T) {
	runtime := newTestRuntime(t)

	_, err := runtime.ExecuteScript(context.Background(), `(function broken( { })`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile")
}

func TestExecuteScript_ContextTimeoutInterrupts(t *testing.T) {
	runtime := newTestRuntime(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := runtime.ExecuteScript(ctx, `while (true) {}`, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)

	// The interrupt must not leak into the next run.
	result, err := runtime.ExecuteScript(context.Background(), `'still alive'`, nil)
	require.NoError(t, err)
	assert.Equal(t, "still alive", result)
}

func TestExecuteScript_DefaultTimeoutOption(t *testing.T) {
	runtime := newTestRuntime(t, jsexec.WithTimeout(30*time.Millisecond))

	_, err := runtime.ExecuteScript(context.Background(), `for (;;) {}`, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestExecuteScript_CanceledBeforeRun(t *testing.T) {
	runtime := newTestRuntime(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runtime.ExecuteScript(ctx, `1`, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExecuteScript_Promises(t *testing.T) {
	runtime := newTestRuntime(t)
	ctx := context.Background()

	t.Run("Settled", func(t *testing.T) {
		result, err := runtime.ExecuteScript(ctx, `Promise.resolve('ready')`, nil)
		require.NoError(t, err)
		assert.Equal(t, "ready", result)
	})

	t.Run("ResolvedByTimer", func(t *testing.T) {
		result, err := runtime.ExecuteScript(ctx, `new Promise(resolve => setTimeout(() => resolve(42), 10))`, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(42), result)
	})

	t.Run("AsyncWrapper", func(t *testing.T) {
		result, err := runtime.ExecuteScript(ctx, `(async function(x) { return x * 3; })`, []interface{}{5})
		require.NoError(t, err)
		assert.Equal(t, int64(15), result)
	})

	t.Run("Rejected", func(t *testing.T) {
		_, err := runtime.ExecuteScript(ctx, `new Promise((_, reject) => setTimeout(() => reject('nope'), 10))`, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "javascript promise rejected: nope")
	})

	t.Run("NeverSettles", func(t *testing.T) {
		timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err := runtime.ExecuteScript(timeoutCtx, `new Promise(() => {})`, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}

func TestExecuteScript_BackgroundRequestDeliveredOnLoop(t *testing.T) {
	transport := &stubTransport{bodies: map[string]string{"http://example.com/data.txt": "payload"}}
	runtime := newTestRuntime(t, jsexec.WithWindowOptions(jsbind.WithTransport(transport)))

	result, err := runtime.ExecuteScript(context.Background(), `
		new Promise((resolve, reject) => {
			const xhr = new XMLHttpRequest();
			const states = [];
			xhr.onreadystatechange = () => states.push(xhr.readyState);
			xhr.onload = () => resolve(states.join('') + ':' + xhr.status + ':' + xhr.responseText);
			xhr.onerror = () => reject('network');
			xhr.open('GET', 'data.txt');
			xhr.send();
		})`, nil)
	require.NoError(t, err)
	assert.Equal(t, "11234:200:payload", result)
	assert.Equal(t, []string{"GET http://example.com/data.txt"}, transport.seen)
}

func TestExecuteScript_ConsoleCaptured(t *testing.T) {
	runtime := newTestRuntime(t)

	_, err := runtime.ExecuteScript(context.Background(), `console.log('one', 2); console.error('bad')`, nil)
	require.NoError(t, err)

	logs := runtime.Window().ConsoleLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, "log", logs[0].Type)
	assert.Equal(t, "one 2", logs[0].Text)
	assert.Equal(t, "error", logs[1].Type)
}

func TestRuntime_Closed(t *testing.T) {
	runtime := newTestRuntime(t)
	runtime.Close()
	runtime.Close()

	_, err := runtime.ExecuteScript(context.Background(), `1`, nil)
	assert.ErrorIs(t, err, jsexec.ErrRuntimeClosed)
}

func TestNewRuntime_ConfigurationErrors(t *testing.T) {
	reg, err := jsbind.NewDefaultRegistry(zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = jsexec.NewRuntime(reg, profile.Chrome120, nil, zaptest.NewLogger(t))
	assert.Error(t, err)

	_, err = jsexec.NewRuntime(nil, profile.Chrome120, dom.NewHTMLDocument(), nil)
	assert.Error(t, err)
}
