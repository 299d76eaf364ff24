// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/domscript/api/schemas"
	"github.com/xkilldash9x/domscript/internal/observability"
)

// resetForTest isolates a command run: no discovered config file, a quiet
// logger, and a fresh global logger.
func resetForTest(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("DOMSCRIPT_LOGGER_LEVEL", "fatal")
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
}

// execute runs the command tree with args and returns stdout and the error.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	resetForTest(t)
	out, err := execute(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "domscript version "+Version)
}

func TestVersionCmd(t *testing.T) {
	resetForTest(t)
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "domscript "+Version+" (go"))
}

func TestRootCmd_BadConfigFile(t *testing.T) {
	resetForTest(t)
	_, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "profiles")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
}

func TestProfilesCmd(t *testing.T) {
	resetForTest(t)
	out, err := execute(t, "", "profiles")
	require.NoError(t, err)

	var infos []schemas.ProfileInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Key)
		assert.NotEmpty(t, info.UserAgent)
	}
	assert.Equal(t, []string{"chrome-120", "edge-120", "firefox-115", "firefox-121", "ie-11"}, keys)
}

func TestClassesCmd(t *testing.T) {
	resetForTest(t)
	names := func(out string) map[string]schemas.ClassInfo {
		var infos []schemas.ClassInfo
		require.NoError(t, json.Unmarshal([]byte(out), &infos))
		m := make(map[string]schemas.ClassInfo, len(infos))
		for _, info := range infos {
			m[info.Name] = info
		}
		return m
	}

	out, err := execute(t, "", "classes", "--profile", "ie-11")
	require.NoError(t, err)
	ie := names(out)
	assert.Contains(t, ie, "ActiveXObject")
	assert.NotContains(t, ie, "URL")
	assert.Contains(t, ie["Document"].Members, "createElement")

	out, err = execute(t, "", "classes")
	require.NoError(t, err)
	chrome := names(out)
	assert.Contains(t, chrome, "URL")
	assert.NotContains(t, chrome, "ActiveXObject")
	assert.Equal(t, "Node", chrome["Document"].Parent)

	_, err = execute(t, "", "classes", "--profile", "netscape-4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown browser profile")
}

func TestCharsetCmd(t *testing.T) {
	resetForTest(t)
	decode := func(out string) schemas.CharsetReport {
		var r schemas.CharsetReport
		require.NoError(t, json.Unmarshal([]byte(out), &r))
		return r
	}

	out, err := execute(t, "\xEF\xBB\xBFhello", "charset", "--content-type", "text/html; charset=iso-8859-1")
	require.NoError(t, err)
	r := decode(out)
	assert.Equal(t, "document", r.Kind)
	assert.Equal(t, "header", r.Source)
	assert.Equal(t, "ISO-8859-1", r.Charset)

	out, err = execute(t, "\xEF\xBB\xBF@charset \"koi8-r\"; p{}", "charset", "--kind", "stylesheet", "--content-type", "text/css; charset=iso-8859-1")
	require.NoError(t, err)
	r = decode(out)
	assert.Equal(t, "bom", r.Source)
	assert.Equal(t, "UTF-8", r.Charset)
	assert.Equal(t, 3, r.BOMLength)
	assert.Equal(t, `@charset "koi8-r"; p{}`, r.Preview)

	path := filepath.Join(t.TempDir(), "app.js")
	require.NoError(t, os.WriteFile(path, []byte("var x = 1;"), 0o600))
	out, err = execute(t, "", "charset", "--kind", "script", "--attribute", "windows-1252", path)
	require.NoError(t, err)
	r = decode(out)
	assert.Equal(t, "attribute", r.Source)
	assert.Equal(t, "windows-1252", r.Charset)

	_, err = execute(t, "", "charset", "--kind", "font")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown resource kind")
}

func TestRunCmd_File(t *testing.T) {
	resetForTest(t)
	page := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><head><title>Fixture</title></head><body><p id="x">hi</p></body></html>`), 0o600))

	out, err := execute(t, "", "run", "--file", page, "--base-url", "http://example.com/page.html",
		"--script", `() => { console.log("seen", document.getElementById("x").textContent); return document.title + ":" + navigator.userAgent.length; }`)
	require.NoError(t, err)

	var result schemas.ScriptResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "chrome-120", result.Profile)
	assert.Equal(t, "http://example.com/page.html", result.URL)
	assert.True(t, strings.HasPrefix(result.Value.(string), "Fixture:"))
	require.Len(t, result.ConsoleLogs, 1)
	assert.Equal(t, "seen hi", result.ConsoleLogs[0].Text)
	assert.NotEmpty(t, result.Duration)
}

func TestRunCmd_URLWithPageScripts(t *testing.T) {
	resetForTest(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Start</title><script src="/app.js"></script><script>window.counter = (window.counter || 0) + 1;</script></head></html>`))
	})
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript")
		w.Write([]byte(`document.title = "Loaded by " + navigator.userAgent; window.counter = 10;`))
	})
	var seenUA string
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		seenUA = r.UserAgent()
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	out, err := execute(t, "", "run", "--url", server.URL+"/", "--execute-scripts", "--profile", "firefox-121",
		"--user-agent", "tester/1.0", "--script", "document.title + '|' + window.counter")
	require.NoError(t, err)

	var result schemas.ScriptResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "firefox-121", result.Profile)
	assert.Equal(t, "UTF-8", result.Charset)
	assert.True(t, strings.HasPrefix(result.Value.(string), "Loaded by Mozilla/5.0"))
	assert.True(t, strings.HasSuffix(result.Value.(string), "|11"))

	// The override reaches the wire but not navigator.userAgent.
	_, err = execute(t, "", "run", "--url", server.URL+"/ua", "--user-agent", "tester/1.0")
	require.NoError(t, err)
	assert.Equal(t, "tester/1.0", seenUA)
}

func TestRunCmd_Errors(t *testing.T) {
	resetForTest(t)
	page := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<p>x</p>`), 0o600))

	_, err := execute(t, "", "run", "--script", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --url or --file")

	_, err = execute(t, "", "run", "--file", page, "--url", "http://example.com/")
	require.Error(t, err)

	_, err = execute(t, "", "run", "--file", page, "--script", "throw new Error('boom')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, err = execute(t, "", "run", "--file", page, "--profile", "mosaic-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown browser profile")

	_, err = execute(t, "", "run", "--file", page, "--timeout", "50ms", "--script", "while (true) {}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/xml", contentTypeFor("feed.XML"))
	assert.Equal(t, "application/xhtml+xml", contentTypeFor("a.xhtml"))
	assert.Equal(t, "text/html", contentTypeFor("index.htm"))
}

func TestJSONSafe(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"a": 1}, jsonSafe(map[string]interface{}{"a": 1}))
	fn := func() {}
	assert.IsType(t, "", jsonSafe(fn))
}
