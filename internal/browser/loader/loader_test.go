// internal/browser/loader/loader_test.go
package loader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/domscript/api/schemas"
	"github.com/xkilldash9x/domscript/internal/browser/charset"
)

type page struct {
	status      int
	contentType string
	body        []byte
}

// siteFetcher serves a fixed set of pages and records what was asked for.
type siteFetcher struct {
	mu        sync.Mutex
	pages     map[string]page
	requested []string
	fail      map[string]error
}

func (s *siteFetcher) Fetch(_ context.Context, req schemas.FetchRequest) (*schemas.FetchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requested = append(s.requested, req.URL)
	if err := s.fail[req.URL]; err != nil {
		return nil, err
	}
	p, ok := s.pages[req.URL]
	if !ok {
		return &schemas.FetchResponse{URL: req.URL, Status: 404}, nil
	}
	status := p.status
	if status == 0 {
		status = 200
	}
	resp := &schemas.FetchResponse{URL: req.URL, Status: status, Body: p.body}
	if p.contentType != "" {
		resp.Headers = []schemas.NVPair{{Name: "Content-Type", Value: p.contentType}}
	}
	return resp, nil
}

func newTestLoader(t *testing.T, pages map[string]page, opts ...Option) (*Loader, *siteFetcher) {
	t.Helper()
	f := &siteFetcher{pages: pages}
	return New(f, zaptest.NewLogger(t), opts...), f
}

func TestParseDocument_DeclaredLatin1(t *testing.T) {
	l, _ := newTestLoader(t, nil)
	data := append([]byte(`<html><head><meta charset="ISO-8859-1"><title>caf`), 0xE9)
	data = append(data, []byte(`</title></head><body></body></html>`)...)

	doc, d, err := l.ParseDocument(data, "http://example.com/", "text/html")
	require.NoError(t, err)
	assert.Equal(t, "ISO-8859-1", d.Name)
	assert.Equal(t, charset.SourceDeclaration, d.Source)
	assert.Equal(t, "café", doc.Title())
	assert.Equal(t, "ISO-8859-1", doc.Charset())
	assert.False(t, doc.IsXML())
}

func TestParseDocument_DefaultCharset(t *testing.T) {
	l, _ := newTestLoader(t, nil, WithDefaultCharset("windows-1252"))
	doc, d, err := l.ParseDocument([]byte{'<', 'p', '>', 0x80}, "http://example.com/", "")
	require.NoError(t, err)
	assert.Equal(t, charset.SourceDefault, d.Source)
	assert.Equal(t, "windows-1252", d.Name)
	text, _ := doc.Body().TextContent()
	assert.Equal(t, "€", text)
}

func TestLoadDocument(t *testing.T) {
	l, _ := newTestLoader(t, map[string]page{
		"http://example.com/index.html": {contentType: "text/html; charset=utf-8", body: []byte(`<title>Héllo</title>`)},
		"http://example.com/feed.xml":   {contentType: "application/atom+xml", body: []byte(`<?xml version="1.0"?><feed><entry/></feed>`)},
		"http://example.com/down":       {status: 503},
	})
	ctx := context.Background()

	doc, d, err := l.LoadDocument(ctx, "http://example.com/index.html")
	require.NoError(t, err)
	assert.Equal(t, charset.SourceHeader, d.Source)
	assert.Equal(t, "Héllo", doc.Title())
	assert.Equal(t, "http://example.com/index.html", doc.URL())

	xml, _, err := l.LoadDocument(ctx, "http://example.com/feed.xml")
	require.NoError(t, err)
	assert.True(t, xml.IsXML())
	assert.Equal(t, "feed", xml.DocumentElement().TagName())

	_, _, err = l.LoadDocument(ctx, "http://example.com/down")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 503, httpErr.Status)

	_, _, err = New(nil, nil).LoadDocument(ctx, "http://example.com/")
	assert.Error(t, err)
}

func TestScripts_DocumentOrderAndCharsets(t *testing.T) {
	l, f := newTestLoader(t, map[string]page{
		"http://example.com/js/a.js":  {contentType: "text/javascript", body: []byte("var a = 1;")},
		"http://example.com/js/b.js":  {body: []byte{'/', '/', 0x80}},
		"http://example.com/js/c.js":  {contentType: "text/javascript; charset=utf-8", body: []byte("var c = 'é';")},
		"http://example.com/js/m.mjs": {body: []byte("export {}")},
	}, WithConcurrency(2))

	markup := `<html><head><meta charset="utf-8">
		<script src="js/a.js" defer></script>
		<script>var inline = true;</script>
		<script src="js/b.js" charset="windows-1252" async></script>
		<script type="module" src="js/m.mjs"></script>
		<script type="text/template">not code</script>
		<script type="TEXT/JAVASCRIPT" src="/js/c.js"></script>
		</head><body></body></html>`
	doc, _, err := l.ParseDocument([]byte(markup), "http://example.com/index.html", "text/html")
	require.NoError(t, err)

	scripts, err := l.Scripts(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, scripts, 4)

	assert.Equal(t, "http://example.com/js/a.js", scripts[0].URL)
	assert.Equal(t, "var a = 1;", scripts[0].Source)
	assert.True(t, scripts[0].Defer)

	assert.True(t, scripts[1].Inline())
	assert.Equal(t, "var inline = true;", scripts[1].Source)

	assert.Equal(t, "//€", scripts[2].Source)
	assert.Equal(t, charset.SourceAttribute, scripts[2].Decision.Source)
	assert.True(t, scripts[2].Async)

	assert.Equal(t, "var c = 'é';", scripts[3].Source)
	assert.NotContains(t, f.requested, "http://example.com/js/m.mjs")
}

func TestScripts_FailureCancelsBatch(t *testing.T) {
	l, f := newTestLoader(t, map[string]page{
		"http://example.com/ok.js": {body: []byte("1")},
	})
	f.fail = map[string]error{"http://example.com/broken.js": errors.New("connection reset")}

	doc, _, err := l.ParseDocument([]byte(`<script src="ok.js"></script><script src="broken.js"></script>`),
		"http://example.com/", "text/html")
	require.NoError(t, err)

	_, err = l.Scripts(context.Background(), doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	doc, _, err = l.ParseDocument([]byte(`<script src="missing.js"></script>`), "http://example.com/", "text/html")
	require.NoError(t, err)
	_, err = l.Scripts(context.Background(), doc)
	var httpErr *HTTPError
	assert.True(t, errors.As(err, &httpErr))
}

func TestStylesheets_CharsetPrecedence(t *testing.T) {
	l, _ := newTestLoader(t, map[string]page{
		"http://example.com/a.css": {contentType: "text/css; charset=utf-8", body: append([]byte(`@charset "windows-1252"; p::after{content:"`), 0x80, '"', '}')},
		"http://example.com/b.css": {body: []byte{'b', 0xE9}},
	})

	doc, _, err := l.ParseDocument([]byte(`<head><meta charset="iso-8859-1">
		<link rel="stylesheet" href="a.css">
		<link rel="icon" href="favicon.ico">
		<link rel="alternate stylesheet" href="b.css" charset="utf-8">
		</head>`), "http://example.com/", "text/html")
	require.NoError(t, err)

	sheets, err := l.Stylesheets(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, sheets, 2)

	assert.Equal(t, charset.SourceDeclaration, sheets[0].Decision.Source)
	assert.Contains(t, sheets[0].Text, "€")

	// The link charset applies when the sheet names none.
	assert.Equal(t, charset.SourceAttribute, sheets[1].Decision.Source)
	assert.Equal(t, "b�", sheets[1].Text)
}
