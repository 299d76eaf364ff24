// internal/browser/jsbind/window_test.go
package jsbind

import (
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/domscript/internal/browser/dom"
	"github.com/xkilldash9x/domscript/internal/browser/jsconfig"
	"github.com/xkilldash9x/domscript/internal/browser/profile"
)

const testURL = "http://example.com/app/index.html"

// -- Test Setup Utilities --

type testWindow struct {
	*Window
	t *testing.T
}

func mustDefaultRegistry(t *testing.T) *jsconfig.Registry {
	t.Helper()
	reg, err := NewDefaultRegistry(zaptest.NewLogger(t))
	require.NoError(t, err)
	return reg
}

func setupWindow(t *testing.T, markup string, p *profile.Profile, opts ...Option) *testWindow {
	t.Helper()
	logger := zaptest.NewLogger(t)
	reg := mustDefaultRegistry(t)

	doc, err := dom.ParseHTML(strings.NewReader(markup), dom.WithURL(testURL), dom.WithCharset("UTF-8"))
	require.NoError(t, err)

	w, err := NewWindow(goja.New(), reg, p, doc, logger, opts...)
	require.NoError(t, err)
	return &testWindow{Window: w, t: t}
}

func (tw *testWindow) run(script string) (goja.Value, error) {
	return tw.Runtime().RunString(script)
}

// mustRun runs a script and fails the test on error.
func (tw *testWindow) mustRun(script string) goja.Value {
	tw.t.Helper()
	v, err := tw.run(script)
	require.NoError(tw.t, err)
	return v
}

const basicPage = `<html><head><title>Start</title></head><body>
<div id="outer" class="box main"><p id="inner">Hello <b>world</b></p></div>
<ul><li id="item2">Two</li></ul>
<input id="field" type="TEXT" value="initial">
<a id="link" href="../docs/page.html">docs</a>
</body></html>`

// -- Test Cases --

func TestNewWindow_RejectsNilArguments(t *testing.T) {
	logger := zaptest.NewLogger(t)
	reg, err := NewDefaultRegistry(logger)
	require.NoError(t, err)

	_, err = NewWindow(nil, reg, profile.Chrome120, dom.NewHTMLDocument(), logger)
	assert.Error(t, err)
	_, err = NewWindow(goja.New(), reg, profile.Chrome120, nil, logger)
	assert.Error(t, err)
}

func TestWindow_GlobalsResolveThroughWindowPrototype(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	assert.True(t, tw.mustRun(`window === self && window === this`).ToBoolean())
	assert.True(t, tw.mustRun(`window instanceof Window && window instanceof EventTarget`).ToBoolean())
	assert.True(t, tw.mustRun(`document instanceof HTMLDocument && document instanceof Node`).ToBoolean())
	assert.Equal(t, "Netscape", tw.mustRun(`navigator.appName`).String())
	assert.Equal(t, "Google Inc.", tw.mustRun(`navigator.vendor`).String())
	assert.Equal(t, profile.Chrome120.UserAgent(), tw.mustRun(`navigator.userAgent`).String())

	tw.mustRun(`window.name = 'main'`)
	assert.Equal(t, "main", tw.mustRun(`name`).String())
}

func TestWindow_NavigatorFollowsProfile(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Firefox121)
	assert.Equal(t, "", tw.mustRun(`navigator.vendor`).String())
	assert.Equal(t, profile.Firefox121.UserAgent(), tw.mustRun(`navigator.userAgent`).String())
}

func TestDOMManipulation_AppendAndQuery(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		const outer = document.getElementById('outer');
		const p = document.createElement('p');
		p.textContent = 'Added';
		p.id = 'added';
		outer.appendChild(p);
		document.querySelector('#outer > #added').textContent;
	`)
	assert.Equal(t, "Added", result.String())

	added := tw.Document().ElementByID("added")
	require.NotNil(t, added)
	assert.Equal(t, `<p id="added">Added</p>`, added.OuterHTML())
}

func TestDOMManipulation_InsertBeforeAndRemove(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		const list = document.querySelector('ul');
		const item1 = document.createElement('li');
		item1.textContent = 'One';
		list.insertBefore(item1, document.getElementById('item2'));
		const order = list.textContent;
		list.removeChild(document.getElementById('item2'));
		order + '|' + list.childNodes.length + '|' + (document.getElementById('item2') === null);
	`)
	assert.Equal(t, "OneTwo|1|true", result.String())
}

func TestDOMManipulation_NodeTraversal(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		const inner = document.getElementById('inner');
		[
			inner.parentNode.id,
			inner.parentElement === inner.parentNode,
			inner.firstChild.nodeType === Node.TEXT_NODE,
			inner.lastChild.nodeName,
			inner.firstChild.nextSibling === inner.lastChild,
			inner.lastChild.previousSibling === inner.firstChild,
			inner.ownerDocument === document,
			document.ownerDocument,
			document.documentElement.contains(inner),
			inner.hasChildNodes(),
		].join(',');
	`)
	assert.Equal(t, "outer,true,true,B,true,true,true,,true,true", result.String())
}

func TestAttributesAndReflection(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		const input = document.getElementById('field');
		const type = input.type;
		input.setAttribute('value', 'updated');
		input.className = 'wide';
		const missing = input.getAttribute('data-missing');
		const attr = input.getAttributeNode('value');
		[type, input.value, input.className, input.getAttribute('class'), missing, attr.name, attr.value,
			attr.ownerElement === input, input.hasAttribute('value')].join(',');
	`)
	assert.Equal(t, "text,updated,wide,wide,,value,updated,true,true", result.String())

	assert.Equal(t, "http://example.com/docs/page.html", tw.mustRun(`document.getElementById('link').href`).String())
	assert.Equal(t, "../docs/page.html", tw.mustRun(`document.getElementById('link').getAttribute('href')`).String())
}

func TestElement_InnerHTMLAndChildren(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		const outer = document.getElementById('outer');
		outer.innerHTML = '<span>a</span><span>b</span>text';
		[outer.children.length, outer.childElementCount, outer.childNodes.length,
			outer.getElementsByTagName('span').length, document.getElementsByClassName('box main').length].join(',');
	`)
	assert.Equal(t, "2,2,3,2,1", result.String())
	assert.Equal(t, `<span>a</span><span>b</span>text`, tw.mustRun(`document.getElementById('outer').innerHTML`).String())
}

func TestDocumentProperties(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	assert.Equal(t, "Start", tw.mustRun(`document.title`).String())
	tw.mustRun(`document.title = 'Changed'`)
	assert.Equal(t, "Changed", tw.Document().Title())

	assert.Equal(t, "UTF-8", tw.mustRun(`document.characterSet`).String())
	assert.Equal(t, "UTF-8", tw.mustRun(`document.charset`).String())
	assert.Equal(t, testURL, tw.mustRun(`document.URL`).String())
	assert.Equal(t, "text/html", tw.mustRun(`document.contentType`).String())
	assert.True(t, tw.mustRun(`document.body instanceof HTMLBodyElement && document.head instanceof HTMLHeadElement`).ToBoolean())
}

func TestDocumentProperties_FollowProfile(t *testing.T) {
	firefox := setupWindow(t, basicPage, profile.Firefox121)
	assert.Equal(t, "undefined", firefox.mustRun(`typeof document.charset`).String())

	ie := setupWindow(t, basicPage, profile.IE11)
	assert.Equal(t, "undefined", ie.mustRun(`typeof document.contentType`).String())
	assert.Equal(t, "UTF-8", ie.mustRun(`document.charset`).String())
}

func TestDocument_Factories(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		const frag = document.createDocumentFragment();
		frag.appendChild(document.createTextNode('x'));
		frag.appendChild(document.createComment('note'));
		const t = new Text('abc');
		t.appendData('d');
		[frag.childNodes.length, frag.firstChild instanceof Text, frag.lastChild.data,
			t.length, t.data, new Comment('c').nodeType, new DocumentFragment().nodeType].join(',');
	`)
	assert.Equal(t, "2,true,note,4,abcd,8,11", result.String())
}

func TestDocument_FactoryErrors(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		const names = [];
		for (const fn of [
			() => document.createElement('1bad'),
			() => document.createCDATASection('x'),
			() => document.getElementById('outer').setAttribute('a b', 'c'),
		]) {
			try { fn(); names.push('none'); } catch (e) { names.push(e.name); }
		}
		names.join(',');
	`)
	assert.Equal(t, "InvalidCharacterError,NotSupportedError,InvalidCharacterError", result.String())
}

func TestDOMException_FromMutationErrors(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		try {
			document.body.removeChild(document.createElement('div'));
			'no error';
		} catch (e) {
			[e instanceof DOMException, e instanceof Error, e.name, e.code, DOMException.NOT_FOUND_ERR].join(',');
		}
	`)
	assert.Equal(t, "true,true,NotFoundError,8,8", result.String())

	result = tw.mustRun(`
		const e = new DOMException('boom', 'SyntaxError');
		[e.message, e.name, e.code].join(',');
	`)
	assert.Equal(t, "boom,SyntaxError,12", result.String())
}

func TestIllegalConstructorAndInvocation(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	_, err := tw.run(`new Node()`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Illegal constructor")

	_, err = tw.run(`Object.getOwnPropertyDescriptor(Node.prototype, 'nodeName').get.call({})`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrIllegalInvocation.Error())
}

func TestHostObjects_CarryTheirOwnProjection(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		var ev = new Event('ping');
		[ev.type, Object.getOwnPropertyNames(document.body).length, document.body.nodeName].join(',');
	`)
	assert.Equal(t, "ping,0,BODY", result.String())

	// A derived object does not borrow its prototype's host value.
	_, err := tw.run(`Object.create(document.body).nodeName`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrIllegalInvocation.Error())

	proj := tw.ProjectionFor(tw.Document().Body())
	assert.Same(t, proj, tw.realm.hostOf(proj.Object()))
	assert.Same(t, tw.Window, tw.realm.hostOf(goja.Undefined()).Native())
}

func TestHTMLElementConstructors(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		const img = new Image(10, 20);
		const opt = new Option('Label', 'v1');
		[img instanceof HTMLImageElement, img.tagName, img.getAttribute('width'), img.getAttribute('height'),
			opt instanceof HTMLOptionElement, opt.text, opt.value].join(',');
	`)
	assert.Equal(t, "true,IMG,10,20,true,Label,v1", result.String())
}

func TestConsole_LogsAreCapturedAndDrained(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	tw.mustRun(`console.log('a', {x: 1}, [1, 2]); console.warn(document.body)`)
	logs := tw.ConsoleLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, "log", logs[0].Type)
	assert.Equal(t, `a {"x":1} [1,2]`, logs[0].Text)
	assert.Equal(t, "warn", logs[1].Type)
	assert.Empty(t, tw.ConsoleLogs())
}

func TestAlertAndConfirm(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120, WithConfirmResult(false))
	assert.True(t, goja.IsUndefined(tw.mustRun(`alert('hi')`)))
	assert.False(t, tw.mustRun(`confirm('sure?')`).ToBoolean())
}

func TestEvents_CaptureTargetBubble(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		const log = [];
		const outer = document.getElementById('outer');
		const inner = document.getElementById('inner');
		outer.addEventListener('ping', e => log.push('capture:' + e.eventPhase), true);
		outer.addEventListener('ping', e => log.push('bubble:' + e.eventPhase));
		inner.addEventListener('ping', e => log.push('target:' + e.eventPhase + ':' + (e.target === inner)));
		window.addEventListener('ping', e => log.push('window:' + (e.currentTarget === window)));
		const ok = inner.dispatchEvent(new Event('ping', {bubbles: true, cancelable: true}));
		log.join(',') + '|' + ok;
	`)
	assert.Equal(t, "capture:1,target:2:true,bubble:3,window:true|true", result.String())
}

func TestEvents_CancelStopAndOnce(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		const log = [];
		const outer = document.getElementById('outer');
		const inner = document.getElementById('inner');
		outer.addEventListener('go', () => log.push('outer'));
		inner.addEventListener('go', e => { e.preventDefault(); e.stopPropagation(); log.push('first'); });
		inner.addEventListener('go', () => log.push('second'), {once: true});
		const first = inner.dispatchEvent(new Event('go', {bubbles: true, cancelable: true}));
		const second = inner.dispatchEvent(new Event('go', {bubbles: true}));
		log.join(',') + '|' + first + '|' + second;
	`)
	assert.Equal(t, "first,second,first|false|true", result.String())
}

func TestEvents_ListenerExceptionsDoNotStopDispatch(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		const target = new EventTarget();
		const log = [];
		target.addEventListener('x', () => { throw new Error('bad'); });
		target.addEventListener('x', { handleEvent(e) { log.push(e.type); } });
		const handler = () => log.push('removed');
		target.addEventListener('x', handler);
		target.removeEventListener('x', handler);
		target.dispatchEvent(new Event('x'));
		log.join(',');
	`)
	assert.Equal(t, "x", result.String())
}

func TestEvents_DispatchRejectsNonEvents(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)
	_, err := tw.run(`document.body.dispatchEvent({type: 'fake'})`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not of type 'Event'")
}

func TestURL(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		const u = new URL('/path/to?q=1#frag', 'HTTPS://Example.com:443/base');
		[u.href, u.origin, u.protocol, u.host, u.hostname, u.port, u.pathname, u.search, u.hash, String(u), JSON.stringify({u})].join('|');
	`)
	assert.Equal(t, `https://example.com/path/to?q=1#frag|https://example.com|https:|example.com|example.com||/path/to|?q=1|#frag|https://example.com/path/to?q=1#frag|{"u":"https://example.com/path/to?q=1#frag"}`, result.String())

	_, err := tw.run(`new URL('relative/only')`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid URL")
}

func TestDOMParser(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		const parser = new DOMParser();
		const xml = parser.parseFromString('<root><item id="a">1</item></root>', 'application/xml');
		const html = parser.parseFromString('<p class="x">hi</p>', 'text/html');
		const broken = parser.parseFromString('<root><open></root>', 'text/xml');
		[xml instanceof XMLDocument, xml.documentElement.nodeName, xml.getElementsByTagName('item').length,
			html instanceof HTMLDocument, html.querySelector('p.x').textContent,
			broken.documentElement.nodeName].join(',');
	`)
	assert.Equal(t, "true,root,1,true,hi,parsererror", result.String())

	_, err := tw.run(`new DOMParser().parseFromString('', 'text/plain')`)
	assert.Error(t, err)
}
