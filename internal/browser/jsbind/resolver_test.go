// internal/browser/jsbind/resolver_test.go
package jsbind

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/domscript/internal/browser/profile"
)

func TestResolver_ConstantsFromAncestors(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		[Text.ELEMENT_NODE, HTMLDivElement.TEXT_NODE, 'COMMENT_NODE' in Text, Text.NO_SUCH_CONSTANT,
			Node.DOCUMENT_NODE, XMLHttpRequest.DONE].join(',');
	`)
	assert.Equal(t, "1,3,true,,9,4", result.String())

	res, ok := tw.Realm().Resolver("Text")
	require.True(t, ok)
	v, ok := res.GetMember("COMMENT_NODE")
	require.True(t, ok)
	assert.Equal(t, int64(8), v.ToInteger())
	assert.True(t, res.HasMember("prototype"))
	assert.Contains(t, res.ListMembers(), "ELEMENT_NODE")
	assert.Contains(t, res.ListMembers(), "prototype")

	_, ok = res.GetMember("NO_SUCH_CONSTANT")
	assert.False(t, ok)
}

func TestResolver_ConstantsFollowProfile(t *testing.T) {
	chrome := setupWindow(t, basicPage, profile.Chrome120)
	assert.Equal(t, "undefined", chrome.mustRun(`typeof Text.ENTITY_REFERENCE_NODE`).String())

	ie := setupWindow(t, basicPage, profile.IE11)
	assert.Equal(t, int64(5), ie.mustRun(`Text.ENTITY_REFERENCE_NODE`).ToInteger())
}

func TestResolver_StopsAtUnconfiguredAncestor(t *testing.T) {
	const catalog = `
classes:
  - name: Base
    constants:
      - { name: DEEP, value: 7 }
  - name: Middle
    extends: Base
    when: "ie"
  - name: Leaf
    extends: Middle
    parents:
      - { when: "!ie", name: Base }
`
	chrome := customWindow(t, catalog, profile.Chrome120, nil)
	assert.Equal(t, "undefined", chrome.mustRun(`typeof Leaf.DEEP`).String())
	assert.True(t, chrome.mustRun(`Object.getPrototypeOf(Leaf.prototype) === Base.prototype`).ToBoolean())

	ie := customWindow(t, catalog, profile.IE11, nil)
	assert.Equal(t, int64(7), ie.mustRun(`Leaf.DEEP`).ToInteger())
	assert.True(t, ie.mustRun(`Object.getPrototypeOf(Leaf.prototype) === Middle.prototype`).ToBoolean())
}

func TestResolver_WebkitURLReportsURLName(t *testing.T) {
	chrome := setupWindow(t, basicPage, profile.Chrome120)
	result := chrome.mustRun(`
		const u = new webkitURL('http://example.com/a');
		[webkitURL.name, URL.name, u instanceof URL, webkitURL.prototype === URL.prototype].join(',');
	`)
	assert.Equal(t, "URL,URL,true,true", result.String())

	firefox := setupWindow(t, basicPage, profile.Firefox121)
	assert.Equal(t, "undefined", firefox.mustRun(`typeof webkitURL`).String())
}

func TestResolver_ActiveXObjectNameHidden(t *testing.T) {
	ie := setupWindow(t, basicPage, profile.IE11)
	result := ie.mustRun(`[typeof ActiveXObject, 'name' in ActiveXObject, typeof URL].join(',')`)
	assert.Equal(t, "function,false,undefined", result.String())

	res, ok := ie.Realm().Resolver("ActiveXObject")
	require.True(t, ok)
	_, ok = res.GetMember("name")
	assert.False(t, ok)
	assert.NotContains(t, res.ListMembers(), "name")

	chrome := setupWindow(t, basicPage, profile.Chrome120)
	assert.Equal(t, "undefined", chrome.mustRun(`typeof ActiveXObject`).String())
}

func TestResolver_DoubleBindingPrototype(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Chrome120)

	result := tw.mustRun(`
		[Image.prototype === HTMLImageElement.prototype, Option.prototype === HTMLOptionElement.prototype,
			Image.name, Image() instanceof HTMLImageElement, Text('x').data].join(',');
	`)
	assert.Equal(t, "true,true,Image,true,x", result.String())

	res, ok := tw.Realm().Resolver("Image")
	require.True(t, ok)
	v, ok := res.GetMember("ELEMENT_NODE")
	require.True(t, ok)
	assert.Equal(t, int64(1), v.ToInteger())

	// "prototype" is always the constructor's own, never an ancestor constant.
	proto, ok := res.GetMember("prototype")
	require.True(t, ok)
	assert.True(t, proto.SameAs(tw.mustRun(`HTMLImageElement.prototype`)))

	ie := setupWindow(t, basicPage, profile.IE11)
	ieRes, ok := ie.Realm().Resolver("ActiveXObject")
	require.True(t, ok)
	proto, ok = ieRes.GetMember("prototype")
	require.True(t, ok)
	_, isObject := proto.(*goja.Object)
	assert.True(t, isObject)
}

func TestResolveBrowserVersion(t *testing.T) {
	tw := setupWindow(t, basicPage, profile.Firefox115)
	p := tw.ProjectionFor(tw.Document().Body())

	assert.Same(t, profile.Firefox115, resolveBrowserVersion(p))
	assert.Same(t, tw.Window, windowOf(p))
	assert.Same(t, profile.Default(), resolveBrowserVersion(nil))
}
