// browser/dom/types.go
package dom

import "strings"

// Type is the native type of a document node. Types form a hierarchy with
// ordered supertypes; the script binder walks it to find the most specific
// configured class.
type Type struct {
	name   string
	supers []*Type
}

// NewType declares a native type with the given supertypes, most specific first.
func NewType(name string, supers ...*Type) *Type {
	return &Type{name: name, supers: supers}
}

// Name returns the type name used by class metadata `dom` lists.
func (t *Type) Name() string { return t.name }

// Supers returns the declared supertypes.
func (t *Type) Supers() []*Type { return t.supers }

// Lineage returns the type itself followed by its supertypes, depth first in
// declaration order, each type once.
func (t *Type) Lineage() []*Type {
	var out []*Type
	seen := make(map[*Type]bool)
	var walk func(*Type)
	walk = func(cur *Type) {
		if cur == nil || seen[cur] {
			return
		}
		seen[cur] = true
		out = append(out, cur)
		for _, s := range cur.supers {
			walk(s)
		}
	}
	walk(t)
	return out
}

// Is reports whether other appears in t's lineage.
func (t *Type) Is(other *Type) bool {
	for _, l := range t.Lineage() {
		if l == other {
			return true
		}
	}
	return false
}

func (t *Type) String() string { return t.name }

// Built-in native types.
var (
	NodeType                  = NewType("DomNode")
	CharacterDataType         = NewType("DomCharacterData", NodeType)
	TextType                  = NewType("DomText", CharacterDataType)
	CDataSectionType          = NewType("DomCDataSection", TextType)
	CommentType               = NewType("DomComment", CharacterDataType)
	ProcessingInstructionType = NewType("DomProcessingInstruction", NodeType)
	DocumentTypeType          = NewType("DomDocumentType", NodeType)
	DocumentFragmentType      = NewType("DomDocumentFragment", NodeType)
	AttrType                  = NewType("DomAttr", NodeType)
	ElementType               = NewType("DomElement", NodeType)
	DocumentType              = NewType("DomDocument", NodeType)
	HTMLPageType              = NewType("HtmlPage", DocumentType)
	XMLPageType               = NewType("XmlPage", DocumentType)

	HTMLElementType = NewType("HtmlElement", ElementType)
	HTMLUnknownType = NewType("HtmlUnknownElement", HTMLElementType)
)

var htmlTagTypes = map[string]*Type{
	"html":   NewType("HtmlHtml", HTMLElementType),
	"head":   NewType("HtmlHead", HTMLElementType),
	"body":   NewType("HtmlBody", HTMLElementType),
	"title":  NewType("HtmlTitle", HTMLElementType),
	"div":    NewType("HtmlDivision", HTMLElementType),
	"p":      NewType("HtmlParagraph", HTMLElementType),
	"span":   NewType("HtmlSpan", HTMLElementType),
	"a":      NewType("HtmlAnchor", HTMLElementType),
	"img":    NewType("HtmlImage", HTMLElementType),
	"input":  NewType("HtmlInput", HTMLElementType),
	"button": NewType("HtmlButton", HTMLElementType),
	"form":   NewType("HtmlForm", HTMLElementType),
	"option": NewType("HtmlOption", HTMLElementType),
	"script": NewType("HtmlScript", HTMLElementType),
	"link":   NewType("HtmlLink", HTMLElementType),
	"style":  NewType("HtmlStyle", HTMLElementType),
}

// Tags without a dedicated type that still map to the generic HTML element.
var genericHTMLTags = map[string]bool{
	"abbr": true, "address": true, "article": true, "aside": true, "b": true,
	"bdi": true, "bdo": true, "cite": true, "code": true, "dd": true,
	"dfn": true, "dt": true, "em": true, "figcaption": true, "figure": true,
	"footer": true, "header": true, "hgroup": true, "i": true, "kbd": true,
	"main": true, "mark": true, "nav": true, "noscript": true, "rp": true,
	"rt": true, "ruby": true, "s": true, "samp": true, "section": true,
	"small": true, "strong": true, "sub": true, "summary": true, "sup": true,
	"u": true, "var": true, "wbr": true,
}

// TypeForTag maps an HTML tag name to its native type. Custom element names
// (containing a dash) are plain HTML elements; anything else unknown is an
// unknown element.
func TypeForTag(tag string) *Type {
	tag = strings.ToLower(tag)
	if t, ok := htmlTagTypes[tag]; ok {
		return t
	}
	if genericHTMLTags[tag] || strings.Contains(tag, "-") {
		return HTMLElementType
	}
	return HTMLUnknownType
}
