// browser/dom/document.go
package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type attrRef struct {
	owner *Node
	name  string
}

// Document owns a node tree and the identity map from backing html nodes to
// their wrappers.
type Document struct {
	root *Node

	mu    sync.Mutex
	nodes map[*html.Node]*Node
	attrs map[attrRef]*Node

	isXML       bool
	url         string
	contentType string
	charset     string
	readyState  string
}

// DocumentOption configures a new document.
type DocumentOption func(*Document)

// WithURL records the document address.
func WithURL(u string) DocumentOption { return func(d *Document) { d.url = u } }

// WithCharset records the character encoding the document was decoded with.
func WithCharset(name string) DocumentOption { return func(d *Document) { d.charset = name } }

// WithContentType overrides the default content type.
func WithContentType(ct string) DocumentOption { return func(d *Document) { d.contentType = ct } }

func newDocument(isXML bool, raw *html.Node, opts ...DocumentOption) *Document {
	d := &Document{
		nodes:      make(map[*html.Node]*Node),
		attrs:      make(map[attrRef]*Node),
		isXML:      isXML,
		url:        "about:blank",
		charset:    "UTF-8",
		readyState: "complete",
	}
	if isXML {
		d.contentType = "application/xml"
	} else {
		d.contentType = "text/html"
	}
	for _, opt := range opts {
		opt(d)
	}
	typ := HTMLPageType
	if isXML {
		typ = XMLPageType
	}
	d.root = newNode(d, DocumentKind, typ, raw)
	d.nodes[raw] = d.root
	return d
}

// ParseHTML parses already decoded markup into an HTML document.
func ParseHTML(r io.Reader, opts ...DocumentOption) (*Document, error) {
	raw, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: failed to parse html: %w", err)
	}
	return newDocument(false, raw, opts...), nil
}

// NewHTMLDocument returns an empty html/head/body document.
func NewHTMLDocument(opts ...DocumentOption) *Document {
	doc, err := ParseHTML(strings.NewReader("<!DOCTYPE html><html><head></head><body></body></html>"), opts...)
	if err != nil {
		// html.Parse only fails on reader errors.
		panic(err)
	}
	return doc
}

// Node returns the document node.
func (d *Document) Node() *Node { return d.root }

// IsXML reports whether the document uses XML naming rules.
func (d *Document) IsXML() bool { return d.isXML }

// URL returns the document address.
func (d *Document) URL() string { return d.url }

// ContentType returns the document MIME type.
func (d *Document) ContentType() string { return d.contentType }

// Charset returns the decoding charset name.
func (d *Document) Charset() string { return d.charset }

// ReadyState returns the loading state.
func (d *Document) ReadyState() string { return d.readyState }

// SetReadyState updates the loading state.
func (d *Document) SetReadyState(s string) { d.readyState = s }

// Wrap returns the unique wrapper for raw, creating it on first sight.
func (d *Document) Wrap(raw *html.Node) *Node {
	if raw == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.nodes[raw]; ok {
		return n
	}
	kind, typ := d.classify(raw)
	n := newNode(d, kind, typ, raw)
	d.nodes[raw] = n
	return n
}

func (d *Document) register(n *Node) *Node {
	d.mu.Lock()
	d.nodes[n.raw] = n
	d.mu.Unlock()
	return n
}

func (d *Document) classify(raw *html.Node) (Kind, *Type) {
	switch raw.Type {
	case html.ElementNode:
		if d.isXML || (raw.Namespace != "" && raw.Namespace != "html") {
			return ElementKind, ElementType
		}
		return ElementKind, TypeForTag(raw.Data)
	case html.TextNode:
		return TextKind, TextType
	case html.CommentNode:
		return CommentKind, CommentType
	case html.DoctypeNode:
		return DoctypeKind, DocumentTypeType
	case html.DocumentNode:
		return FragmentKind, DocumentFragmentType
	}
	return TextKind, TextType
}

// --- Structure ---

// DocumentElement returns the root element.
func (d *Document) DocumentElement() *Node {
	for _, c := range d.root.ChildNodes() {
		if c.kind == ElementKind {
			return c
		}
	}
	return nil
}

// Doctype returns the document type node, if any.
func (d *Document) Doctype() *Node {
	for _, c := range d.root.ChildNodes() {
		if c.kind == DoctypeKind {
			return c
		}
	}
	return nil
}

func (d *Document) topLevel(tag string) *Node {
	root := d.DocumentElement()
	if root == nil {
		return nil
	}
	for _, c := range root.Children() {
		if strings.EqualFold(c.LocalName(), tag) {
			return c
		}
	}
	return nil
}

// Head returns the head element of an HTML document.
func (d *Document) Head() *Node { return d.topLevel("head") }

// Body returns the body element of an HTML document.
func (d *Document) Body() *Node { return d.topLevel("body") }

// Title returns the whitespace-collapsed text of the first title element.
func (d *Document) Title() string {
	t := d.first(func(n *Node) bool { return strings.EqualFold(n.LocalName(), "title") })
	if t == nil {
		return ""
	}
	text, _ := t.TextContent()
	return strings.Join(strings.Fields(text), " ")
}

// SetTitle replaces the title text, creating a title element in head if needed.
func (d *Document) SetTitle(title string) {
	t := d.first(func(n *Node) bool { return strings.EqualFold(n.LocalName(), "title") })
	if t == nil {
		head := d.Head()
		if head == nil {
			return
		}
		t = d.mustCreateElement("title")
		head.raw.AppendChild(t.raw)
	}
	t.SetTextContent(title)
}

// --- Lookup ---

func (d *Document) walk(from *Node, visit func(*Node) bool) {
	var rec func(*html.Node) bool
	rec = func(r *html.Node) bool {
		for c := r.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				if !visit(d.Wrap(c)) {
					return false
				}
			}
			if !rec(c) {
				return false
			}
		}
		return true
	}
	rec(from.raw)
}

func (d *Document) first(match func(*Node) bool) *Node {
	var found *Node
	d.walk(d.root, func(n *Node) bool {
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// ElementByID returns the first element whose id attribute equals id.
func (d *Document) ElementByID(id string) *Node {
	if id == "" {
		return nil
	}
	return d.first(func(n *Node) bool { return n.AttrOr("id") == id })
}

// ElementsByTagName collects descendants of from with the given tag; "*"
// matches every element.
func (d *Document) ElementsByTagName(from *Node, tag string) []*Node {
	var out []*Node
	d.walk(from, func(n *Node) bool {
		if tag == "*" || (d.isXML && n.LocalName() == tag) || (!d.isXML && strings.EqualFold(n.LocalName(), tag)) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// ElementsByClassName collects descendants of from carrying every listed class.
func (d *Document) ElementsByClassName(from *Node, classes string) []*Node {
	want := strings.Fields(classes)
	if len(want) == 0 {
		return nil
	}
	var out []*Node
	d.walk(from, func(n *Node) bool {
		have := make(map[string]bool)
		for _, c := range strings.Fields(n.AttrOr("class")) {
			have[c] = true
		}
		for _, w := range want {
			if !have[w] {
				return true
			}
		}
		out = append(out, n)
		return true
	})
	return out
}

// --- Factories ---

// CreateElement creates a detached element of the type registered for tag.
func (d *Document) CreateElement(tag string) (*Node, error) {
	if !validName(tag) {
		return nil, &InvalidCharacterError{Name: tag}
	}
	if d.isXML {
		return d.CreateElementWithType(tag, ElementType)
	}
	tag = strings.ToLower(tag)
	return d.CreateElementWithType(tag, TypeForTag(tag))
}

// CreateElementWithType creates a detached element with an explicit native type.
func (d *Document) CreateElementWithType(tag string, typ *Type) (*Node, error) {
	if !validName(tag) {
		return nil, &InvalidCharacterError{Name: tag}
	}
	raw := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	return d.register(newNode(d, ElementKind, typ, raw)), nil
}

func (d *Document) mustCreateElement(tag string) *Node {
	n, err := d.CreateElement(tag)
	if err != nil {
		panic(err)
	}
	return n
}

// CreateTextNode creates a detached text node.
func (d *Document) CreateTextNode(data string) *Node {
	raw := &html.Node{Type: html.TextNode, Data: data}
	return d.register(newNode(d, TextKind, TextType, raw))
}

// CreateCDATASection creates a detached CDATA section.
func (d *Document) CreateCDATASection(data string) *Node {
	raw := &html.Node{Type: html.TextNode, Data: data}
	return d.register(newNode(d, CDataSectionKind, CDataSectionType, raw))
}

// CreateComment creates a detached comment.
func (d *Document) CreateComment(data string) *Node {
	raw := &html.Node{Type: html.CommentNode, Data: data}
	return d.register(newNode(d, CommentKind, CommentType, raw))
}

// CreateDocumentFragment creates an empty fragment.
func (d *Document) CreateDocumentFragment() *Node {
	raw := &html.Node{Type: html.DocumentNode}
	return d.register(newNode(d, FragmentKind, DocumentFragmentType, raw))
}

// CreateAttribute creates a detached attribute node with an empty value.
func (d *Document) CreateAttribute(name string) *Node {
	if !d.isXML {
		name = strings.ToLower(name)
	}
	a := newNode(d, AttributeKind, AttrType, nil)
	a.attrName = name
	return a
}

func (d *Document) attributeNode(owner *Node, name string) *Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	ref := attrRef{owner: owner, name: name}
	if a, ok := d.attrs[ref]; ok {
		return a
	}
	a := newNode(d, AttributeKind, AttrType, nil)
	a.owner = owner
	a.attrName = name
	d.attrs[ref] = a
	return a
}

// cloneInto copies src (from any document) into d, preserving native types.
func (d *Document) cloneInto(src *Node, deep bool) *Node {
	raw := &html.Node{
		Type:      src.raw.Type,
		DataAtom:  src.raw.DataAtom,
		Data:      src.raw.Data,
		Namespace: src.raw.Namespace,
	}
	if len(src.raw.Attr) > 0 {
		raw.Attr = append([]html.Attribute(nil), src.raw.Attr...)
	}
	kind, typ := src.kind, src.typ
	if kind == DocumentKind {
		kind, typ = FragmentKind, DocumentFragmentType
	}
	n := d.register(newNode(d, kind, typ, raw))
	if deep {
		for c := src.raw.FirstChild; c != nil; c = c.NextSibling {
			child := d.cloneInto(src.doc.Wrap(c), true)
			raw.AppendChild(child.raw)
		}
	}
	return n
}

// adopt moves the wrappers of a detached subtree into d.
func (d *Document) adopt(n *Node) {
	if n.doc == d {
		return
	}
	from := n.doc
	var rec func(*Node)
	rec = func(cur *Node) {
		from.mu.Lock()
		delete(from.nodes, cur.raw)
		from.mu.Unlock()
		cur.doc = d
		d.register(cur)
		for c := cur.raw.FirstChild; c != nil; c = c.NextSibling {
			rec(from.Wrap(c))
		}
	}
	rec(n)
}

// validName accepts the XML Name production restricted to what scripts
// realistically pass.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case unicode.IsLetter(r), r == '_', r == ':':
		case i > 0 && (unicode.IsDigit(r) || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
