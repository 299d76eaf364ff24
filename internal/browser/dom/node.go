// browser/dom/node.go
package dom

import (
	"bytes"
	"strings"
	"sync/atomic"

	"golang.org/x/net/html"
)

// NodeID is a stable identifier, unique within the process.
type NodeID uint64

// Kind mirrors the DOM nodeType numbering.
type Kind int

const (
	ElementKind               Kind = 1
	AttributeKind             Kind = 2
	TextKind                  Kind = 3
	CDataSectionKind          Kind = 4
	ProcessingInstructionKind Kind = 7
	CommentKind               Kind = 8
	DocumentKind              Kind = 9
	DoctypeKind               Kind = 10
	FragmentKind              Kind = 11
)

var nodeIDs atomic.Uint64

// Node wraps an x/net/html node with identity, a native type and a slot for
// the script projection. Attribute nodes have no backing html.Node.
type Node struct {
	id   NodeID
	kind Kind
	typ  *Type
	raw  *html.Node
	doc  *Document

	// attribute nodes
	owner    *Node
	attrName string
	attrVal  string
	attrText *Node

	// synthetic children point back at their attribute
	synthParent *Node

	slot atomic.Uint64
}

func newNode(doc *Document, kind Kind, typ *Type, raw *html.Node) *Node {
	return &Node{
		id:   NodeID(nodeIDs.Add(1)),
		kind: kind,
		typ:  typ,
		raw:  raw,
		doc:  doc,
	}
}

// ID returns the node's stable identifier.
func (n *Node) ID() NodeID { return n.id }

// Kind returns the DOM node kind.
func (n *Node) Kind() Kind { return n.kind }

// Type returns the native type.
func (n *Node) Type() *Type { return n.typ }

// Raw exposes the backing html.Node (nil for attributes).
func (n *Node) Raw() *html.Node { return n.raw }

// Document returns the owning document.
func (n *Node) Document() *Document { return n.doc }

// ScriptSlot returns the script projection slot; zero means empty.
func (n *Node) ScriptSlot() uint64 { return n.slot.Load() }

// CompareAndSwapScriptSlot installs a projection slot value atomically.
func (n *Node) CompareAndSwapScriptSlot(old, new uint64) bool {
	return n.slot.CompareAndSwap(old, new)
}

// --- Navigation ---

func (n *Node) wrap(raw *html.Node) *Node {
	if raw == nil {
		return nil
	}
	return n.doc.Wrap(raw)
}

// Parent returns the parent node, or nil.
func (n *Node) Parent() *Node {
	if n.synthParent != nil {
		return n.synthParent
	}
	if n.raw == nil {
		return nil
	}
	return n.wrap(n.raw.Parent)
}

// FirstChild returns the first child, or nil.
func (n *Node) FirstChild() *Node {
	if n.kind == AttributeKind {
		return n.attrTextChild()
	}
	if n.raw == nil {
		return nil
	}
	return n.wrap(n.raw.FirstChild)
}

// LastChild returns the last child, or nil.
func (n *Node) LastChild() *Node {
	if n.kind == AttributeKind {
		return n.attrTextChild()
	}
	if n.raw == nil {
		return nil
	}
	return n.wrap(n.raw.LastChild)
}

// NextSibling returns the following sibling, or nil.
func (n *Node) NextSibling() *Node {
	if n.raw == nil || n.synthParent != nil {
		return nil
	}
	return n.wrap(n.raw.NextSibling)
}

// PrevSibling returns the preceding sibling, or nil.
func (n *Node) PrevSibling() *Node {
	if n.raw == nil || n.synthParent != nil {
		return nil
	}
	return n.wrap(n.raw.PrevSibling)
}

// ChildNodes returns the children in document order.
func (n *Node) ChildNodes() []*Node {
	if n.kind == AttributeKind {
		if t := n.attrTextChild(); t != nil {
			return []*Node{t}
		}
		return nil
	}
	if n.raw == nil {
		return nil
	}
	var out []*Node
	for c := n.raw.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, n.wrap(c))
	}
	return out
}

// Children returns the element children.
func (n *Node) Children() []*Node {
	var out []*Node
	for _, c := range n.ChildNodes() {
		if c.kind == ElementKind {
			out = append(out, c)
		}
	}
	return out
}

// HasChildNodes reports whether the node has any children.
func (n *Node) HasChildNodes() bool { return n.FirstChild() != nil }

// Contains reports whether other is n or a descendant of n.
func (n *Node) Contains(other *Node) bool {
	for cur := other; cur != nil; cur = cur.Parent() {
		if cur == n {
			return true
		}
	}
	return false
}

// ParentElement returns the parent when it is an element.
func (n *Node) ParentElement() *Node {
	if p := n.Parent(); p != nil && p.kind == ElementKind {
		return p
	}
	return nil
}

// --- Names and values ---

// NodeName follows the DOM nodeName rules.
func (n *Node) NodeName() string {
	switch n.kind {
	case ElementKind:
		return n.TagName()
	case AttributeKind:
		return n.attrName
	case TextKind:
		return "#text"
	case CDataSectionKind:
		return "#cdata-section"
	case CommentKind:
		return "#comment"
	case DocumentKind:
		return "#document"
	case FragmentKind:
		return "#document-fragment"
	case DoctypeKind:
		return n.raw.Data
	case ProcessingInstructionKind:
		return n.raw.Data
	}
	return ""
}

// TagName returns the element name, upper-cased for HTML documents.
func (n *Node) TagName() string {
	if n.kind != ElementKind {
		return ""
	}
	if n.doc != nil && n.doc.isXML {
		return n.raw.Data
	}
	return strings.ToUpper(n.raw.Data)
}

// LocalName returns the element name as stored.
func (n *Node) LocalName() string {
	if n.kind != ElementKind {
		return ""
	}
	return n.raw.Data
}

// NodeValue returns the value and whether the node kind has one.
func (n *Node) NodeValue() (string, bool) {
	switch n.kind {
	case TextKind, CDataSectionKind, CommentKind, ProcessingInstructionKind:
		return n.raw.Data, true
	case AttributeKind:
		return n.AttrValue(), true
	}
	return "", false
}

// SetNodeValue sets the value for kinds that have one; others ignore it.
func (n *Node) SetNodeValue(v string) {
	switch n.kind {
	case TextKind, CDataSectionKind, CommentKind, ProcessingInstructionKind:
		n.raw.Data = v
		n.syncAttrFromText()
	case AttributeKind:
		n.SetAttrValue(v)
	}
}

// Data returns character data.
func (n *Node) Data() string {
	v, _ := n.NodeValue()
	return v
}

// TextContent follows the DOM textContent rules.
func (n *Node) TextContent() (string, bool) {
	switch n.kind {
	case DocumentKind, DoctypeKind:
		return "", false
	case TextKind, CDataSectionKind, CommentKind, ProcessingInstructionKind, AttributeKind:
		v, _ := n.NodeValue()
		return v, true
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(r *html.Node) {
		for c := r.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode, html.DocumentNode:
				walk(c)
			}
		}
	}
	walk(n.raw)
	return b.String(), true
}

// SetTextContent replaces the children with a single text node.
func (n *Node) SetTextContent(v string) {
	switch n.kind {
	case DocumentKind, DoctypeKind:
		return
	case TextKind, CDataSectionKind, CommentKind, ProcessingInstructionKind, AttributeKind:
		n.SetNodeValue(v)
		return
	}
	n.removeAllChildren()
	if v != "" {
		t := n.doc.CreateTextNode(v)
		n.raw.AppendChild(t.raw)
	}
}

func (n *Node) removeAllChildren() {
	for c := n.raw.FirstChild; c != nil; {
		next := c.NextSibling
		n.raw.RemoveChild(c)
		c = next
	}
}

// --- Attributes ---

// Attr returns an attribute value and whether it is present.
func (n *Node) Attr(name string) (string, bool) {
	if n.kind != ElementKind {
		return "", false
	}
	key := n.attrKey(name)
	for _, a := range n.raw.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or "".
func (n *Node) AttrOr(name string) string {
	v, _ := n.Attr(name)
	return v
}

// SetAttr sets or adds an attribute.
func (n *Node) SetAttr(name, value string) {
	if n.kind != ElementKind {
		return
	}
	key := n.attrKey(name)
	for i, a := range n.raw.Attr {
		if a.Key == key {
			n.raw.Attr[i].Val = value
			return
		}
	}
	n.raw.Attr = append(n.raw.Attr, html.Attribute{Key: key, Val: value})
}

// RemoveAttr deletes an attribute if present.
func (n *Node) RemoveAttr(name string) {
	if n.kind != ElementKind {
		return
	}
	key := n.attrKey(name)
	for i, a := range n.raw.Attr {
		if a.Key == key {
			n.raw.Attr = append(n.raw.Attr[:i], n.raw.Attr[i+1:]...)
			return
		}
	}
}

// HasAttr reports whether the attribute is present.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.Attr(name)
	return ok
}

// AttributeNode returns the attribute as a node, or nil if absent. The same
// node is returned for repeated calls.
func (n *Node) AttributeNode(name string) *Node {
	if !n.HasAttr(name) {
		return nil
	}
	return n.doc.attributeNode(n, n.attrKey(name))
}

func (n *Node) attrKey(name string) string {
	if n.doc != nil && n.doc.isXML {
		return name
	}
	return strings.ToLower(name)
}

// AttrName returns the name of an attribute node.
func (n *Node) AttrName() string { return n.attrName }

// OwnerElement returns the element an attribute node belongs to.
func (n *Node) OwnerElement() *Node { return n.owner }

// AttrValue returns the value of an attribute node.
func (n *Node) AttrValue() string {
	if n.owner != nil {
		return n.owner.AttrOr(n.attrName)
	}
	return n.attrVal
}

// SetAttrValue updates an attribute node and its owner.
func (n *Node) SetAttrValue(v string) {
	if n.owner != nil {
		n.owner.SetAttr(n.attrName, v)
	} else {
		n.attrVal = v
	}
	if n.attrText != nil {
		n.attrText.raw.Data = v
	}
}

// attrTextChild returns the synthetic text child of an attribute, kept in
// step with the current value. Empty values have no child.
func (n *Node) attrTextChild() *Node {
	v := n.AttrValue()
	if v == "" {
		return nil
	}
	if n.attrText == nil {
		t := newNode(n.doc, TextKind, TextType, &html.Node{Type: html.TextNode, Data: v})
		t.synthParent = n
		n.attrText = t
	}
	n.attrText.raw.Data = v
	return n.attrText
}

func (n *Node) syncAttrFromText() {
	if n.synthParent != nil && n.synthParent.kind == AttributeKind {
		attr := n.synthParent
		if attr.owner != nil {
			attr.owner.SetAttr(attr.attrName, n.raw.Data)
		} else {
			attr.attrVal = n.raw.Data
		}
	}
}

// --- Serialization ---

// InnerHTML renders the children.
func (n *Node) InnerHTML() string {
	if n.raw == nil {
		return ""
	}
	var buf bytes.Buffer
	for c := n.raw.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// OuterHTML renders the node itself.
func (n *Node) OuterHTML() string {
	if n.raw == nil {
		return ""
	}
	var buf bytes.Buffer
	_ = html.Render(&buf, n.raw)
	return buf.String()
}

// SetInnerHTML parses markup in the context of n and replaces its children.
func (n *Node) SetInnerHTML(markup string) error {
	if n.kind != ElementKind && n.kind != FragmentKind {
		return &HierarchyRequestError{Op: "innerHTML", Reason: "node cannot hold markup"}
	}
	context := n.raw
	if n.kind == FragmentKind {
		context = &html.Node{Type: html.ElementNode, Data: "body"}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return err
	}
	n.removeAllChildren()
	for _, c := range nodes {
		n.raw.AppendChild(c)
	}
	return nil
}

// --- Cloning ---

// Clone copies the node (and its subtree when deep). Native types carry over.
func (n *Node) Clone(deep bool) *Node {
	if n.kind == AttributeKind {
		a := n.doc.CreateAttribute(n.attrName)
		a.attrVal = n.AttrValue()
		return a
	}
	return n.doc.cloneInto(n, deep)
}

// --- Doctype ---

// PublicID returns a doctype's public identifier.
func (n *Node) PublicID() string { return n.doctypeField("public") }

// SystemID returns a doctype's system identifier.
func (n *Node) SystemID() string { return n.doctypeField("system") }

func (n *Node) doctypeField(key string) string {
	if n.kind != DoctypeKind {
		return ""
	}
	for _, a := range n.raw.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
