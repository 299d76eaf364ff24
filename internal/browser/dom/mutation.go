// browser/dom/mutation.go
package dom

import (
	"slices"

	"golang.org/x/net/html"
)

// AppendChild inserts child as the last child of n.
func (n *Node) AppendChild(child *Node) (*Node, error) {
	return n.insert("appendChild", child, nil, nil)
}

// InsertBefore inserts child before ref; a nil ref appends.
func (n *Node) InsertBefore(child, ref *Node) (*Node, error) {
	return n.insert("insertBefore", child, ref, nil)
}

// ReplaceChild swaps old for child and returns old.
func (n *Node) ReplaceChild(child, old *Node) (*Node, error) {
	if old == nil || old.Parent() != n || old.synthParent != nil {
		return nil, &NotFoundError{Op: "replaceChild", Reason: "node to replace is not a child"}
	}
	if child == old {
		return old, nil
	}
	ref := old.NextSibling()
	if ref == child {
		ref = child.NextSibling()
	}
	if _, err := n.insert("replaceChild", child, ref, old); err != nil {
		return nil, err
	}
	n.raw.RemoveChild(old.raw)
	return old, nil
}

// RemoveChild detaches child from n.
func (n *Node) RemoveChild(child *Node) (*Node, error) {
	if child == nil || child.raw == nil || child.synthParent != nil || child.Parent() != n {
		return nil, &NotFoundError{Op: "removeChild", Reason: "node is not a child"}
	}
	n.raw.RemoveChild(child.raw)
	return child, nil
}

// Remove detaches n from its parent, if any.
func (n *Node) Remove() {
	if n.raw != nil && n.raw.Parent != nil && n.synthParent == nil {
		n.raw.Parent.RemoveChild(n.raw)
	}
}

func (n *Node) insert(op string, child, ref, replacing *Node) (*Node, error) {
	if err := n.validateInsert(op, child, ref, replacing); err != nil {
		return nil, err
	}

	var incoming []*Node
	if child.kind == FragmentKind {
		incoming = child.ChildNodes()
	} else {
		incoming = []*Node{child}
	}
	// A reference that is itself being moved is replaced by its next
	// sibling outside the moved set, resolved before anything is detached.
	for ref != nil && slices.Contains(incoming, ref) {
		ref = ref.NextSibling()
	}

	var refRaw *html.Node
	if ref != nil {
		refRaw = ref.raw
	}
	for _, c := range incoming {
		if c.raw.Parent != nil {
			c.raw.Parent.RemoveChild(c.raw)
		}
		n.doc.adopt(c)
		if refRaw != nil {
			n.raw.InsertBefore(c.raw, refRaw)
		} else {
			n.raw.AppendChild(c.raw)
		}
	}
	return child, nil
}

func (n *Node) validateInsert(op string, child, ref, replacing *Node) error {
	switch n.kind {
	case ElementKind, DocumentKind, FragmentKind:
	default:
		return &HierarchyRequestError{Op: op, Reason: "parent cannot have children"}
	}
	if child == nil || child.raw == nil {
		return &HierarchyRequestError{Op: op, Reason: "node cannot be inserted"}
	}
	switch child.kind {
	case DocumentKind, AttributeKind:
		return &HierarchyRequestError{Op: op, Reason: "node cannot be inserted"}
	}
	if child.synthParent != nil {
		return &HierarchyRequestError{Op: op, Reason: "attribute text cannot be moved"}
	}
	if child.Contains(n) {
		return &HierarchyRequestError{Op: op, Reason: "new child contains the parent"}
	}
	if ref != nil && (ref.Parent() != n || ref.synthParent != nil) {
		return &NotFoundError{Op: op, Reason: "reference node is not a child"}
	}
	if n.kind == DocumentKind {
		return n.validateDocumentChildren(op, child, replacing)
	}
	if child.kind == DoctypeKind {
		return &HierarchyRequestError{Op: op, Reason: "doctype only belongs in a document"}
	}
	return nil
}

// validateDocumentChildren enforces at most one element and one doctype
// under a document, and no text at all.
func (n *Node) validateDocumentChildren(op string, child, replacing *Node) error {
	var incoming []*Node
	if child.kind == FragmentKind {
		incoming = child.ChildNodes()
	} else {
		incoming = []*Node{child}
	}
	elements, doctypes := 0, 0
	for _, c := range incoming {
		switch c.kind {
		case TextKind, CDataSectionKind:
			return &HierarchyRequestError{Op: op, Reason: "text cannot be a child of a document"}
		case ElementKind:
			elements++
		case DoctypeKind:
			doctypes++
		}
	}
	for _, c := range n.ChildNodes() {
		if c == replacing || c == child {
			continue
		}
		switch c.kind {
		case ElementKind:
			elements++
		case DoctypeKind:
			doctypes++
		}
	}
	if elements > 1 {
		return &HierarchyRequestError{Op: op, Reason: "document can have only one element child"}
	}
	if doctypes > 1 {
		return &HierarchyRequestError{Op: op, Reason: "document can have only one doctype"}
	}
	return nil
}
