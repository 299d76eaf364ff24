// browser/dom/xml.go
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
)

// ParseXML parses already decoded XML into a document with case-preserving
// names. Processing instructions are dropped.
func ParseXML(r io.Reader, opts ...DocumentOption) (*Document, error) {
	src := etree.NewDocument()
	// Input is already decoded; the prolog's encoding is informational.
	src.ReadSettings.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	src.ReadSettings.PreserveCData = true
	if _, err := src.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("dom: failed to parse xml: %w", err)
	}
	if src.Root() == nil {
		return nil, fmt.Errorf("dom: xml document has no root element")
	}

	raw := &html.Node{Type: html.DocumentNode}
	doc := newDocument(true, raw, opts...)
	for _, tok := range src.Child {
		switch t := tok.(type) {
		case *etree.Element:
			raw.AppendChild(doc.importXML(t))
		case *etree.Comment:
			raw.AppendChild(&html.Node{Type: html.CommentNode, Data: t.Data})
		case *etree.Directive:
			if name, ok := doctypeName(t.Data); ok {
				raw.AppendChild(&html.Node{Type: html.DoctypeNode, Data: name})
			}
		}
	}
	return doc, nil
}

func (d *Document) importXML(el *etree.Element) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: el.FullTag()}
	for _, a := range el.Attr {
		n.Attr = append(n.Attr, html.Attribute{Key: a.FullKey(), Val: a.Value})
	}
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.Element:
			n.AppendChild(d.importXML(t))
		case *etree.CharData:
			c := &html.Node{Type: html.TextNode, Data: t.Data}
			if t.IsCData() {
				d.register(newNode(d, CDataSectionKind, CDataSectionType, c))
			}
			n.AppendChild(c)
		case *etree.Comment:
			n.AppendChild(&html.Node{Type: html.CommentNode, Data: t.Data})
		}
	}
	return n
}

func doctypeName(directive string) (string, bool) {
	fields := strings.Fields(directive)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "DOCTYPE") {
		return "", false
	}
	return strings.TrimSuffix(fields[1], "["), true
}
