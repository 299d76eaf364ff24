// browser/dom/xpath.go
package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// XPathOf generates an XPath expression that selects n from its document.
// The nearest id-bearing ancestor is used as an anchor.
func XPathOf(n *Node) string {
	if n == nil || n.raw == nil {
		return ""
	}

	var path []string
	for cur := n.raw; cur != nil && cur.Type != html.DocumentNode; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		tag := cur.Data
		if n.doc == nil || !n.doc.isXML {
			tag = strings.ToLower(tag)
		}

		if id := htmlquery.SelectAttr(cur, "id"); id != "" && !strings.Contains(id, "'") {
			path = append(path, fmt.Sprintf(`//*[@id='%s']`, id))
			break
		}

		// XPath indices are 1-based.
		index := 1
		for prev := cur.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.EqualFold(prev.Data, tag) {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(path) == 0 {
		return "/"
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	xpath := strings.Join(path, "/")
	if !strings.HasPrefix(xpath, "//*[@id=") {
		xpath = "/" + xpath
	}
	return xpath
}

// FindXPath evaluates an XPath expression against the subtree rooted at n.
func (n *Node) FindXPath(expr string) ([]*Node, error) {
	found, err := htmlquery.QueryAll(n.raw, expr)
	if err != nil {
		return nil, &SyntaxError{Selector: expr, Err: err}
	}
	out := make([]*Node, 0, len(found))
	for _, f := range found {
		out = append(out, n.doc.Wrap(f))
	}
	return out, nil
}
