// browser/dom/query.go
package dom

import (
	"errors"
	"fmt"
	"strings"
)

// QuerySelectorAll returns the descendants of n matching a CSS selector, in
// document order.
func (n *Node) QuerySelectorAll(selector string) ([]*Node, error) {
	expr, err := compileSelector(selector, n.doc != nil && n.doc.isXML)
	if err != nil {
		return nil, err
	}
	found, err := n.FindXPath(expr)
	if err != nil {
		var syntax *SyntaxError
		if errors.As(err, &syntax) {
			syntax.Selector = selector
		}
		return nil, err
	}
	matched := make(map[*Node]bool, len(found))
	for _, f := range found {
		matched[f] = true
	}
	// Unions are not guaranteed to come back in document order.
	out := make([]*Node, 0, len(found))
	n.doc.walk(n, func(c *Node) bool {
		if matched[c] {
			out = append(out, c)
		}
		return true
	})
	return out, nil
}

// QuerySelector returns the first match, or nil.
func (n *Node) QuerySelector(selector string) (*Node, error) {
	all, err := n.QuerySelectorAll(selector)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

// compileSelector translates the supported CSS subset into XPath relative
// to the context node: selector groups, descendant and child combinators,
// type, universal, #id, .class, [attr] and [attr=value].
func compileSelector(selector string, caseSensitive bool) (string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return "", &SyntaxError{Selector: selector}
	}
	var groups []string
	for _, group := range strings.Split(selector, ",") {
		xp, err := compileGroup(strings.TrimSpace(group), caseSensitive)
		if err != nil {
			return "", &SyntaxError{Selector: selector, Err: err}
		}
		groups = append(groups, xp)
	}
	return strings.Join(groups, " | "), nil
}

func compileGroup(group string, caseSensitive bool) (string, error) {
	if group == "" {
		return "", fmt.Errorf("empty selector group")
	}
	var b strings.Builder
	b.WriteString(".")
	axis := "//"
	for _, tok := range tokenizeGroup(group) {
		if tok == ">" {
			if axis == "/" {
				return "", fmt.Errorf("dangling combinator")
			}
			axis = "/"
			continue
		}
		step, err := compileCompound(tok, caseSensitive)
		if err != nil {
			return "", err
		}
		b.WriteString(axis)
		b.WriteString(step)
		axis = "//"
	}
	if axis == "/" || b.Len() == 1 {
		return "", fmt.Errorf("dangling combinator")
	}
	return b.String(), nil
}

// tokenizeGroup splits on whitespace and '>' outside attribute brackets.
func tokenizeGroup(group string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range group {
		switch {
		case r == '[':
			depth++
			cur.WriteRune(r)
		case r == ']':
			depth--
			cur.WriteRune(r)
		case depth == 0 && r == '>':
			flush()
			out = append(out, ">")
		case depth == 0 && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func compileCompound(tok string, caseSensitive bool) (string, error) {
	i := 0
	for i < len(tok) && tok[i] != '#' && tok[i] != '.' && tok[i] != '[' {
		i++
	}
	tag := tok[:i]
	if tag == "" {
		tag = "*"
	}
	if tag != "*" {
		if !validName(tag) {
			return "", fmt.Errorf("invalid type selector %q", tag)
		}
		if !caseSensitive {
			tag = strings.ToLower(tag)
		}
	}

	var preds []string
	rest := tok[i:]
	for rest != "" {
		switch rest[0] {
		case '#', '.':
			j := 1
			for j < len(rest) && rest[j] != '#' && rest[j] != '.' && rest[j] != '[' {
				j++
			}
			name := rest[1:j]
			if name == "" {
				return "", fmt.Errorf("empty name in %q", tok)
			}
			lit, err := xpathLiteral(name)
			if err != nil {
				return "", err
			}
			if rest[0] == '#' {
				preds = append(preds, fmt.Sprintf("[@id=%s]", lit))
			} else {
				spaced, _ := xpathLiteral(" " + name + " ")
				preds = append(preds, fmt.Sprintf("[contains(concat(' ', normalize-space(@class), ' '), %s)]", spaced))
			}
			rest = rest[j:]
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return "", fmt.Errorf("unterminated attribute selector in %q", tok)
			}
			pred, err := compileAttribute(rest[1:end])
			if err != nil {
				return "", err
			}
			preds = append(preds, pred)
			rest = rest[end+1:]
		default:
			return "", fmt.Errorf("unexpected %q in %q", rest[0], tok)
		}
	}
	return tag + strings.Join(preds, ""), nil
}

func compileAttribute(body string) (string, error) {
	name, value, hasValue := strings.Cut(body, "=")
	name = strings.TrimSpace(name)
	if !validName(name) {
		return "", fmt.Errorf("invalid attribute name %q", name)
	}
	if !hasValue {
		return fmt.Sprintf("[@%s]", name), nil
	}
	value = strings.TrimSpace(value)
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		value = value[1 : len(value)-1]
	}
	lit, err := xpathLiteral(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("[@%s=%s]", name, lit), nil
}

func xpathLiteral(s string) (string, error) {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'", nil
	case !strings.Contains(s, `"`):
		return `"` + s + `"`, nil
	}
	return "", fmt.Errorf("value %q mixes quote characters", s)
}
