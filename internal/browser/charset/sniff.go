package charset

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// prescanLimit is how far into a document the meta prescan looks.
const prescanLimit = 1024

var xmlEncoding = regexp.MustCompile(`^<\?xml[^>]*?\sencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)

// SniffDeclaration returns the charset label declared inside the content,
// or "" when there is none. Scripts and plain text have no in-content
// declaration.
func SniffDeclaration(k Kind, data []byte) string {
	_, _, bomLen := sniffBOM(data)
	data = data[bomLen:]
	switch k {
	case KindDocument:
		return prescanMeta(data)
	case KindXML:
		if m := xmlEncoding.FindSubmatch(data); m != nil {
			return string(m[1])
		}
	case KindStylesheet:
		return cssCharset(data)
	}
	return ""
}

// cssCharset matches the exact byte sequence `@charset "name";` at offset 0.
func cssCharset(data []byte) string {
	const prefix = `@charset "`
	if !bytes.HasPrefix(data, []byte(prefix)) {
		return ""
	}
	rest := data[len(prefix):]
	end := bytes.IndexByte(rest, '"')
	if end <= 0 || end+1 >= len(rest) || rest[end+1] != ';' {
		return ""
	}
	return string(rest[:end])
}

func prescanMeta(data []byte) string {
	if len(data) > prescanLimit {
		data = data[:prescanLimit]
	}
	z := html.NewTokenizer(bytes.NewReader(data))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !bytes.EqualFold(name, []byte("meta")) || !hasAttr {
				continue
			}
			var charset, content string
			var pragma bool
			for {
				key, val, more := z.TagAttr()
				switch strings.ToLower(string(key)) {
				case "charset":
					charset = string(val)
				case "content":
					content = string(val)
				case "http-equiv":
					pragma = strings.EqualFold(string(val), "content-type")
				}
				if !more {
					break
				}
			}
			if charset != "" {
				return strings.TrimSpace(charset)
			}
			if pragma && content != "" {
				if cs := contentCharset(content); cs != "" {
					return cs
				}
			}
		}
	}
}

// contentCharset extracts charset=... from a meta content attribute.
func contentCharset(content string) string {
	lower := strings.ToLower(content)
	i := strings.Index(lower, "charset")
	if i < 0 {
		return ""
	}
	rest := strings.TrimLeft(content[i+len("charset"):], " \t\n\f\r")
	if !strings.HasPrefix(rest, "=") {
		return ""
	}
	rest = strings.TrimLeft(rest[1:], " \t\n\f\r")
	if rest == "" {
		return ""
	}
	if q := rest[0]; q == '"' || q == '\'' {
		if end := strings.IndexByte(rest[1:], q); end >= 0 {
			return rest[1 : end+1]
		}
		return ""
	}
	if end := strings.IndexAny(rest, " \t\n\f\r;"); end >= 0 {
		return rest[:end]
	}
	return rest
}
