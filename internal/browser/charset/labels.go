package charset

import (
	"strings"

	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// Lookup resolves a charset label to an encoding and its preferred MIME
// name. IANA names win so that a declared ISO-8859-1 stays ISO-8859-1
// instead of being widened to windows-1252; WHATWG labels cover the rest.
func Lookup(label string) (encoding.Encoding, string, bool) {
	label = strings.Trim(strings.TrimSpace(label), `"'`)
	if label == "" {
		return nil, "", false
	}
	if enc, err := ianaindex.IANA.Encoding(label); err == nil && enc != nil {
		return enc, canonicalName(enc, label), true
	}
	if enc, name := htmlcharset.Lookup(label); enc != nil {
		return enc, canonicalName(enc, name), true
	}
	return nil, "", false
}

func canonicalName(enc encoding.Encoding, fallback string) string {
	if name, err := ianaindex.MIME.Name(enc); err == nil && name != "" {
		return name
	}
	if name, err := ianaindex.IANA.Name(enc); err == nil && name != "" {
		return name
	}
	return strings.ToUpper(fallback)
}
