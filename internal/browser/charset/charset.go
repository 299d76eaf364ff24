// browser/charset/charset.go
package charset

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Kind identifies the resource being decoded. Each kind has its own
// precedence between the available charset sources.
type Kind int

const (
	KindDocument Kind = iota
	KindScript
	KindStylesheet
	KindXML
	KindText
)

var kindNames = map[Kind]string{
	KindDocument:   "document",
	KindScript:     "script",
	KindStylesheet: "stylesheet",
	KindXML:        "xml",
	KindText:       "text",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a kind name back to its value.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown resource kind %q", s)
}

// Source records where a decision came from.
type Source int

const (
	SourceDefault Source = iota
	SourceAttribute
	SourceHeader
	SourceBOM
	SourceDeclaration
)

func (s Source) String() string {
	switch s {
	case SourceAttribute:
		return "attribute"
	case SourceHeader:
		return "header"
	case SourceBOM:
		return "bom"
	case SourceDeclaration:
		return "declaration"
	}
	return "default"
}

// Input carries every candidate source for one resource.
type Input struct {
	Kind Kind
	// HeaderCharset is the charset parameter of the transport Content-Type.
	HeaderCharset string
	// Data is the raw resource body; only its prefix is inspected.
	Data []byte
	// Declaration is the in-content declaration. Sniffed from Data when empty.
	Declaration string
	// Attribute is an explicit override on the referencing construct.
	Attribute string
	// Default is used when no other source yields a known encoding.
	Default string
}

// Decision is the resolved encoding for one resource.
type Decision struct {
	Encoding  encoding.Encoding
	Name      string
	Source    Source
	BOMLength int
}

var precedence = map[Kind][]Source{
	KindDocument:   {SourceAttribute, SourceHeader, SourceBOM, SourceDeclaration},
	KindScript:     {SourceAttribute, SourceHeader, SourceBOM},
	KindStylesheet: {SourceBOM, SourceDeclaration, SourceHeader, SourceAttribute},
	KindXML:        {SourceAttribute, SourceHeader, SourceBOM, SourceDeclaration},
	KindText:       {SourceAttribute, SourceHeader, SourceBOM, SourceDeclaration},
}

// Resolve picks the effective encoding for in. Unknown labels fall through
// to the next source; the result always carries a usable encoding.
func Resolve(in Input) Decision {
	bomEnc, bomName, bomLen := sniffBOM(in.Data)

	for _, src := range precedence[in.Kind] {
		var label string
		switch src {
		case SourceAttribute:
			label = in.Attribute
		case SourceHeader:
			label = in.HeaderCharset
		case SourceBOM:
			if bomEnc != nil {
				return Decision{Encoding: bomEnc, Name: bomName, Source: SourceBOM, BOMLength: bomLen}
			}
			continue
		case SourceDeclaration:
			label = in.Declaration
			if label == "" {
				label = SniffDeclaration(in.Kind, in.Data)
			}
			label = declarationOverride(in.Kind, label)
		}
		if enc, name, ok := Lookup(label); ok {
			return Decision{Encoding: enc, Name: name, Source: src, BOMLength: bomLen}
		}
	}

	if enc, name, ok := Lookup(in.Default); ok {
		return Decision{Encoding: enc, Name: name, Source: SourceDefault, BOMLength: bomLen}
	}
	enc, name, _ := Lookup(DefaultFor(in.Kind))
	return Decision{Encoding: enc, Name: name, Source: SourceDefault, BOMLength: bomLen}
}

// DefaultFor returns the fallback label for a kind when the caller supplies none.
func DefaultFor(k Kind) string {
	if k == KindDocument {
		return "ISO-8859-1"
	}
	return "UTF-8"
}

// A UTF-16 label inside content that was readable as ASCII is a lie; the
// bytes are really UTF-8 compatible.
func declarationOverride(k Kind, label string) string {
	if k != KindStylesheet && k != KindDocument {
		return label
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(label)), "utf-16") {
		return "UTF-8"
	}
	return label
}

var (
	utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
)

func sniffBOM(data []byte) (encoding.Encoding, string, int) {
	switch {
	case len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF:
		return unicode.UTF8, "UTF-8", 3
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		return utf16BE, "UTF-16BE", 2
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		return utf16LE, "UTF-16LE", 2
	}
	return nil, "", 0
}
