package charset

import (
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Decode converts data to UTF-8 text using the decision. A leading byte
// order mark is consumed exactly once, whether or not it agrees with the
// decision. Invalid input never fails; it becomes U+FFFD.
func Decode(data []byte, d Decision) string {
	_, bomName, bomLen := sniffBOM(data)
	body := data[bomLen:]

	out, err := bodyEncoding(d, bomName).NewDecoder().Bytes(body)
	if err != nil {
		return strings.ToValidUTF8(string(body), string(utf8.RuneError))
	}
	if !utf8.Valid(out) {
		return strings.ToValidUTF8(string(out), string(utf8.RuneError))
	}
	return string(out)
}

// bodyEncoding returns the encoding for the bytes after the BOM. The
// BOM-sensitive UTF-16 decoder is swapped for a fixed-endian one so that a
// second U+FEFF in the body survives as content.
func bodyEncoding(d Decision, bomName string) encoding.Encoding {
	if d.Encoding == nil {
		return unicode.UTF8
	}
	if !strings.HasPrefix(strings.ToUpper(d.Name), "UTF-16") {
		return d.Encoding
	}
	switch {
	case bomName == "UTF-16LE":
		return utf16LE
	case bomName == "UTF-16BE":
		return utf16BE
	case strings.EqualFold(d.Name, "UTF-16LE"):
		return utf16LE
	}
	return utf16BE
}

// DecodeInput resolves and decodes in one step.
func DecodeInput(in Input) (string, Decision) {
	d := Resolve(in)
	return Decode(in.Data, d), d
}

// HeaderCharset extracts the charset parameter from a Content-Type value.
func HeaderCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Tolerate sloppy headers such as "text/html; charset=utf-8;".
		for _, part := range strings.Split(contentType, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
			if ok && strings.EqualFold(strings.TrimSpace(k), "charset") {
				return strings.Trim(strings.TrimSpace(v), `"'`)
			}
		}
		return ""
	}
	return params["charset"]
}

// MediaType returns the lower-cased essence of a Content-Type value.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
