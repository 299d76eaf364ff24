package xhr

import (
	"net/url"
	"sort"
	"strings"

	"github.com/xkilldash9x/domscript/api/schemas"
	"github.com/xkilldash9x/domscript/internal/browser/charset"
)

// Header names a script may never set. Writes are dropped silently.
var forbiddenHeaders = map[string]bool{
	"accept-charset":                 true,
	"accept-encoding":                true,
	"access-control-request-headers": true,
	"access-control-request-method":  true,
	"connection":                     true,
	"content-length":                 true,
	"cookie":                         true,
	"cookie2":                        true,
	"date":                           true,
	"dnt":                            true,
	"expect":                         true,
	"host":                           true,
	"keep-alive":                     true,
	"origin":                         true,
	"referer":                        true,
	"te":                             true,
	"trailer":                        true,
	"transfer-encoding":              true,
	"upgrade":                        true,
	"user-agent":                     true,
	"via":                            true,
}

// IsForbiddenHeader reports whether scripts are barred from setting name.
func IsForbiddenHeader(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return forbiddenHeaders[lower] || strings.HasPrefix(lower, "proxy-") || strings.HasPrefix(lower, "sec-")
}

var simpleHeaders = map[string]bool{
	"accept":           true,
	"accept-language":  true,
	"content-language": true,
	"content-type":     true,
}

var simpleContentTypes = map[string]bool{
	"application/x-www-form-urlencoded": true,
	"multipart/form-data":               true,
	"text/plain":                        true,
}

var simpleMethods = map[string]bool{"GET": true, "HEAD": true, "POST": true}

// isSimpleHeader applies the CORS safelist, including the content-type check.
func isSimpleHeader(p schemas.NVPair) bool {
	name := strings.ToLower(p.Name)
	if !simpleHeaders[name] {
		return false
	}
	if name == "content-type" {
		return simpleContentTypes[charset.MediaType(p.Value)]
	}
	return true
}

// nonSimpleHeaderNames returns the lower-cased, sorted, de-duplicated names
// that fall outside the safelist.
func nonSimpleHeaderNames(headers []schemas.NVPair) []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range headers {
		if isSimpleHeader(h) {
			continue
		}
		name := strings.ToLower(h.Name)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func isSimpleRequest(method string, headers []schemas.NVPair) bool {
	return simpleMethods[method] && len(nonSimpleHeaderNames(headers)) == 0
}

func sameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return true
	}
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		return "80"
	case "https", "wss":
		return "443"
	}
	return ""
}

// serializeOrigin renders scheme://host[:port] with default ports omitted.
func serializeOrigin(u *url.URL) string {
	if u == nil {
		return "null"
	}
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	origin := strings.ToLower(u.Scheme) + "://" + host
	if p := u.Port(); p != "" && p != effectivePort(&url.URL{Scheme: u.Scheme}) {
		origin += ":" + p
	}
	return origin
}

// originAllowed checks Access-Control-Allow-Origin on a cross-origin response.
func originAllowed(resp *schemas.FetchResponse, origin string, withCredentials bool) bool {
	allow, ok := resp.Header("Access-Control-Allow-Origin")
	if !ok {
		return false
	}
	allow = strings.TrimSpace(allow)
	if allow == "*" {
		return !withCredentials
	}
	if allow != origin {
		return false
	}
	if withCredentials {
		creds, _ := resp.Header("Access-Control-Allow-Credentials")
		return strings.TrimSpace(creds) == "true"
	}
	return true
}

// headersAllowed checks that every requested name appears in the preflight's
// Access-Control-Allow-Headers list.
func headersAllowed(resp *schemas.FetchResponse, requested []string) bool {
	allowed := make(map[string]bool)
	for _, p := range resp.Headers {
		if !strings.EqualFold(p.Name, "Access-Control-Allow-Headers") {
			continue
		}
		for _, name := range strings.Split(p.Value, ",") {
			allowed[strings.ToLower(strings.TrimSpace(name))] = true
		}
	}
	for _, name := range requested {
		if !allowed[name] {
			return false
		}
	}
	return true
}

// isToken matches the RFC 7230 token production used for methods and
// header names.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}

func validHeaderValue(v string) bool {
	for i := 0; i < len(v); i++ {
		if c := v[i]; c == '\r' || c == '\n' || c == 0 {
			return false
		}
	}
	return true
}
