// internal/browser/loader/loader.go
package loader

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/domscript/api/schemas"
	"github.com/xkilldash9x/domscript/internal/browser/charset"
	"github.com/xkilldash9x/domscript/internal/browser/dom"
)

// Fetcher performs one exchange. network.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, req schemas.FetchRequest) (*schemas.FetchResponse, error)
}

// HTTPError reports a resource answered with a non-success status.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("loader: %s returned status %d", e.URL, e.Status)
}

// Resource is a fetched and decoded subresource.
type Resource struct {
	URL         string
	Kind        charset.Kind
	ContentType string
	Decision    charset.Decision
	Text        string
}

// Loader fetches documents and their subresources and decodes each with
// the charset precedence of its kind.
type Loader struct {
	fetcher        Fetcher
	logger         *zap.Logger
	defaultCharset string
	concurrency    int
}

// Option configures a Loader.
type Option func(*Loader)

// WithDefaultCharset sets the fallback used for documents with no other
// charset source.
func WithDefaultCharset(label string) Option {
	return func(l *Loader) { l.defaultCharset = label }
}

// WithConcurrency bounds parallel subresource fetches.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// New returns a Loader backed by f.
func New(f Fetcher, logger *zap.Logger, opts ...Option) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{
		fetcher:     f,
		logger:      logger.Named("loader"),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fetch retrieves rawURL and decodes it as kind. attribute is the charset
// named by the referencing element, if any; fallback applies when no
// source in the resource itself names one.
func (l *Loader) Fetch(ctx context.Context, rawURL string, kind charset.Kind, attribute, fallback string) (*Resource, error) {
	if l.fetcher == nil {
		return nil, fmt.Errorf("loader: no fetcher configured")
	}
	resp, err := l.fetcher.Fetch(ctx, schemas.FetchRequest{
		URL:         rawURL,
		Method:      "GET",
		Credentials: "include",
	})
	if err != nil {
		return nil, fmt.Errorf("loader: fetching %s: %w", rawURL, err)
	}
	if resp.Status < 200 || resp.Status > 299 {
		return nil, &HTTPError{URL: resp.URL, Status: resp.Status}
	}

	contentType, _ := resp.Header("Content-Type")
	text, d := charset.DecodeInput(charset.Input{
		Kind:          kind,
		HeaderCharset: charset.HeaderCharset(contentType),
		Data:          resp.Body,
		Attribute:     attribute,
		Default:       fallback,
	})
	l.logger.Debug("Resource decoded.",
		zap.String("url", resp.URL),
		zap.Stringer("kind", kind),
		zap.String("charset", d.Name),
		zap.Stringer("source", d.Source))

	return &Resource{
		URL:         resp.URL,
		Kind:        kind,
		ContentType: contentType,
		Decision:    d,
		Text:        text,
	}, nil
}

// LoadDocument fetches and parses a page. XML media types produce an XML
// document; everything else is parsed as HTML.
func (l *Loader) LoadDocument(ctx context.Context, rawURL string) (*dom.Document, charset.Decision, error) {
	if l.fetcher == nil {
		return nil, charset.Decision{}, fmt.Errorf("loader: no fetcher configured")
	}
	resp, err := l.fetcher.Fetch(ctx, schemas.FetchRequest{URL: rawURL, Method: "GET", Credentials: "include"})
	if err != nil {
		return nil, charset.Decision{}, fmt.Errorf("loader: fetching %s: %w", rawURL, err)
	}
	if resp.Status < 200 || resp.Status > 299 {
		return nil, charset.Decision{}, &HTTPError{URL: resp.URL, Status: resp.Status}
	}
	contentType, _ := resp.Header("Content-Type")
	return l.ParseDocument(resp.Body, resp.URL, contentType)
}

// ParseDocument decodes and parses raw page bytes that were obtained
// elsewhere, such as from a local file.
func (l *Loader) ParseDocument(data []byte, docURL, contentType string) (*dom.Document, charset.Decision, error) {
	mediaType := charset.MediaType(contentType)
	in := charset.Input{
		HeaderCharset: charset.HeaderCharset(contentType),
		Data:          data,
		Default:       l.defaultCharset,
	}

	if isXML(mediaType) {
		in.Kind = charset.KindXML
		text, d := charset.DecodeInput(in)
		doc, err := dom.ParseXML(strings.NewReader(text),
			dom.WithURL(docURL), dom.WithCharset(d.Name), dom.WithContentType(mediaType))
		if err != nil {
			return nil, d, fmt.Errorf("loader: parsing %s: %w", docURL, err)
		}
		return doc, d, nil
	}

	in.Kind = charset.KindDocument
	text, d := charset.DecodeInput(in)
	opts := []dom.DocumentOption{dom.WithURL(docURL), dom.WithCharset(d.Name)}
	if mediaType != "" {
		opts = append(opts, dom.WithContentType(mediaType))
	}
	doc, err := dom.ParseHTML(bytes.NewReader([]byte(text)), opts...)
	if err != nil {
		return nil, d, fmt.Errorf("loader: parsing %s: %w", docURL, err)
	}
	return doc, d, nil
}

func isXML(mediaType string) bool {
	return mediaType == "text/xml" || mediaType == "application/xml" ||
		(strings.HasSuffix(mediaType, "+xml") && mediaType != "application/xhtml+xml")
}

// resolve returns ref relative to the document's URL.
func resolve(doc *dom.Document, ref string) (string, error) {
	target, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	base, err := url.Parse(doc.URL())
	if err != nil || doc.URL() == "" {
		return target.String(), nil
	}
	return base.ResolveReference(target).String(), nil
}
