// internal/browser/loader/batch.go
package loader

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/domscript/internal/browser/charset"
	"github.com/xkilldash9x/domscript/internal/browser/dom"
)

// Script is one script of a document, inline or external, ready to run.
type Script struct {
	// URL is empty for inline scripts.
	URL      string
	Source   string
	Decision charset.Decision
	Async    bool
	Defer    bool
}

// Inline reports whether the script was embedded in the page.
func (s *Script) Inline() bool { return s.URL == "" }

// executableTypes are the script type values a browser runs as classic script.
var executableTypes = map[string]bool{
	"":                         true,
	"text/javascript":          true,
	"application/javascript":   true,
	"application/ecmascript":   true,
	"application/x-javascript": true,
	"text/ecmascript":          true,
	"text/jscript":             true,
	"text/livescript":          true,
}

// Scripts collects the document's classic scripts in document order.
// External sources are fetched concurrently; the first failure cancels
// the rest.
func (l *Loader) Scripts(ctx context.Context, doc *dom.Document) ([]*Script, error) {
	var elements []*dom.Node
	for _, el := range doc.ElementsByTagName(doc.Node(), "script") {
		typ := strings.ToLower(strings.TrimSpace(el.AttrOr("type")))
		if !executableTypes[typ] {
			continue
		}
		elements = append(elements, el)
	}

	scripts := make([]*Script, len(elements))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, el := range elements {
		_, async := el.Attr("async")
		_, deferred := el.Attr("defer")
		src, external := el.Attr("src")
		if !external {
			text, _ := el.TextContent()
			scripts[i] = &Script{Source: text, Async: async, Defer: deferred}
			continue
		}

		target, err := resolve(doc, src)
		if err != nil {
			l.logger.Debug("Skipping script with unparsable src.", zap.String("src", src), zap.Error(err))
			scripts[i] = &Script{Async: async, Defer: deferred}
			continue
		}
		attribute := el.AttrOr("charset")
		g.Go(func() error {
			res, err := l.Fetch(gctx, target, charset.KindScript, attribute, doc.Charset())
			if err != nil {
				return err
			}
			scripts[i] = &Script{URL: res.URL, Source: res.Text, Decision: res.Decision, Async: async, Defer: deferred}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scripts, nil
}

// Stylesheets fetches every linked stylesheet in document order.
func (l *Loader) Stylesheets(ctx context.Context, doc *dom.Document) ([]*Resource, error) {
	var targets []string
	var attributes []string
	for _, el := range doc.ElementsByTagName(doc.Node(), "link") {
		if !hasToken(el.AttrOr("rel"), "stylesheet") {
			continue
		}
		href, ok := el.Attr("href")
		if !ok {
			continue
		}
		target, err := resolve(doc, href)
		if err != nil {
			continue
		}
		targets = append(targets, target)
		attributes = append(attributes, el.AttrOr("charset"))
	}

	sheets := make([]*Resource, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, target := range targets {
		g.Go(func() error {
			// The referring document's encoding is the stylesheet fallback.
			res, err := l.Fetch(gctx, target, charset.KindStylesheet, attributes[i], doc.Charset())
			if err != nil {
				return err
			}
			sheets[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sheets, nil
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}
