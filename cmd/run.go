// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domscript/api/schemas"
	"github.com/xkilldash9x/domscript/internal/browser/dom"
	"github.com/xkilldash9x/domscript/internal/browser/jsbind"
	"github.com/xkilldash9x/domscript/internal/browser/jsconfig"
	"github.com/xkilldash9x/domscript/internal/browser/jsexec"
	"github.com/xkilldash9x/domscript/internal/browser/loader"
	"github.com/xkilldash9x/domscript/internal/browser/network"
	"github.com/xkilldash9x/domscript/internal/browser/profile"
	"github.com/xkilldash9x/domscript/internal/config"
)

type runOptions struct {
	url        string
	file       string
	baseURL    string
	script     string
	scriptFile string
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Load a page and evaluate a script against it",
		Long: `Loads a page from --url or --file, builds the script environment for the
selected browser profile and evaluates --script (or --script-file). The result
and everything written to the console are printed as JSON.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if (opts.url == "") == (opts.file == "") {
				return errors.New("exactly one of --url or --file is required")
			}
			if opts.script != "" && opts.scriptFile != "" {
				return errors.New("--script and --script-file are mutually exclusive")
			}
			return applyRunFlags(cmd, a.cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			source := opts.script
			if opts.scriptFile != "" {
				data, err := os.ReadFile(opts.scriptFile)
				if err != nil {
					return fmt.Errorf("failed to read script file: %w", err)
				}
				source = string(data)
			}
			result, err := a.run(cmd.Context(), opts, source)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	flags := runCmd.Flags()
	flags.StringVar(&opts.url, "url", "", "URL of the page to load")
	flags.StringVar(&opts.file, "file", "", "local page to load instead of --url")
	flags.StringVar(&opts.baseURL, "base-url", "", "document URL for --file (default is the file:// URL)")
	flags.StringVarP(&opts.script, "script", "s", "", "JavaScript to evaluate; a function wrapper such as '() => document.title' is called")
	flags.StringVar(&opts.scriptFile, "script-file", "", "read the script from a file")
	flags.StringP("profile", "p", "", "browser profile key, e.g. chrome-120, firefox-115, ie-11")
	flags.Duration("timeout", 0, "script timeout (overrides script.timeout)")
	flags.Bool("execute-scripts", false, "run the page's own scripts before --script")
	flags.String("default-charset", "", "charset for documents that declare none")
	flags.String("user-agent", "", "User-Agent header override")
	flags.Bool("insecure", false, "skip TLS certificate verification")
	return runCmd
}

// applyRunFlags folds explicitly set flags into cfg; flags win over the
// config file and environment.
func applyRunFlags(cmd *cobra.Command, cfg config.Interface) error {
	flags := cmd.Flags()
	if flags.Changed("profile") {
		v, _ := flags.GetString("profile")
		cfg.SetBrowserProfile(v)
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		if d <= 0 {
			return errors.New("--timeout must be positive")
		}
		cfg.SetScriptTimeout(d)
	}
	if flags.Changed("execute-scripts") {
		b, _ := flags.GetBool("execute-scripts")
		cfg.SetBrowserExecuteScripts(b)
	}
	if flags.Changed("default-charset") {
		v, _ := flags.GetString("default-charset")
		cfg.SetBrowserDefaultCharset(v)
	}
	if flags.Changed("user-agent") {
		v, _ := flags.GetString("user-agent")
		cfg.SetNetworkUserAgent(v)
	}
	if flags.Changed("insecure") {
		b, _ := flags.GetBool("insecure")
		cfg.SetNetworkIgnoreTLSErrors(b)
	}
	return nil
}

func (a *app) run(ctx context.Context, opts *runOptions, source string) (*schemas.ScriptResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	logger := a.logger.Named("run")

	p, err := profile.Lookup(a.cfg.Browser().Profile)
	if err != nil {
		return nil, err
	}
	reg, err := buildRegistry(a.cfg.Browser(), a.logger)
	if err != nil {
		return nil, err
	}
	fetcher, err := buildFetcher(a.cfg.Network(), p, a.logger)
	if err != nil {
		return nil, err
	}
	ldr := loader.New(fetcher, a.logger,
		loader.WithDefaultCharset(a.cfg.Browser().DefaultCharset),
		loader.WithConcurrency(a.cfg.Browser().Concurrency))

	doc, err := loadPage(ctx, ldr, opts)
	if err != nil {
		return nil, err
	}
	logger.Info("Page loaded.",
		zap.String("url", doc.URL()),
		zap.String("profile", p.Key()),
		zap.String("charset", doc.Charset()))

	rt, err := jsexec.NewRuntime(reg, p, doc, a.logger,
		jsexec.WithTimeout(a.cfg.Script().Timeout),
		jsexec.WithWindowOptions(jsbind.WithTransport(fetcher)))
	if err != nil {
		return nil, fmt.Errorf("failed to build script environment: %w", err)
	}
	defer rt.Close()

	if a.cfg.Browser().ExecuteScripts {
		if err := runPageScripts(ctx, ldr, rt, doc, logger); err != nil {
			return nil, err
		}
	}

	var value interface{}
	if strings.TrimSpace(source) != "" {
		value, err = rt.ExecuteScript(ctx, source, nil)
		if err != nil {
			return nil, err
		}
	}

	logs := rt.Window().ConsoleLogs()
	if logs == nil {
		logs = []schemas.ConsoleLog{}
	}
	return &schemas.ScriptResult{
		Profile:     p.Key(),
		URL:         doc.URL(),
		Charset:     doc.Charset(),
		Value:       jsonSafe(value),
		ConsoleLogs: logs,
		Duration:    time.Since(start).Round(time.Millisecond).String(),
	}, nil
}

// runPageScripts executes the document's classic scripts in order. A
// failing script is logged and the rest still run, as in a browser.
func runPageScripts(ctx context.Context, ldr *loader.Loader, rt *jsexec.Runtime, doc *dom.Document, logger *zap.Logger) error {
	scripts, err := ldr.Scripts(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to load page scripts: %w", err)
	}
	for i, s := range scripts {
		if s.Source == "" {
			continue
		}
		if _, err := rt.ExecuteScript(ctx, s.Source, nil); err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Warn("Page script failed.", zap.Int("index", i), zap.String("src", s.URL), zap.Error(err))
		}
	}
	return nil
}

func loadPage(ctx context.Context, ldr *loader.Loader, opts *runOptions) (*dom.Document, error) {
	if opts.url != "" {
		doc, _, err := ldr.LoadDocument(ctx, opts.url)
		return doc, err
	}
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	docURL := opts.baseURL
	if docURL == "" {
		abs, err := filepath.Abs(opts.file)
		if err != nil {
			return nil, err
		}
		docURL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	}
	doc, _, err := ldr.ParseDocument(data, docURL, contentTypeFor(opts.file))
	return doc, err
}

// contentTypeFor guesses a media type from a local file's extension.
func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".svg", ".rss", ".atom":
		return "application/xml"
	case ".xhtml":
		return "application/xhtml+xml"
	default:
		return "text/html"
	}
}

// buildRegistry validates the embedded catalog, or the override file when
// one is configured.
func buildRegistry(cfg config.BrowserConfig, logger *zap.Logger) (*jsconfig.Registry, error) {
	if cfg.CatalogPath == "" {
		return jsbind.NewDefaultRegistry(logger)
	}
	catalog, err := jsconfig.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	return jsconfig.NewRegistry(catalog, jsbind.DefaultBindings(), logger)
}

// buildFetcher wires the network settings into an HTTP fetcher that
// presents itself as p.
func buildFetcher(cfg config.NetworkConfig, p *profile.Profile, logger *zap.Logger) (*network.Fetcher, error) {
	cc := network.NewBrowserClientConfig()
	cc.Logger = logger
	cc.InsecureSkipVerify = cfg.IgnoreTLSErrors
	cc.MaxRedirects = cfg.MaxRedirects
	if cfg.Timeout > 0 {
		cc.RequestTimeout = cfg.Timeout
	}
	if cfg.DialTimeout > 0 {
		cc.Dialer.Timeout = cfg.DialTimeout
	}
	if cfg.Proxy.Enabled {
		proxyURL, err := url.Parse(cfg.Proxy.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address: %w", err)
		}
		cc.ProxyURL = proxyURL
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = p.UserAgent()
	}
	return network.NewFetcher(network.FetcherConfig{
		Client:            network.NewClient(cc),
		UserAgent:         ua,
		AcceptLanguage:    p.Language(),
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		MaxBodyBytes:      cfg.MaxBodyBytes,
	}, logger), nil
}
