// browser/xhr/request.go
package xhr

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domscript/api/schemas"
	"github.com/xkilldash9x/domscript/internal/browser/charset"
	"github.com/xkilldash9x/domscript/internal/browser/dom"
	"github.com/xkilldash9x/domscript/internal/browser/profile"
)

// State is the request readiness state.
type State int

const (
	Unsent State = iota
	Opened
	HeadersReceived
	Loading
	Done
)

func (s State) String() string {
	switch s {
	case Unsent:
		return "UNSENT"
	case Opened:
		return "OPENED"
	case HeadersReceived:
		return "HEADERS_RECEIVED"
	case Loading:
		return "LOADING"
	case Done:
		return "DONE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DispatchMode selects whether Send blocks for the exchange.
type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchBackground
)

// Controller can force synchronous dispatch, for example while a script is
// already running inside a synchronous exchange.
type Controller interface {
	ForceSynchronous() bool
}

// ModeFor derives the dispatch mode from the script's async flag and an
// optional controller.
func ModeFor(async bool, c Controller) DispatchMode {
	if !async || (c != nil && c.ForceSynchronous()) {
		return DispatchSync
	}
	return DispatchBackground
}

// Transport performs one HTTP exchange.
type Transport interface {
	Fetch(ctx context.Context, req schemas.FetchRequest) (*schemas.FetchResponse, error)
}

// Scheduler runs fn on the script thread. It returns false once the thread
// no longer accepts work.
type Scheduler interface {
	Schedule(fn func()) bool
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func()) bool

func (f SchedulerFunc) Schedule(fn func()) bool { return f(fn) }

// EventType names the notifications a Request emits.
type EventType string

const (
	EventReadyStateChange EventType = "readystatechange"
	EventLoadStart        EventType = "loadstart"
	EventLoad             EventType = "load"
	EventError            EventType = "error"
	EventAbort            EventType = "abort"
	EventLoadEnd          EventType = "loadend"
)

// Event is delivered to listeners on the script thread.
type Event struct {
	Type  EventType
	State State
}

// Listener receives request events.
type Listener func(Event)

// Token is signalled by Abort or a later Open. A signalled token suppresses
// delivery of its exchange's result; the transport call itself runs to
// completion.
type Token struct {
	canceled atomic.Bool
}

// Cancel signals the token.
func (t *Token) Cancel() { t.canceled.Store(true) }

// Canceled reports whether the token has been signalled.
func (t *Token) Canceled() bool { return t.canceled.Load() }

// Config wires a Request to its collaborators.
type Config struct {
	Transport Transport
	Scheduler Scheduler
	// BaseURL resolves relative URLs and defines the request origin.
	BaseURL *url.URL
	Profile *profile.Profile
}

// record is the state of one open/send cycle. Open replaces it wholesale.
type record struct {
	id              string
	method          string
	methodDefaulted bool
	url             *url.URL
	async           bool
	user            string
	password        string
	headers         []schemas.NVPair
	sent            bool
	token           *Token
	response        *schemas.FetchResponse
	failed          bool
	document        *dom.Document
	documentParsed  bool
}

// Request is one script-visible XMLHttpRequest. It is not safe for
// concurrent use; every method runs on the script thread.
type Request struct {
	cfg    Config
	logger *zap.Logger

	state           State
	rec             *record
	withCredentials bool
	overrideMime    string
	listeners       []Listener
}

// New creates an unsent request.
func New(cfg Config, logger *zap.Logger) *Request {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Profile == nil {
		cfg.Profile = profile.Default()
	}
	return &Request{cfg: cfg, logger: logger.Named("xhr")}
}

// AddListener registers l for every event.
func (r *Request) AddListener(l Listener) {
	r.listeners = append(r.listeners, l)
}

func (r *Request) fire(t EventType) {
	ev := Event{Type: t, State: r.state}
	for _, l := range r.listeners {
		l(ev)
	}
}

func (r *Request) setState(s State) {
	r.state = s
	r.fire(EventReadyStateChange)
}

// ID returns the identifier of the current exchange, or "" before Open.
func (r *Request) ID() string {
	if r.rec == nil {
		return ""
	}
	return r.rec.id
}

// Open starts a new cycle. Any exchange still in flight is cancelled.
func (r *Request) Open(method, rawURL string, async bool, user, password string) error {
	defaulted := false
	if method == "" {
		method, defaulted = "GET", true
	}
	if !isToken(method) {
		return &StateError{Name: SyntaxError, Message: fmt.Sprintf("%q is not a valid method", method)}
	}
	upper := strings.ToUpper(method)
	switch upper {
	case "CONNECT", "TRACE", "TRACK":
		return &StateError{Name: SecurityError, Message: fmt.Sprintf("method %s is not allowed", upper)}
	case "DELETE", "GET", "HEAD", "OPTIONS", "POST", "PUT":
		method = upper
	}

	target, err := r.resolve(rawURL)
	if err != nil {
		return &StateError{Name: SyntaxError, Message: err.Error()}
	}
	if user == "" && target.User != nil {
		user = target.User.Username()
		password, _ = target.User.Password()
	}
	target.User = nil

	if r.rec != nil && r.rec.token != nil {
		r.rec.token.Cancel()
	}
	r.rec = &record{
		id:              uuid.NewString(),
		method:          method,
		methodDefaulted: defaulted,
		url:             target,
		async:           async,
		user:            user,
		password:        password,
	}
	r.logger.Debug("Request opened.",
		zap.String("request_id", r.rec.id),
		zap.String("method", method),
		zap.String("url", target.String()),
		zap.Bool("async", async))

	r.state = Unsent
	r.setState(Opened)
	return nil
}

func (r *Request) resolve(raw string) (*url.URL, error) {
	if r.cfg.BaseURL != nil {
		return r.cfg.BaseURL.Parse(raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("relative url %q without a base", raw)
	}
	return u, nil
}

// SetRequestHeader adds a header to the pending request. Forbidden names
// are ignored without error; repeated names are combined.
func (r *Request) SetRequestHeader(name, value string) error {
	if r.state != Opened || r.rec == nil || r.rec.sent {
		return invalidState("setRequestHeader requires an opened, unsent request")
	}
	if !isToken(name) || !validHeaderValue(value) {
		return &StateError{Name: SyntaxError, Message: fmt.Sprintf("invalid header %q", name)}
	}
	value = strings.TrimSpace(value)
	if IsForbiddenHeader(name) {
		r.logger.Debug("Ignoring forbidden request header.",
			zap.String("request_id", r.rec.id),
			zap.String("header", name))
		return nil
	}
	for i, h := range r.rec.headers {
		if strings.EqualFold(h.Name, name) {
			r.rec.headers[i].Value = h.Value + ", " + value
			return nil
		}
	}
	r.rec.headers = append(r.rec.headers, schemas.NVPair{Name: name, Value: value})
	return nil
}

// SetWithCredentials toggles credentialed cross-origin requests.
func (r *Request) SetWithCredentials(v bool) error {
	if r.state > Opened || (r.rec != nil && r.rec.sent) {
		return invalidState("withCredentials can only change before send")
	}
	r.withCredentials = v
	return nil
}

// WithCredentials reports the credentials flag.
func (r *Request) WithCredentials() bool { return r.withCredentials }

// OverrideMimeType replaces the response MIME type used for decoding.
func (r *Request) OverrideMimeType(mimeType string) error {
	if r.state == Loading || r.state == Done {
		return invalidState("overrideMimeType after the response started")
	}
	r.overrideMime = mimeType
	return nil
}

// Send dispatches the pending request. Background dispatch returns a token
// that Abort signals; sync dispatch returns a *NetworkError on failure.
func (r *Request) Send(ctx context.Context, body []byte, mode DispatchMode) (*Token, error) {
	if r.state != Opened || r.rec == nil || r.rec.sent {
		return nil, invalidState("send requires an opened, unsent request")
	}
	rec := r.rec
	rec.sent = true
	rec.token = &Token{}

	if rec.methodDefaulted && len(body) > 0 {
		rec.method = "POST"
	}
	req := schemas.FetchRequest{
		ID:       rec.id,
		URL:      rec.url.String(),
		Method:   rec.method,
		Headers:  append([]schemas.NVPair(nil), rec.headers...),
		Username: rec.user,
		Password: rec.password,
	}
	creds := r.withCredentials
	if creds {
		req.Credentials = "include"
	} else {
		req.Credentials = "same-origin"
	}
	if rec.method != "GET" && rec.method != "HEAD" && body != nil {
		req.Body = body
		if _, ok := req.Header("Content-Type"); !ok {
			req.Headers = append(req.Headers, schemas.NVPair{Name: "Content-Type", Value: "text/plain;charset=UTF-8"})
		}
	}

	if r.cfg.Profile.HasFeature(profile.XHRFireOpenedOnSend) {
		r.setState(Opened)
	}
	if r.rec != rec {
		return rec.token, nil
	}
	r.fire(EventLoadStart)
	if r.rec != rec {
		return rec.token, nil
	}

	if mode == DispatchSync {
		resp, err := r.exchange(ctx, rec, req, creds)
		r.deliver(rec, resp, err)
		if err != nil {
			return nil, err
		}
		return nil, nil
	}

	if r.cfg.Scheduler == nil {
		return nil, fmt.Errorf("xhr: background dispatch without a scheduler")
	}
	go func() {
		resp, err := r.exchange(ctx, rec, req, creds)
		if !r.cfg.Scheduler.Schedule(func() { r.deliver(rec, resp, err) }) {
			r.logger.Warn("Dropping background response.",
				zap.String("request_id", rec.id),
				zap.Error(ErrSchedulerClosed))
		}
	}()
	return rec.token, nil
}

// exchange runs preflight and the real request. It touches no mutable
// request state so it may run off the script thread.
func (r *Request) exchange(ctx context.Context, rec *record, req schemas.FetchRequest, creds bool) (*schemas.FetchResponse, error) {
	if r.cfg.Transport == nil {
		return nil, &NetworkError{URL: req.URL, Err: fmt.Errorf("no transport configured")}
	}
	logger := r.logger.With(zap.String("request_id", rec.id), zap.String("url", req.URL))

	crossOrigin := !sameOrigin(r.cfg.BaseURL, rec.url)
	origin := serializeOrigin(r.cfg.BaseURL)
	if crossOrigin {
		req.Headers = append(req.Headers, schemas.NVPair{Name: "Origin", Value: origin})
		if !isSimpleRequest(req.Method, rec.headers) {
			if err := r.preflight(ctx, rec, req, origin, creds); err != nil {
				logger.Debug("Preflight rejected.", zap.Error(err))
				return nil, err
			}
		}
	}

	resp, err := r.cfg.Transport.Fetch(ctx, req)
	if err != nil {
		logger.Debug("Exchange failed.", zap.Error(err))
		return nil, &NetworkError{URL: req.URL, Err: err}
	}
	if crossOrigin && !originAllowed(resp, origin, creds) {
		logger.Debug("Cross-origin response rejected.")
		return nil, &NetworkError{URL: req.URL, Err: ErrCORSRejected}
	}
	logger.Debug("Exchange complete.", zap.Int("status", resp.Status))
	return resp, nil
}

func (r *Request) preflight(ctx context.Context, rec *record, req schemas.FetchRequest, origin string, creds bool) error {
	names := nonSimpleHeaderNames(rec.headers)
	pre := schemas.FetchRequest{
		ID:     req.ID + "-preflight",
		URL:    req.URL,
		Method: "OPTIONS",
		Headers: []schemas.NVPair{
			{Name: "Origin", Value: origin},
			{Name: "Access-Control-Request-Method", Value: req.Method},
		},
	}
	if len(names) > 0 {
		pre.Headers = append(pre.Headers, schemas.NVPair{Name: "Access-Control-Request-Headers", Value: strings.Join(names, ",")})
	}
	resp, err := r.cfg.Transport.Fetch(ctx, pre)
	if err != nil {
		return &NetworkError{URL: req.URL, Err: err}
	}
	if resp.Status < 200 || resp.Status > 299 || !originAllowed(resp, origin, creds) || !headersAllowed(resp, names) {
		return &NetworkError{URL: req.URL, Err: ErrCORSRejected}
	}
	return nil
}

// deliver applies an exchange result on the script thread. Results for a
// replaced or cancelled record are dropped.
func (r *Request) deliver(rec *record, resp *schemas.FetchResponse, err error) {
	current := func() bool { return r.rec == rec && !rec.token.Canceled() }
	if !current() {
		r.logger.Debug("Discarding stale response.", zap.String("request_id", rec.id))
		return
	}

	if err != nil {
		rec.failed = true
		rec.response = &schemas.FetchResponse{URL: rec.url.String()}
		r.setState(HeadersReceived)
		if !current() {
			return
		}
		r.setState(Done)
		if !current() {
			return
		}
		r.fire(EventError)
		if current() {
			r.fire(EventLoadEnd)
		}
		return
	}

	rec.response = resp
	for _, s := range []State{HeadersReceived, Loading, Done} {
		r.setState(s)
		if !current() {
			return
		}
	}
	r.fire(EventLoad)
	if current() {
		r.fire(EventLoadEnd)
	}
}

// Abort cancels the current cycle and resets to Unsent.
func (r *Request) Abort() {
	rec := r.rec
	if rec == nil {
		r.state = Unsent
		return
	}
	inProgress := rec.sent && r.state != Done
	if rec.token != nil {
		rec.token.Cancel()
	}
	rec.sent = false
	r.state = Unsent
	r.logger.Debug("Request aborted.", zap.String("request_id", rec.id), zap.Bool("in_progress", inProgress))
	if inProgress {
		r.fire(EventAbort)
		r.fire(EventLoadEnd)
	}
}

// --- Readers ---

// ReadyState returns the current state.
func (r *Request) ReadyState() State { return r.state }

func (r *Request) response() *schemas.FetchResponse {
	if r.rec == nil || r.state < HeadersReceived {
		return nil
	}
	return r.rec.response
}

// Status returns the HTTP status, or 0 before headers or after a failure.
func (r *Request) Status() int {
	if resp := r.response(); resp != nil {
		return resp.Status
	}
	return 0
}

// StatusText returns the HTTP reason phrase.
func (r *Request) StatusText() string {
	if resp := r.response(); resp != nil {
		return resp.StatusText
	}
	return ""
}

// ResponseURL returns the final URL without its fragment.
func (r *Request) ResponseURL() string {
	resp := r.response()
	if resp == nil || resp.URL == "" {
		return ""
	}
	u, err := url.Parse(resp.URL)
	if err != nil {
		return resp.URL
	}
	u.Fragment = ""
	return u.String()
}

func (r *Request) contentType() string {
	if r.overrideMime != "" {
		return r.overrideMime
	}
	if resp := r.response(); resp != nil {
		ct, _ := resp.Header("Content-Type")
		return ct
	}
	return ""
}

// ResponseText decodes the body seen so far.
func (r *Request) ResponseText() string {
	resp := r.response()
	if resp == nil || r.state < Loading || r.rec.failed {
		return ""
	}
	header, _ := resp.Header("Content-Type")
	text, _ := charset.DecodeInput(charset.Input{
		Kind:          charset.KindText,
		Attribute:     charset.HeaderCharset(r.overrideMime),
		HeaderCharset: charset.HeaderCharset(header),
		Data:          resp.Body,
	})
	return text
}

// ResponseXML parses the body as a document once the exchange is done.
// Non-markup responses yield nil.
func (r *Request) ResponseXML() *dom.Document {
	resp := r.response()
	if resp == nil || r.state != Done || r.rec.failed {
		return nil
	}
	if r.rec.documentParsed {
		return r.rec.document
	}
	r.rec.documentParsed = true

	ct := r.contentType()
	mt := charset.MediaType(ct)
	header, _ := resp.Header("Content-Type")
	in := charset.Input{
		Attribute:     charset.HeaderCharset(r.overrideMime),
		HeaderCharset: charset.HeaderCharset(header),
		Data:          resp.Body,
	}

	var doc *dom.Document
	var err error
	switch {
	case mt == "text/xml" || mt == "application/xml" || strings.HasSuffix(mt, "+xml"):
		in.Kind = charset.KindXML
		text, d := charset.DecodeInput(in)
		doc, err = dom.ParseXML(strings.NewReader(text),
			dom.WithURL(resp.URL), dom.WithCharset(d.Name), dom.WithContentType(mt))
	case mt == "text/html":
		in.Kind = charset.KindDocument
		in.Default = "UTF-8"
		text, d := charset.DecodeInput(in)
		doc, err = dom.ParseHTML(bytes.NewReader([]byte(text)),
			dom.WithURL(resp.URL), dom.WithCharset(d.Name))
	default:
		return nil
	}
	if err != nil {
		r.logger.Debug("Response is not a well-formed document.", zap.String("request_id", r.rec.id), zap.Error(err))
		return nil
	}
	r.rec.document = doc
	return doc
}

// GetResponseHeader returns the combined values for name. Set-Cookie is
// never exposed.
func (r *Request) GetResponseHeader(name string) (string, bool) {
	resp := r.response()
	if resp == nil || r.rec.failed || isHiddenResponseHeader(name) {
		return "", false
	}
	var values []string
	for _, h := range resp.Headers {
		if strings.EqualFold(h.Name, name) {
			values = append(values, h.Value)
		}
	}
	if len(values) == 0 {
		return "", false
	}
	return strings.Join(values, ", "), true
}

// GetAllResponseHeaders renders "name: value\r\n" lines in response order.
func (r *Request) GetAllResponseHeaders() string {
	resp := r.response()
	if resp == nil || r.rec.failed {
		return ""
	}
	lower := r.cfg.Profile.HasFeature(profile.XHRLowercaseResponseHeaders)
	var b strings.Builder
	for _, h := range resp.Headers {
		if isHiddenResponseHeader(h.Name) {
			continue
		}
		name := h.Name
		if lower {
			name = strings.ToLower(name)
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	return b.String()
}

func isHiddenResponseHeader(name string) bool {
	lower := strings.ToLower(name)
	return lower == "set-cookie" || lower == "set-cookie2"
}

// Async reports the async flag passed to the current Open.
func (r *Request) Async() bool { return r.rec != nil && r.rec.async }
