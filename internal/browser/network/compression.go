// browser/network/compression.go
package network

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// AcceptEncoding is advertised on requests that do not set their own.
const AcceptEncoding = "gzip, deflate, br, zstd"

// Pools for decompression readers to reduce allocation overhead.
var (
	gzipReaderPool = sync.Pool{
		New: func() interface{} { return new(gzip.Reader) },
	}
	brotliReaderPool = sync.Pool{
		New: func() interface{} { return brotli.NewReader(nil) },
	}
	zstdDecoderPool = sync.Pool{
		New: func() interface{} {
			// Concurrency 1 keeps the decoder synchronous so Reset can reuse it.
			d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(true))
			if err != nil {
				return nil
			}
			return d
		},
	}
)

// Shared empty reader used when returning pooled readers.
var emptyReader = strings.NewReader("")

func getGzipReader(r io.Reader) (*gzip.Reader, error) {
	zr := gzipReaderPool.Get().(*gzip.Reader)
	if err := zr.Reset(r); err != nil {
		gzipReaderPool.Put(zr)
		return nil, err
	}
	return zr, nil
}

func putGzipReader(zr *gzip.Reader) {
	_ = zr.Reset(emptyReader)
	gzipReaderPool.Put(zr)
}

func getBrotliReader(r io.Reader) (*brotli.Reader, error) {
	br := brotliReaderPool.Get().(*brotli.Reader)
	if err := br.Reset(r); err != nil {
		brotliReaderPool.Put(br)
		return nil, err
	}
	return br, nil
}

func putBrotliReader(br *brotli.Reader) {
	_ = br.Reset(emptyReader)
	brotliReaderPool.Put(br)
}

func getZstdDecoder(r io.Reader) (*zstd.Decoder, error) {
	d, _ := zstdDecoderPool.Get().(*zstd.Decoder)
	if d == nil {
		return nil, errors.New("zstd decoder unavailable")
	}
	if err := d.Reset(r); err != nil {
		zstdDecoderPool.Put(d)
		return nil, err
	}
	return d, nil
}

func putZstdDecoder(d *zstd.Decoder) {
	// Reset(nil) releases the source and keeps the decoder reusable.
	_ = d.Reset(nil)
	zstdDecoderPool.Put(d)
}

// CompressionMiddleware is an http.RoundTripper that advertises
// AcceptEncoding and transparently decodes the response body.
type CompressionMiddleware struct {
	// Transport is the wrapped RoundTripper. Nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// NewCompressionMiddleware wraps transport. A nil transport defaults to
// http.DefaultTransport.
func NewCompressionMiddleware(transport http.RoundTripper) *CompressionMiddleware {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &CompressionMiddleware{Transport: transport}
}

// RoundTrip implements http.RoundTripper.
func (cm *CompressionMiddleware) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", AcceptEncoding)
	}

	resp, err := cm.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := DecompressResponse(resp); err != nil {
		// The body may be partially consumed; it cannot be handed on.
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to initialize response decompression: %w", err)
	}
	return resp, nil
}

// closeWrapper closes the decoder and the body underneath it, and returns
// pooled readers exactly once.
type closeWrapper struct {
	io.ReadCloser
	originalBody io.ReadCloser
	poolCallback func()
}

func (w *closeWrapper) Close() error {
	if w.poolCallback != nil {
		w.poolCallback()
		w.poolCallback = nil
	}
	err1 := w.ReadCloser.Close()
	err2 := w.originalBody.Close()
	return errors.Join(err1, err2)
}

// DecompressResponse wraps resp.Body with one decoder per Content-Encoding
// layer, undoing them in reverse order of application. Supported layers are
// gzip, deflate (zlib or raw), br and zstd. On success Content-Encoding and
// Content-Length are removed and resp.Uncompressed is set.
//
// On error the body may have been partially read; the caller must close it
// and discard the response.
func DecompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}

	encodings := contentEncodings(resp.Header)
	if len(encodings) == 0 {
		return nil
	}

	for i := len(encodings) - 1; i >= 0; i-- {
		var reader io.ReadCloser
		var poolCallback func()

		switch encodings[i] {
		case "gzip", "x-gzip":
			gzipReader, err := getGzipReader(resp.Body)
			if err != nil {
				return fmt.Errorf("gzip initialization error: %w", err)
			}
			reader = gzipReader
			poolCallback = func() { putGzipReader(gzipReader) }

		case "deflate":
			deflateReader, err := tryDeflate(resp.Body)
			if err != nil {
				return fmt.Errorf("deflate initialization error: %w", err)
			}
			reader = deflateReader

		case "br":
			brReader, err := getBrotliReader(resp.Body)
			if err != nil {
				return fmt.Errorf("brotli initialization error: %w", err)
			}
			reader = io.NopCloser(brReader)
			poolCallback = func() { putBrotliReader(brReader) }

		case "zstd":
			decoder, err := getZstdDecoder(resp.Body)
			if err != nil {
				return fmt.Errorf("zstd initialization error: %w", err)
			}
			reader = io.NopCloser(decoder)
			poolCallback = func() { putZstdDecoder(decoder) }

		case "identity":
			continue

		default:
			return fmt.Errorf("unsupported Content-Encoding layer: %s", encodings[i])
		}

		resp.Body = &closeWrapper{
			ReadCloser:   reader,
			originalBody: resp.Body,
			poolCallback: poolCallback,
		}
	}

	resp.Header.Del("Content-Encoding")
	resp.ContentLength = -1
	resp.Header.Del("Content-Length")
	resp.Uncompressed = true
	return nil
}

// contentEncodings flattens comma-joined and repeated Content-Encoding
// headers into lowercase tokens in order of application.
func contentEncodings(h http.Header) []string {
	var out []string
	for _, v := range h.Values("Content-Encoding") {
		for _, token := range strings.Split(v, ",") {
			if token = strings.ToLower(strings.TrimSpace(token)); token != "" {
				out = append(out, token)
			}
		}
	}
	return out
}

// resettableReader buffers what a first decoder consumed so a second can
// start over from the beginning.
type resettableReader struct {
	r      io.Reader
	buf    *bytes.Buffer
	source io.Reader
}

func newResettableReader(r io.Reader) *resettableReader {
	buf := bytes.NewBuffer(make([]byte, 0, 128))
	return &resettableReader{r: io.TeeReader(r, buf), buf: buf, source: r}
}

func (rr *resettableReader) Read(p []byte) (int, error) {
	return rr.r.Read(p)
}

func (rr *resettableReader) Reset() {
	rr.r = io.MultiReader(bytes.NewReader(rr.buf.Bytes()), rr.source)
}

// tryDeflate decodes zlib-wrapped deflate, falling back to raw deflate for
// servers that omit the zlib header.
func tryDeflate(r io.Reader) (io.ReadCloser, error) {
	rr := newResettableReader(r)
	if zr, err := zlib.NewReader(rr); err == nil {
		return zr, nil
	}
	rr.Reset()
	return flate.NewReader(rr), nil
}
