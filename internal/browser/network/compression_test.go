// browser/network/compression_test.go
package network

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = "The quick brown fox jumps over the lazy dog. 0123456789"

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func rawDeflateBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func brotliBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func encodedResponse(encoding string, body []byte) *http.Response {
	h := http.Header{}
	if encoding != "" {
		h.Set("Content-Encoding", encoding)
	}
	h.Set("Content-Length", "123")
	return &http.Response{Header: h, Body: io.NopCloser(bytes.NewReader(body)), ContentLength: 123}
}

func TestDecompressResponse_Encodings(t *testing.T) {
	payload := []byte(samplePayload)
	cases := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"Gzip", "gzip", gzipBytes(t, payload)},
		{"XGzip", "x-gzip", gzipBytes(t, payload)},
		{"DeflateZlib", "deflate", zlibBytes(t, payload)},
		{"DeflateRaw", "deflate", rawDeflateBytes(t, payload)},
		{"Brotli", "br", brotliBytes(t, payload)},
		{"Zstd", "zstd", zstdBytes(t, payload)},
		{"Identity", "identity", payload},
		{"Layered", "deflate, gzip", gzipBytes(t, zlibBytes(t, payload))},
		{"UpperCase", "GZIP", gzipBytes(t, payload)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := encodedResponse(tc.encoding, tc.body)
			require.NoError(t, DecompressResponse(resp))

			got, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.NoError(t, resp.Body.Close())
			assert.Equal(t, samplePayload, string(got))
			assert.Empty(t, resp.Header.Get("Content-Encoding"))
			assert.Empty(t, resp.Header.Get("Content-Length"))
			assert.Equal(t, int64(-1), resp.ContentLength)
			assert.True(t, resp.Uncompressed)
		})
	}
}

func TestDecompressResponse_NoEncodingUntouched(t *testing.T) {
	resp := encodedResponse("", []byte(samplePayload))
	require.NoError(t, DecompressResponse(resp))
	assert.False(t, resp.Uncompressed)
	assert.Equal(t, "123", resp.Header.Get("Content-Length"))

	assert.NoError(t, DecompressResponse(nil))
}

func TestDecompressResponse_Errors(t *testing.T) {
	err := DecompressResponse(encodedResponse("compress", []byte("x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported Content-Encoding layer: compress")

	err = DecompressResponse(encodedResponse("gzip", []byte("not gzip at all")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gzip initialization error")
}

func TestDecompressResponse_PooledReadersReused(t *testing.T) {
	for i := 0; i < 3; i++ {
		for _, enc := range []string{"gzip", "br", "zstd"} {
			var body []byte
			switch enc {
			case "gzip":
				body = gzipBytes(t, []byte(samplePayload))
			case "br":
				body = brotliBytes(t, []byte(samplePayload))
			case "zstd":
				body = zstdBytes(t, []byte(samplePayload))
			}
			resp := encodedResponse(enc, body)
			require.NoError(t, DecompressResponse(resp))
			got, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.NoError(t, resp.Body.Close())
			assert.Equal(t, samplePayload, string(got), enc)
		}
	}
}

func TestCompressionMiddleware_Integration(t *testing.T) {
	var acceptEncoding string
	compressed := brotliBytes(t, []byte(samplePayload))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acceptEncoding = r.Header.Get("Accept-Encoding")
		w.Header().Set("Content-Encoding", "br")
		w.Write(compressed)
	}))
	defer server.Close()

	client := &http.Client{Transport: NewCompressionMiddleware(nil)}
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, samplePayload, string(body))
	assert.Equal(t, AcceptEncoding, acceptEncoding)

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("Accept-Encoding", "br")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "br", acceptEncoding)
}

func TestCompressionMiddleware_BrokenBodyFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write([]byte(strings.Repeat("z", 32)))
	}))
	defer server.Close()

	client := &http.Client{Transport: NewCompressionMiddleware(nil)}
	_, err := client.Get(server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize response decompression")
}
