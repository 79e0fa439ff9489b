package bulkdata

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"scryfall-ndjson/internal/config"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIndex = `{"object":"list","data":[{"type":"default_cards","download_uri":"http://x/d.json","updated_at":"2024-01-01","size":10,"content_encoding":"gzip"}]}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.IndexURL = srv.URL + "/bulk-data"
	return NewClient(cfg)
}

func serveBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

func TestResolveReturnsMatchingEntry(t *testing.T) {
	var gotUA string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		io.WriteString(w, sampleIndex)
	})

	entry, err := client.Resolve(context.Background(), "default_cards")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultUserAgent, gotUA)
	assert.Equal(t, &Entry{
		Type:            "default_cards",
		DownloadURI:     "http://x/d.json",
		UpdatedAt:       "2024-01-01",
		Size:            10,
		ContentEncoding: "gzip",
	}, entry)
}

func TestResolvePicksFirstMatchAndSkipsOddEntries(t *testing.T) {
	body := `{"object":"list","has_more":false,"data":[
		"not-an-object",
		{"type":42},
		{"type":"oracle_cards","download_uri":"http://x/oracle.json"},
		{"type":"default_cards","download_uri":"http://x/first.json"},
		{"type":"default_cards","download_uri":"http://x/second.json"}
	]}`
	client := newTestClient(t, serveBody(body))

	entry, err := client.Resolve(context.Background(), "default_cards")
	require.NoError(t, err)
	assert.Equal(t, "http://x/first.json", entry.DownloadURI)

	entry, err = client.Resolve(context.Background(), "oracle_cards")
	require.NoError(t, err)
	assert.Equal(t, "http://x/oracle.json", entry.DownloadURI)
}

func TestResolveNotFound(t *testing.T) {
	client := newTestClient(t, serveBody(sampleIndex))

	_, err := client.Resolve(context.Background(), "oracle_cards")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf), "expected *NotFoundError, got %v", err)
	assert.Equal(t, "oracle_cards", nf.Type)
}

func TestResolveShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"NotJSON", `<html>oops</html>`},
		{"TopLevelArray", `[{"type":"default_cards"}]`},
		{"WrongObjectMarker", `{"object":"card","data":[]}`},
		{"MissingObjectMarker", `{"data":[]}`},
		{"MissingData", `{"object":"list"}`},
		{"DataNotList", `{"object":"list","data":{"type":"default_cards"}}`},
		{"MissingDownloadURI", `{"object":"list","data":[{"type":"default_cards"}]}`},
		{"EmptyDownloadURI", `{"object":"list","data":[{"type":"default_cards","download_uri":""}]}`},
		{"DownloadURINotString", `{"object":"list","data":[{"type":"default_cards","download_uri":7}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, serveBody(tt.body))

			_, err := client.Resolve(context.Background(), "default_cards")
			var se *ShapeError
			require.True(t, errors.As(err, &se), "expected *ShapeError, got %v", err)
		})
	}
}

func TestResolveToleratesInformationalFields(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantSize int64
	}{
		{"FloatSize", `{"object":"list","data":[{"type":"default_cards","download_uri":"http://x/d.json","size":10.0}]}`, 10},
		{"TextSize", `{"object":"list","data":[{"type":"default_cards","download_uri":"http://x/d.json","size":"big"}]}`, 0},
		{"NumericUpdatedAt", `{"object":"list","data":[{"type":"default_cards","download_uri":"http://x/d.json","updated_at":123,"size":4}]}`, 4},
		{"NullName", `{"object":"list","data":[{"type":"default_cards","download_uri":"http://x/d.json","name":null,"size":1e2}]}`, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, serveBody(tt.body))

			entry, err := client.Resolve(context.Background(), "default_cards")
			require.NoError(t, err)
			assert.Equal(t, "http://x/d.json", entry.DownloadURI)
			assert.Equal(t, tt.wantSize, entry.Size)
			assert.Empty(t, entry.UpdatedAt)
		})
	}
}

func TestResolveHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})

	_, err := client.Resolve(context.Background(), "default_cards")
	var he *HTTPError
	require.True(t, errors.As(err, &he), "expected *HTTPError, got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, he.StatusCode)
}

func TestOpenPlainBody(t *testing.T) {
	var gotUA string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		io.WriteString(w, `[{"id":1}]`)
	})

	body, err := client.Open(context.Background(), client.indexURL)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(data))
	assert.Equal(t, config.DefaultUserAgent, gotUA)
}

func TestOpenDecodesGzipTransport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "gzip")
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		io.WriteString(zw, `[{"id":1},{"id":2}]`)
		zw.Close()
	})

	body, err := client.Open(context.Background(), client.indexURL)
	require.NoError(t, err)

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, `[{"id":1},{"id":2}]`, string(data))
}

func TestOpenHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.Open(context.Background(), client.indexURL)
	var he *HTTPError
	require.True(t, errors.As(err, &he), "expected *HTTPError, got %v", err)
	assert.Equal(t, http.StatusNotFound, he.StatusCode)
}

func TestOpenUnsupportedEncoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		io.WriteString(w, "xx")
	})

	_, err := client.Open(context.Background(), client.indexURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "br")
}
