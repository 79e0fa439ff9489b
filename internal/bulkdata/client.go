package bulkdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"scryfall-ndjson/internal/config"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
)

// Entry is one dataset listed in the bulk-data index.
type Entry struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	DownloadURI     string `json:"download_uri"`
	UpdatedAt       string `json:"updated_at"`
	Size            int64  `json:"size"`
	ContentType     string `json:"content_type"`
	ContentEncoding string `json:"content_encoding"`
}

// Client talks to the bulk-data index and download endpoints. It never
// retries: any failure is returned to the caller as is.
type Client struct {
	indexURL  string
	userAgent string

	// meta serves the small index request, download the streaming one. They
	// differ only in timeout.
	meta     *http.Client
	download *http.Client
}

// NewClient builds a Client from the loaded configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		indexURL:  cfg.IndexURL,
		userAgent: cfg.UserAgent,
		meta:      &http.Client{Timeout: cfg.MetadataTimeout()},
		download:  &http.Client{Timeout: cfg.Timeout()},
	}
}

// Resolve fetches the index and returns the first entry whose type equals
// datasetType.
func (c *Client) Resolve(ctx context.Context, datasetType string) (*Entry, error) {
	req, err := c.newRequest(ctx, c.indexURL)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.meta.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bulk-data index request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read bulk-data index: %w", err)
	}

	return findEntry(body, datasetType)
}

// Open issues the streaming download request and returns its body. A gzip
// transfer encoding applied by the server is removed, so callers always read
// the plain JSON document. The caller must close the returned reader; closing
// it early abandons the rest of the download.
func (c *Client) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, uri)
	if err != nil {
		return nil, err
	}
	// Asking explicitly turns off net/http's own transparent decoding, which
	// leaves the choice of decoder here.
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	logrus.Debugf("download response | status=%d encoding=%q length=%d", resp.StatusCode, encoding, resp.ContentLength)

	switch encoding {
	case "", "identity":
		return resp.Body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to open gzip response body: %w", err)
		}
		return &gzipBody{Reader: zr, body: resp.Body}, nil
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("unsupported response content encoding %q", encoding)
	}
}

func (c *Client) newRequest(ctx context.Context, uri string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", uri, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &HTTPError{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
}

// findEntry validates the index payload and picks the entry for datasetType.
func findEntry(body []byte, datasetType string) (*Entry, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ShapeError{Reason: "index body is not a JSON object", Err: err}
	}

	var object string
	if raw, ok := payload["object"]; !ok || json.Unmarshal(raw, &object) != nil || object != "list" {
		return nil, &ShapeError{Reason: `index object marker is not "list"`}
	}

	raw, ok := payload["data"]
	if !ok {
		return nil, &ShapeError{Reason: "index has no data field"}
	}
	var data []json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &ShapeError{Reason: "index data is not a list", Err: err}
	}

	for _, item := range data {
		// Entries that are not objects, or whose type is not a string, can
		// never match and are skipped.
		if t := bytes.TrimSpace(item); len(t) == 0 || t[0] != '{' {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}
		if typ, ok := textField(fields, "type"); !ok || typ != datasetType {
			continue
		}

		uri, ok := textField(fields, "download_uri")
		if !ok || uri == "" {
			return nil, &ShapeError{Reason: fmt.Sprintf("%s entry missing download_uri", datasetType)}
		}
		return newEntry(fields, datasetType, uri), nil
	}

	return nil, &NotFoundError{Type: datasetType}
}

// newEntry fills the informational fields on a best-effort basis. They are
// only logged, so a value of the wrong type is left empty rather than
// failing the run.
func newEntry(fields map[string]json.RawMessage, datasetType, uri string) *Entry {
	e := &Entry{Type: datasetType, DownloadURI: uri}
	e.ID, _ = textField(fields, "id")
	e.Name, _ = textField(fields, "name")
	e.Description, _ = textField(fields, "description")
	e.UpdatedAt, _ = textField(fields, "updated_at")
	e.ContentType, _ = textField(fields, "content_type")
	e.ContentEncoding, _ = textField(fields, "content_encoding")
	e.Size = sizeField(fields["size"])
	return e
}

func textField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// sizeField accepts any JSON number, so 10 and 10.0 both read as 10.
func sizeField(raw json.RawMessage) int64 {
	var n json.Number
	if len(raw) == 0 || json.Unmarshal(raw, &n) != nil {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return 0
}

// gzipBody closes both the decompressor and the underlying response body.
type gzipBody struct {
	*gzip.Reader
	body io.ReadCloser
}

func (g *gzipBody) Close() error {
	zerr := g.Reader.Close()
	if err := g.body.Close(); err != nil {
		return err
	}
	return zerr
}
