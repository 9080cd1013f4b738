package datasources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// httpClient issues source fetches with transparent response
// decompression. Remote association and LD APIs serve large gzip or zstd
// payloads; stdlib transport only handles gzip it negotiated itself.
type httpClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *httpClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &httpClient{client: &http.Client{Timeout: timeout}}
}

// get fetches url and returns the decompressed body. A status outside the
// 2xx range is a RequestError carrying the namespace for diagnostics.
func (h *httpClient) get(ctx context.Context, namespace, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %q: %w", namespace, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, zstd")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", namespace, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{Namespace: namespace, URL: url, Status: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader for %q: %w", namespace, err)
		}
		defer gz.Close()
		body = gz
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("zstd reader for %q: %w", namespace, err)
		}
		defer zr.Close()
		body = zr
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %q response: %w", namespace, err)
	}
	return raw, nil
}
