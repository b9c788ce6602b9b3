// ABOUTME: Shared streaming HTTP POST used by all vendor adapters
// ABOUTME: One shared client with connection reuse; non-2xx becomes an error

package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// streamClient is shared across all vendor streams. No overall timeout:
// streams are long-lived and cancellation comes from the request context.
var streamClient = &http.Client{
	Transport: &http.Transport{
		TLSHandshakeTimeout:   30 * time.Second,
		ResponseHeaderTimeout: 2 * time.Minute,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   4,
		ForceAttemptHTTP2:     true,
	},
}

// PostStream POSTs body to url with the given headers and returns the
// response body for incremental reading. The caller must close it. A
// non-2xx status reads the body and returns it inside the error.
func PostStream(ctx context.Context, url string, headers map[string]string, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, fmt.Errorf("vendor API error (status %d): %s", resp.StatusCode, string(msg))
	}
	return resp.Body, nil
}
