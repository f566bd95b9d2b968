package main

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// httpDataLoader fetches a key's value from an upstream HTTP origin
// (UpstreamURL + "/" + key), used as the DataLoader for the prefetcher and
// Warmer when CHRONOS_UPSTREAM_URL is configured. A 404 is treated as
// "not found", any other non-2xx or transport error is returned as an
// error (spec §7: BackendUnavailable, logged and counted, never surfaced
// to the client).
type httpDataLoader struct {
	baseURL string
	client  *http.Client
}

func newHTTPDataLoader(baseURL string, timeout time.Duration) *httpDataLoader {
	return &httpDataLoader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (l *httpDataLoader) Load(ctx context.Context, key string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, &upstreamStatusError{status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

type upstreamStatusError struct {
	status int
}

func (e *upstreamStatusError) Error() string {
	return http.StatusText(e.status)
}
