package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StatusError reports a non-2xx response from the remote image host.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPFetcher fetches GET {baseURL}/{remote_filename}.
type HTTPFetcher struct {
	baseURL  string
	client   *http.Client
	maxBytes int64
}

var _ Fetcher = (*HTTPFetcher)(nil)

// HTTPFetcherOption customises an HTTPFetcher.
type HTTPFetcherOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client. Its Timeout is left untouched.
func WithHTTPClient(client *http.Client) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithMaxBodyBytes caps the response body read per fetch.
func WithMaxBodyBytes(n int64) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// NewHTTPFetcher builds a fetcher for baseURL with the given per-request timeout.
func NewHTTPFetcher(baseURL string, timeout time.Duration, opts ...HTTPFetcherOption) (*HTTPFetcher, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("assets: parse base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("assets: base url %q must be an absolute http(s) url", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	f := &HTTPFetcher{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		maxBytes: DefaultMaxImageBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// URLFor returns the address fetched for slot.
func (f *HTTPFetcher) URLFor(slot Slot) string {
	return f.baseURL + "/" + url.PathEscape(slot.RemoteFilename)
}

// Fetch downloads the slot's image. Non-2xx responses yield *StatusError; bodies over the
// size limit wrap ErrImageTooLarge.
func (f *HTTPFetcher) Fetch(ctx context.Context, slot Slot) ([]byte, error) {
	endpoint := f.URLFor(slot)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/webp")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: endpoint, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", endpoint, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", endpoint, ErrImageTooLarge, f.maxBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("GET " + endpoint + ": empty body")
	}
	return data, nil
}
