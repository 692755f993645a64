package magisk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the HTTP request timeout for installer fetches
	DefaultTimeout = 5 * time.Minute
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "apkforge/1.0"
)

// FetchError represents a failure to retrieve the module installer script.
// The installer is a hard dependency of the archive; it is never omitted.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves the bytes of a remote resource. The archive builder
// accepts this interface so tests can substitute a fixed byte sequence for
// the network-dependent installer script.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is the production Fetcher.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates an HTTP fetcher with sane defaults.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Allow up to 10 redirects
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: DefaultUserAgent,
	}
}

// Fetch downloads url into memory. Installer scripts are a few kilobytes,
// so no disk caching is involved.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read response body: %w", err)}
	}
	return body, nil
}
