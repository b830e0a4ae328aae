package parser

import (
	"net/http"
	"time"
)

const (
	defaultFetchTimeout = 15 * time.Second
	fetchAccept         = "application/yaml, application/json;q=0.9, */*;q=0.5"
)

// HTTPClient fetches remote documents for references.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchOptions configures the client returned by NewFetchClient.
type FetchOptions struct {
	// Timeout bounds each fetch. Zero means 15s.
	Timeout time.Duration
	// Headers are sent with every fetch unless the request already carries
	// them, e.g. credentials for a private schema registry.
	Headers http.Header
}

type fetchClient struct {
	client  *http.Client
	headers http.Header
}

// NewFetchClient returns the HTTPClient remote references are fetched with
// unless WithHTTPClient supplies another.
func NewFetchClient(opts FetchOptions) HTTPClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	headers := make(http.Header, len(opts.Headers)+1)
	for key, values := range opts.Headers {
		for _, value := range values {
			headers.Add(key, value)
		}
	}
	if headers.Get("Accept") == "" {
		headers.Set("Accept", fetchAccept)
	}
	return &fetchClient{
		client:  &http.Client{Timeout: timeout},
		headers: headers,
	}
}

func (c *fetchClient) Do(req *http.Request) (*http.Response, error) {
	for key, values := range c.headers {
		if len(req.Header.Values(key)) > 0 {
			continue
		}
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	return c.client.Do(req)
}
