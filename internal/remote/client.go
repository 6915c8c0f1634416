// Package remote carries the HTTP plumbing shared by the object storage and
// metadata table clients: an instrumented client, credential headers and the
// transport/remote error types.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxErrorBody caps how much of a failed response is kept for error messages.
const maxErrorBody = 4096

// NewHTTPClient returns a client whose transport emits OpenTelemetry spans and
// whose requests are bounded by timeout. There is no retry.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Client sends authenticated requests to one first-party service.
type Client struct {
	http    *http.Client
	baseURL string
	key     string
}

// NewClient builds a Client for baseURL authenticating with the service-role key.
func NewClient(httpClient *http.Client, baseURL, serviceKey string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     serviceKey,
	}
}

// BaseURL returns the service base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Response is a fully read reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// Do sends one request and reads the whole body. pathAndQuery must start with "/".
// Only transport failures are returned as errors; status checks belong to the caller.
func (c *Client) Do(ctx context.Context, op, method, pathAndQuery string, body io.Reader, size int64, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathAndQuery, body)
	if err != nil {
		return nil, &TransportError{Operation: op, Err: fmt.Errorf("build request: %w", err)}
	}
	if body != nil && size >= 0 {
		req.ContentLength = size
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Operation: op, Err: fmt.Errorf("read response: %w", err)}
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// Expect returns a *RemoteError unless resp carries one of the accepted statuses.
func Expect(op string, resp *Response, accepted ...int) error {
	for _, code := range accepted {
		if resp.StatusCode == code {
			return nil
		}
	}
	return &RemoteError{Operation: op, StatusCode: resp.StatusCode, Body: truncate(resp.Body)}
}

// DecodeError wraps a schema or JSON failure on an otherwise successful reply.
func DecodeError(op string, resp *Response, err error) error {
	return &RemoteError{Operation: op, StatusCode: resp.StatusCode, Body: truncate(resp.Body), Err: err}
}

func truncate(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return string(b)
}
