package httpclient

import (
	"context"
	"io"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/logger"
)

// Request represents an outbound HTTP request
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
}

// Client interface for making HTTP requests
type Client interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// RetryableClient implements Client with transport-level retries and
// exponential backoff for connection errors and 5xx responses
type RetryableClient struct {
	client *retryablehttp.Client
	logger *logger.Logger
}

// NewDefaultClient creates a client with sane retry defaults
func NewDefaultClient(logger *logger.Logger) Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil

	return &RetryableClient{
		client: rc,
		logger: logger,
	}
}

// Send makes an HTTP request and returns the response
func (c *RetryableClient) Send(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid outbound request").
			Mark(ierr.ErrHTTPClient)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Outbound request failed after retries").
			WithReportableDetails(map[string]any{
				"url": req.URL,
			}).
			Mark(ierr.ErrHTTPClient)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read response body").
			Mark(ierr.ErrHTTPClient)
	}

	headers := make(map[string]string)
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    headers,
	}, nil
}
