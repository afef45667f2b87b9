package mcp

import (
	"fmt"
	"net/http"
	"sync/atomic"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPStatusError carries the HTTP status an endpoint rejected a transport with.
type HTTPStatusError struct {
	Code int
	Err  error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %v", e.Code, e.Err)
}

func (e *HTTPStatusError) Unwrap() error { return e.Err }

// StatusCode returns the rejecting HTTP status.
func (e *HTTPStatusError) StatusCode() int { return e.Code }

// statusRecorder is a round tripper that remembers the first 4xx answer to a
// POST. The SDK reports those answers as plain text, so the status is taken
// from the wire instead.
type statusRecorder struct {
	base   http.RoundTripper
	status atomic.Int32
}

func (r *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.base.RoundTrip(req)
	if err == nil && req.Method == http.MethodPost && resp.StatusCode >= 400 && resp.StatusCode < 500 {
		r.status.CompareAndSwap(0, int32(resp.StatusCode))
	}
	return resp, err
}

// client returns a copy of httpClient whose requests pass through r.
func (r *statusRecorder) client(httpClient *http.Client) *http.Client {
	wrapped := &http.Client{}
	if httpClient != nil {
		*wrapped = *httpClient
	}
	r.base = wrapped.Transport
	if r.base == nil {
		r.base = http.DefaultTransport
	}
	wrapped.Transport = r
	return wrapped
}

// streamableTransport is the streamable HTTP transport plus the status its
// endpoint rejected it with, if any.
type streamableTransport struct {
	*sdkmcp.StreamableClientTransport
	rec *statusRecorder
}

func newStreamableTransport(endpoint string, httpClient *http.Client) *streamableTransport {
	rec := &statusRecorder{}
	return &streamableTransport{
		StreamableClientTransport: &sdkmcp.StreamableClientTransport{
			Endpoint:   endpoint,
			HTTPClient: rec.client(httpClient),
		},
		rec: rec,
	}
}

func (t *streamableTransport) rejectedStatus() int {
	return int(t.rec.status.Load())
}

// withRejectedStatus wraps a connect error in *HTTPStatusError when transport
// saw a 4xx answer.
func withRejectedStatus(transport sdkmcp.Transport, err error) error {
	st, ok := transport.(interface{ rejectedStatus() int })
	if err == nil || !ok {
		return err
	}
	if code := st.rejectedStatus(); code != 0 {
		return &HTTPStatusError{Code: code, Err: err}
	}
	return err
}
