package kobo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Request is the wire envelope handed to a Transport. A nil Body means
// the request carries none.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// NewRequest builds a request with an empty header map.
func NewRequest(method string, u *url.URL) *Request {
	return &Request{Method: method, URL: u, Header: make(http.Header)}
}

// Clone copies the request so one attempt's header mutations do not leak
// into a retry.
func (r *Request) Clone() *Request {
	return &Request{Method: r.Method, URL: r.URL, Header: r.Header.Clone(), Body: r.Body}
}

// Response is the wire envelope returned by a Transport. Body is nil for
// streamed calls whose payload went to the caller's sink.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

func (r *Response) closeBody() {
	if r.Body != nil {
		_ = r.Body.Close()
	}
}

// Transport performs one HTTP exchange. Implementations must not follow
// redirects or manage cookies; the client owns both.
type Transport interface {
	// RoundTrip performs the request and returns the response with its
	// body ready to read.
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
	// Stream performs the request and, on a 2xx status, copies the
	// response body into out. The returned response carries no body.
	Stream(ctx context.Context, req *Request, out io.Writer) (*Response, error)
}

// HTTPTransport is the net/http-backed Transport. Redirect following is
// disabled and no cookie jar is installed; both belong to the client.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport builds the default transport. No global timeout is
// set: content downloads are arbitrarily large and the caller cancels
// through the context.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (t *HTTPTransport) do(ctx context.Context, req *Request) (*http.Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for name, values := range req.Header {
		httpReq.Header[name] = values
	}
	if req.Body != nil {
		httpReq.ContentLength = int64(len(req.Body))
	}
	return t.client.Do(httpReq)
}

// RoundTrip implements Transport.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	resp, err := t.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}

// Stream implements Transport.
func (t *HTTPTransport) Stream(ctx context.Context, req *Request, out io.Writer) (*Response, error) {
	resp, err := t.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if _, err := io.Copy(out, resp.Body); err != nil {
			return nil, fmt.Errorf("stream response body: %w", err)
		}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header}, nil
}
