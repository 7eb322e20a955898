package kobo

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"kobodown/internal/session"
)

type memStore struct {
	values map[session.Field]string
	saves  int
}

func newMemStore() *memStore {
	return &memStore{values: make(map[session.Field]string)}
}

func (s *memStore) Get(f session.Field) string  { return s.values[f] }
func (s *memStore) Set(f session.Field, v string) { s.values[f] = v }
func (s *memStore) Persist() error              { s.saves++; return nil }

func loggedInState() *session.State {
	store := newMemStore()
	store.values[session.FieldDeviceID] = "device-1"
	store.values[session.FieldAccessToken] = "access-1"
	store.values[session.FieldRefreshToken] = "refresh-1"
	store.values[session.FieldUserKey] = "userkey-1"
	store.values[session.FieldUserID] = "user-1"
	return session.New(store)
}

// fakeTransport routes each request through a handler and records every
// request it sees.
type fakeTransport struct {
	handler  func(req *Request) (*Response, error)
	requests []*Request
}

func (t *fakeTransport) RoundTrip(_ context.Context, req *Request) (*Response, error) {
	t.requests = append(t.requests, req)
	return t.handler(req)
}

func (t *fakeTransport) Stream(_ context.Context, req *Request, out io.Writer) (*Response, error) {
	t.requests = append(t.requests, req)
	resp, err := t.handler(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 && resp.Body != nil {
		if _, err := io.Copy(out, resp.Body); err != nil {
			return nil, err
		}
	}
	resp.Body = nil
	return resp, nil
}

func textResponse(status int, contentType, body string) *Response {
	h := make(http.Header)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func jsonResponse(status int, body string) *Response {
	return textResponse(status, "application/json; charset=utf-8", body)
}

func mustURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

const tokenBody = `{"TokenType":"Bearer","AccessToken":"access-2","RefreshToken":"refresh-2"}`
