package kobo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"kobodown/internal/session"
)

func TestBearerHeader(t *testing.T) {
	if h, ok := bearerHeader("tok123"); !ok || h != "Bearer tok123" {
		t.Fatalf("bearerHeader = %q, %v", h, ok)
	}
	if _, ok := bearerHeader("bad token"); ok {
		t.Fatalf("token with space accepted")
	}
	if _, ok := bearerHeader("bad\x7ftoken"); ok {
		t.Fatalf("token with DEL accepted")
	}
}

func TestAuthorizedRequestRequiresLogin(t *testing.T) {
	c := New(session.New(newMemStore()), WithTransport(&fakeTransport{}))
	_, err := c.authorizedRequest(context.Background(), NewRequest(http.MethodGet, mustURL("https://store.example/lib")))
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("err = %v, want ErrNotLoggedIn", err)
	}
}

func TestAuthorizedRequestRetriesOnceAfter401(t *testing.T) {
	transport := &fakeTransport{}
	transport.handler = func(req *Request) (*Response, error) {
		switch {
		case req.URL.String() == tokenRefreshURL:
			return jsonResponse(http.StatusOK, tokenBody), nil
		case req.Header.Get("Authorization") == "Bearer access-2":
			return jsonResponse(http.StatusOK, `{}`), nil
		default:
			return textResponse(http.StatusUnauthorized, "", ""), nil
		}
	}

	c := New(loggedInState(), WithTransport(transport))
	resp, err := c.authorizedRequest(context.Background(), NewRequest(http.MethodGet, mustURL("https://store.example/lib")))
	if err != nil {
		t.Fatalf("authorizedRequest: %v", err)
	}
	resp.closeBody()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	// attempt, refresh exchange, retry
	if len(transport.requests) != 3 {
		t.Fatalf("requests = %d, want 3", len(transport.requests))
	}
	if got := transport.requests[0].Header.Get("Authorization"); got != "Bearer access-1" {
		t.Fatalf("first attempt auth = %q", got)
	}
	if got := transport.requests[2].Header.Get("Authorization"); got != "Bearer access-2" {
		t.Fatalf("retry auth = %q", got)
	}
	if c.state.AccessToken() != "access-2" || c.state.RefreshToken() != "refresh-2" {
		t.Fatalf("token pair not refreshed: %q %q", c.state.AccessToken(), c.state.RefreshToken())
	}
	if c.state.UserID() != "user-1" {
		t.Fatalf("user identity lost across refresh")
	}
}

func TestAuthorizedRequestSecond401Returned(t *testing.T) {
	transport := &fakeTransport{}
	transport.handler = func(req *Request) (*Response, error) {
		if req.URL.String() == tokenRefreshURL {
			return jsonResponse(http.StatusOK, tokenBody), nil
		}
		return textResponse(http.StatusUnauthorized, "", ""), nil
	}

	c := New(loggedInState(), WithTransport(transport))
	resp, err := c.authorizedRequest(context.Background(), NewRequest(http.MethodGet, mustURL("https://store.example/lib")))
	if err != nil {
		t.Fatalf("authorizedRequest: %v", err)
	}
	resp.closeBody()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 passed through", resp.StatusCode)
	}
}

func TestRefreshAuthRejectsNonBearer(t *testing.T) {
	transport := &fakeTransport{}
	transport.handler = func(req *Request) (*Response, error) {
		return jsonResponse(http.StatusOK, `{"TokenType":"MAC","AccessToken":"a","RefreshToken":"r"}`), nil
	}

	c := New(loggedInState(), WithTransport(transport))
	_, err := c.refreshAuth(context.Background())
	if !errors.Is(err, ErrTokenType) {
		t.Fatalf("err = %v, want ErrTokenType", err)
	}
}

func TestGetAuthorizationRegistersDevice(t *testing.T) {
	transport := &fakeTransport{}
	transport.handler = func(req *Request) (*Response, error) {
		if req.URL.String() != deviceAuthURL {
			t.Fatalf("unexpected request to %s", req.URL)
		}
		return jsonResponse(http.StatusOK, tokenBody), nil
	}

	store := newMemStore()
	c := New(session.New(store), WithTransport(transport))
	auth, err := c.getAuthorization(context.Background())
	if err != nil {
		t.Fatalf("getAuthorization: %v", err)
	}
	if auth != "Bearer access-2" {
		t.Fatalf("auth = %q", auth)
	}
	if c.state.DeviceID() == "" {
		t.Fatalf("device id not generated")
	}
	if store.saves == 0 {
		t.Fatalf("session not persisted after device auth")
	}

	var body struct {
		AffiliateName string
		AppVersion    string
		ClientKey     string
		DeviceId      string
		PlatformId    string
		UserKey       string
	}
	if err := json.Unmarshal(transport.requests[0].Body, &body); err != nil {
		t.Fatalf("device auth body: %v", err)
	}
	if body.AffiliateName != affiliate || body.AppVersion != appVersion || body.PlatformId != platformID {
		t.Fatalf("device auth identity fields wrong: %+v", body)
	}
	if body.DeviceId != c.state.DeviceID() {
		t.Fatalf("device auth sent %q, state has %q", body.DeviceId, c.state.DeviceID())
	}
	if body.UserKey != "" {
		t.Fatalf("anonymous device auth carried a user key")
	}
}

func TestGetAuthorizationExhausted(t *testing.T) {
	transport := &fakeTransport{}
	transport.handler = func(req *Request) (*Response, error) {
		// Access token the client can never put in a header.
		return jsonResponse(http.StatusOK, `{"TokenType":"Bearer","AccessToken":"bad token","RefreshToken":"r"}`), nil
	}

	c := New(session.New(newMemStore()), WithTransport(transport))
	_, err := c.getAuthorization(context.Background())
	if !errors.Is(err, ErrAuthExhausted) {
		t.Fatalf("err = %v, want ErrAuthExhausted", err)
	}
}

func TestAuthenticateDeviceNoopWhenAuthSet(t *testing.T) {
	transport := &fakeTransport{}
	c := New(loggedInState(), WithTransport(transport))
	if err := c.authenticateDevice(context.Background(), ""); err != nil {
		t.Fatalf("authenticateDevice: %v", err)
	}
	if len(transport.requests) != 0 {
		t.Fatalf("requests = %d, want 0", len(transport.requests))
	}
}

func TestAuthenticateDeviceRebindsUser(t *testing.T) {
	transport := &fakeTransport{}
	transport.handler = func(req *Request) (*Response, error) {
		return jsonResponse(http.StatusOK, `{"TokenType":"Bearer","AccessToken":"a2","RefreshToken":"r2","UserKey":"uk2"}`), nil
	}

	c := New(loggedInState(), WithTransport(transport))
	if err := c.authenticateDevice(context.Background(), "uk1"); err != nil {
		t.Fatalf("authenticateDevice: %v", err)
	}
	var body struct{ UserKey string }
	if err := json.Unmarshal(transport.requests[0].Body, &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body.UserKey != "uk1" {
		t.Fatalf("UserKey sent = %q, want uk1", body.UserKey)
	}
	if c.state.UserKey() == "uk2" {
		// UserKey getter requires the user id, which SetUserKey clears.
		t.Fatalf("user key visible before user id restored")
	}
}
