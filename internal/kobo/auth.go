package kobo

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"kobodown/internal/mediatype"
)

// bearerHeader builds an Authorization value from an access token. A
// token with bytes that cannot appear in a header value yields ok=false.
func bearerHeader(token string) (string, bool) {
	for i := 0; i < len(token); i++ {
		b := token[i]
		if b < 0x21 || b == 0x7f {
			return "", false
		}
	}
	return "Bearer " + token, true
}

// authorizedRequest performs req with the session's bearer token,
// retrying exactly once through refreshAuth after a 401. A 401 on the
// retry is returned unmodified. The session must be fully logged in.
func (c *Client) authorizedRequest(ctx context.Context, req *Request) (*Response, error) {
	if !c.state.IsLoggedIn() {
		return nil, ErrNotLoggedIn
	}
	auth, ok := bearerHeader(c.state.AccessToken())
	if !ok {
		return nil, ErrNotLoggedIn
	}

	attempt := req.Clone()
	attempt.Header.Set("Authorization", auth)
	resp, err := c.rawRequest(ctx, attempt)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.closeBody()

	auth, err = c.refreshAuth(ctx)
	if err != nil {
		return nil, err
	}
	if !c.state.IsLoggedIn() {
		return nil, ErrNotLoggedIn
	}
	retry := req.Clone()
	retry.Header.Set("Authorization", auth)
	return c.rawRequest(ctx, retry)
}

// anonRequest performs req with whatever authorization is obtainable,
// registering the device first when needed. Used by calls that work
// without a full user login. Same single-retry contract as
// authorizedRequest.
func (c *Client) anonRequest(ctx context.Context, req *Request) (*Response, error) {
	auth, err := c.getAuthorization(ctx)
	if err != nil {
		return nil, err
	}

	attempt := req.Clone()
	attempt.Header.Set("Authorization", auth)
	resp, err := c.rawRequest(ctx, attempt)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.closeBody()

	auth, err = c.refreshAuth(ctx)
	if err != nil {
		return nil, err
	}
	retry := req.Clone()
	retry.Header.Set("Authorization", auth)
	return c.rawRequest(ctx, retry)
}

type tokenResponse struct {
	TokenType    string `json:"TokenType"`
	AccessToken  string `json:"AccessToken"`
	RefreshToken string `json:"RefreshToken"`
	UserKey      string `json:"UserKey"`
}

// refreshAuth exchanges the refresh token for a new pair when one is
// available, then rebuilds the authorization header. The user identity
// is preserved across a refresh.
func (c *Client) refreshAuth(ctx context.Context) (string, error) {
	token := c.state.AccessToken()
	refresh := c.state.RefreshToken()
	access, okAccess := bearerHeader(token)
	if token != "" && refresh != "" && okAccess {
		body := struct {
			AppVersion   string `json:"AppVersion"`
			ClientKey    string `json:"ClientKey"`
			PlatformId   string `json:"PlatformId"`
			RefreshToken string `json:"RefreshToken"`
		}{
			AppVersion:   appVersion,
			ClientKey:    base64.StdEncoding.EncodeToString([]byte(platformID)),
			PlatformId:   platformID,
			RefreshToken: refresh,
		}

		u, err := url.Parse(tokenRefreshURL)
		if err != nil {
			return "", err
		}
		req := NewRequest(http.MethodPost, u)
		req.Header.Set("Authorization", access)
		req.Body, err = mediatype.EncodeJSON(req.Header, body)
		if err != nil {
			return "", fmt.Errorf("refresh auth: %w", err)
		}

		resp, err := c.rawRequest(ctx, req)
		if err != nil {
			return "", fmt.Errorf("refresh auth: %w", err)
		}
		var tokens tokenResponse
		decodeErr := mediatype.DecodeJSON(resp.StatusCode, resp.Header, resp.Body, &tokens)
		resp.closeBody()
		if decodeErr != nil {
			return "", fmt.Errorf("refresh auth: %w", decodeErr)
		}
		if tokens.TokenType != "Bearer" {
			return "", fmt.Errorf("refresh auth: %w: %q", ErrTokenType, tokens.TokenType)
		}
		c.state.RefreshTokens(tokens.AccessToken, tokens.RefreshToken)
		c.logger.Debug("token pair refreshed")
	}

	return c.getAuthorization(ctx)
}

// getAuthorization converges on a usable authorization header: a valid
// header from the current access token wins; a malformed token clears
// the pair and retries; a missing token triggers device authentication.
// The loop is bounded so persistently corrupt persisted tokens surface
// as ErrAuthExhausted instead of spinning.
func (c *Client) getAuthorization(ctx context.Context) (string, error) {
	for range 3 {
		if token := c.state.AccessToken(); token != "" {
			if h, ok := bearerHeader(token); ok {
				return h, nil
			}
			c.state.ClearTokens()
		}
		if err := c.authenticateDevice(ctx, ""); err != nil {
			return "", err
		}
		if err := c.state.Save(); err != nil {
			return "", fmt.Errorf("save session: %w", err)
		}
	}
	return "", ErrAuthExhausted
}

// authenticateDevice registers the device with the store and installs
// the returned token pair. With a userKey it rebinds the session to that
// user; without one it is a no-op when auth is already established.
func (c *Client) authenticateDevice(ctx context.Context, userKey string) error {
	if c.state.IsAuthSet() && userKey == "" {
		return nil
	}

	deviceID := c.state.DeviceID()
	if deviceID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate device id: %w", err)
		}
		deviceID = id.String()
		c.state.SetDeviceID(deviceID)
		c.logger.Info("generated new device id", "device_id", deviceID)
	}

	body := struct {
		AffiliateName string `json:"AffiliateName"`
		AppVersion    string `json:"AppVersion"`
		ClientKey     string `json:"ClientKey"`
		DeviceId      string `json:"DeviceId"`
		PlatformId    string `json:"PlatformId"`
		UserKey       string `json:"UserKey,omitempty"`
	}{
		AffiliateName: affiliate,
		AppVersion:    appVersion,
		ClientKey:     base64.StdEncoding.EncodeToString([]byte(platformID)),
		DeviceId:      deviceID,
		PlatformId:    platformID,
		UserKey:       userKey,
	}

	u, err := url.Parse(deviceAuthURL)
	if err != nil {
		return err
	}
	req := NewRequest(http.MethodPost, u)
	req.Body, err = mediatype.EncodeJSON(req.Header, body)
	if err != nil {
		return fmt.Errorf("device auth: %w", err)
	}

	resp, err := c.rawRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("device auth: %w", err)
	}
	var tokens tokenResponse
	decodeErr := mediatype.DecodeJSON(resp.StatusCode, resp.Header, resp.Body, &tokens)
	resp.closeBody()
	if decodeErr != nil {
		return fmt.Errorf("device auth: %w", decodeErr)
	}
	if tokens.TokenType != "Bearer" {
		return fmt.Errorf("device auth: %w: %q", ErrTokenType, tokens.TokenType)
	}

	c.state.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	if tokens.UserKey != "" {
		c.state.SetUserKey(tokens.UserKey)
	}
	c.logger.Info("device authenticated")
	return nil
}
