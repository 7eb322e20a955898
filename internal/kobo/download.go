package kobo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"kobodown/internal/mediatype"
)

// Download streams the book archive at u into out. The URL comes from a
// content access descriptor and is already signed, so the request is
// made once with no redirect following or token refresh.
func (c *Client) Download(ctx context.Context, u *url.URL, out io.Writer) error {
	if !c.state.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	auth, ok := bearerHeader(c.state.AccessToken())
	if !ok {
		return ErrNotLoggedIn
	}

	req := NewRequest(http.MethodGet, u)
	req.Header.Set("Authorization", auth)
	defaultHeaders(req.Header)
	c.pushCookies(req)

	resp, err := c.transport.Stream(ctx, req, out)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	c.pullCookies(u, resp)
	resp.closeBody()

	if err := mediatype.CheckSuccess(resp.StatusCode); err != nil {
		return err
	}
	return nil
}
