package kobo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"kobodown/internal/mediatype"
)

// Settings is the server-provided endpoint map fetched from the
// initialization call. URL templates carry a {ProductId} placeholder.
type Settings struct {
	SignInPage        string `json:"sign_in_page"`
	Book              string `json:"book"`
	LibrarySync       string `json:"library_sync"`
	UserWishlist      string `json:"user_wishlist"`
	ContentAccessBook string `json:"content_access_book"`
}

// fetchSettings lazily loads and caches the endpoint settings for the
// life of the client. The call is anonymous but still benefits from the
// 401-refresh contract.
func (c *Client) fetchSettings(ctx context.Context) (*Settings, error) {
	if c.settings != nil {
		return c.settings, nil
	}

	u, err := url.Parse(initializationURL)
	if err != nil {
		return nil, err
	}
	resp, err := c.anonRequest(ctx, NewRequest(http.MethodGet, u))
	if err != nil {
		return nil, fmt.Errorf("fetch settings: %w", err)
	}
	var payload struct {
		Resources Settings `json:"Resources"`
	}
	decodeErr := mediatype.DecodeJSON(resp.StatusCode, resp.Header, resp.Body, &payload)
	resp.closeBody()
	if decodeErr != nil {
		return nil, fmt.Errorf("fetch settings: %w", decodeErr)
	}

	c.settings = &payload.Resources
	return c.settings, nil
}

// templateURL substitutes the product id into a settings URL template.
func templateURL(template, productID string) string {
	return strings.ReplaceAll(template, "{ProductId}", productID)
}
