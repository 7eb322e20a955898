package kobo

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"kobodown/internal/mediatype"
)

// ErrNoDownload reports a content access descriptor with no usable
// download location.
var ErrNoDownload = errors.New("no usable download url")

// AccessBook describes where to fetch one book and how to decrypt it.
// ContentKeys is nil for books distributed without rights management;
// otherwise it maps archive entry names to their decryption keys.
type AccessBook struct {
	URL         *url.URL
	Size        uint64
	ContentKeys map[string][]byte
}

// sessionKey derives the key protecting the per-entry content keys.
// It is the lower half of the digest over device and user id.
func sessionKey(deviceID, userID string) []byte {
	sum := sha256.Sum256([]byte(deviceID + userID))
	return sum[16:]
}

// decryptContentKey unwraps one base64 content key with the session
// key. The wrapped key is a single AES block with no padding.
func decryptContentKey(key []byte, encoded string) ([]byte, error) {
	wrapped, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("content key is not base64: %w", err)
	}
	if len(wrapped) != aes.BlockSize {
		return nil, fmt.Errorf("content key is %d bytes, want %d", len(wrapped), aes.BlockSize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, aes.BlockSize)
	block.Decrypt(out, wrapped)
	return out, nil
}

// stripTracking removes the click tracking parameter from a download
// URL. The parameter arrives both plain and percent encoded, and the
// server rejects signed URLs whose remaining query is reordered, so the
// query survives byte for byte except for the dropped pairs.
func stripTracking(u *url.URL) {
	if u.RawQuery == "" {
		return
	}
	var kept []string
	stripped := false
	for _, kv := range strings.Split(u.RawQuery, "&") {
		if kv == "" {
			continue
		}
		if kv == "b" || strings.HasPrefix(kv, "b=") || strings.HasPrefix(kv, "%62=") {
			stripped = true
			continue
		}
		kept = append(kept, kv)
	}
	if stripped {
		u.RawQuery = strings.Join(kept, "&")
	}
}

type rawContentURL struct {
	DRMType     string `json:"DRMType"`
	URLFormat   string `json:"UrlFormat"`
	DownloadURL string `json:"DownloadUrl"`
	ByteSize    uint64 `json:"ByteSize"`
}

func validDRMType(s string) bool {
	return s == "KDRM" || s == "SignedNoDrm"
}

func validURLFormat(s string) bool {
	return s == "EPUB3" || s == "EPUB3FL" || s == "KEPUB"
}

// pickContentURL selects the first download location the client can
// handle, skipping entries with unknown formats or malformed URLs.
func pickContentURL(raws []json.RawMessage) (u *url.URL, size uint64, hasDRM bool, err error) {
	for _, raw := range raws {
		var c rawContentURL
		if err := json.Unmarshal(raw, &c); err != nil {
			continue
		}
		if !validDRMType(c.DRMType) || !validURLFormat(c.URLFormat) {
			continue
		}
		parsed, err := url.Parse(c.DownloadURL)
		if err != nil || !parsed.IsAbs() {
			continue
		}
		stripTracking(parsed)
		return parsed, c.ByteSize, c.DRMType == "KDRM", nil
	}
	return nil, 0, false, ErrNoDownload
}

type contentKey struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type accessDescriptor struct {
	ContentUrls []json.RawMessage `json:"ContentUrls"`
	ContentKeys []contentKey      `json:"ContentKeys"`
}

// decodeDescriptor accepts both shapes the endpoint serves: the keyed
// object and the positional two-element sequence [contentUrls, contentKeys?].
func decodeDescriptor(raw json.RawMessage) (accessDescriptor, error) {
	var d accessDescriptor
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return d, json.Unmarshal(raw, &d)
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return d, err
	}
	if len(parts) == 0 {
		return d, errors.New("empty positional descriptor")
	}
	if err := json.Unmarshal(parts[0], &d.ContentUrls); err != nil {
		return d, err
	}
	if len(parts) > 1 {
		if err := json.Unmarshal(parts[1], &d.ContentKeys); err != nil {
			return d, err
		}
	}
	return d, nil
}

// AccessBook asks the content access endpoint where to download one
// book and decrypts the content keys protecting it.
func (c *Client) AccessBook(ctx context.Context, productID string) (AccessBook, error) {
	deviceID := c.state.DeviceID()
	userID := c.state.UserID()
	if deviceID == "" || userID == "" {
		return AccessBook{}, ErrNotLoggedIn
	}
	key := sessionKey(deviceID, userID)

	settings, err := c.fetchSettings(ctx)
	if err != nil {
		return AccessBook{}, err
	}
	u, err := url.Parse(templateURL(settings.ContentAccessBook, productID))
	if err != nil {
		return AccessBook{}, fmt.Errorf("parse content access url: %w", err)
	}
	q := u.Query()
	q.Set("DisplayProfile", displayProfile)
	u.RawQuery = q.Encode()

	resp, err := c.authorizedRequest(ctx, NewRequest(http.MethodGet, u))
	if err != nil {
		return AccessBook{}, err
	}
	var raw json.RawMessage
	decodeErr := mediatype.DecodeJSON(resp.StatusCode, resp.Header, resp.Body, &raw)
	resp.closeBody()
	if decodeErr != nil {
		return AccessBook{}, fmt.Errorf("decode content access descriptor: %w", decodeErr)
	}
	descriptor, err := decodeDescriptor(raw)
	if err != nil {
		return AccessBook{}, fmt.Errorf("decode content access descriptor: %w", err)
	}

	dl, size, hasDRM, err := pickContentURL(descriptor.ContentUrls)
	if err != nil {
		return AccessBook{}, err
	}

	var keys map[string][]byte
	if hasDRM {
		if descriptor.ContentKeys == nil {
			return AccessBook{}, errors.New("content access descriptor is missing content keys")
		}
		keys = make(map[string][]byte, len(descriptor.ContentKeys))
		for _, ck := range descriptor.ContentKeys {
			value, err := decryptContentKey(key, ck.Value)
			if err != nil {
				return AccessBook{}, fmt.Errorf("content key %q: %w", ck.Name, err)
			}
			keys[ck.Name] = value
		}
	} else if descriptor.ContentKeys != nil {
		return AccessBook{}, errors.New("content access descriptor carries content keys without rights management")
	}

	return AccessBook{URL: dl, Size: size, ContentKeys: keys}, nil
}
