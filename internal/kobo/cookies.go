package kobo

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// isCookieNameByte matches RFC 7230 token characters.
func isCookieNameByte(b byte) bool {
	switch b {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// isCookieValueByte matches printable ASCII excluding control characters,
// whitespace, and the separators that break Cookie header syntax.
func isCookieValueByte(b byte) bool {
	if b >= 0x80 || b <= 0x20 || b == 0x7f {
		return false
	}
	switch b {
	case '"', ',', ';', '\\':
		return false
	}
	return true
}

// isCookieCompliant decides whether a stored cookie may be echoed back.
// Non-compliant cookies stay in the jar but are never put on the wire.
func isCookieCompliant(c *http.Cookie) bool {
	if c.Name == "" {
		return false
	}
	for i := 0; i < len(c.Name); i++ {
		if !isCookieNameByte(c.Name[i]) {
			return false
		}
	}
	for i := 0; i < len(c.Value); i++ {
		if !isCookieValueByte(c.Value[i]) {
			return false
		}
	}
	return true
}

// pushCookies attaches the compliant subset of matching cookies to the
// outgoing request.
func (c *Client) pushCookies(req *Request) {
	var b strings.Builder
	for _, cookie := range c.jar.Cookies(req.URL) {
		if !isCookieCompliant(cookie) {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(cookie.Name)
		b.WriteByte('=')
		b.WriteString(cookie.Value)
	}
	if b.Len() > 0 {
		req.Header.Set("Cookie", b.String())
	}
}

// pullCookies stores every Set-Cookie header from the response, keeping
// values the standard parser would reject so the jar reflects what the
// server actually sent.
func (c *Client) pullCookies(u *url.URL, resp *Response) {
	var cookies []*http.Cookie
	for _, line := range resp.Header.Values("Set-Cookie") {
		if cookie := parseSetCookie(line); cookie != nil {
			cookies = append(cookies, cookie)
		}
	}
	if len(cookies) > 0 {
		c.jar.SetCookies(u, cookies)
	}
}

// parseSetCookie is a lenient Set-Cookie parser: the name/value pair is
// taken verbatim up to the first semicolon, and only the attributes the
// jar consumes are interpreted.
func parseSetCookie(line string) *http.Cookie {
	parts := strings.Split(line, ";")
	name, value, ok := strings.Cut(strings.TrimSpace(parts[0]), "=")
	if !ok || name == "" {
		return nil
	}
	cookie := &http.Cookie{Name: name, Value: value}
	for _, part := range parts[1:] {
		attr, val, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch strings.ToLower(attr) {
		case "path":
			cookie.Path = val
		case "domain":
			cookie.Domain = val
		case "expires":
			if t, ok := parseCookieTime(val); ok {
				cookie.Expires = t
			}
		case "max-age":
			if n, err := strconv.Atoi(val); err == nil {
				if n <= 0 {
					n = -1
				}
				cookie.MaxAge = n
			}
		case "secure":
			cookie.Secure = true
		case "httponly":
			cookie.HttpOnly = true
		}
	}
	return cookie
}

// cookieTimeFormats are the Expires layouts seen in the wild: RFC 1123,
// the old Netscape form with dashes, and both with numeric offsets.
var cookieTimeFormats = []string{
	time.RFC1123,
	"Mon, 02-Jan-2006 15:04:05 MST",
	time.RFC1123Z,
	"Mon, 02-Jan-2006 15:04:05 -0700",
}

func parseCookieTime(val string) (time.Time, bool) {
	for _, layout := range cookieTimeFormats {
		if t, err := time.Parse(layout, val); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
