package kobo

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"kobodown/internal/jsengine"
	"kobodown/internal/session"
)

// Identity of the reference Android client. The store rejects or hangs
// on requests that do not reproduce this fingerprint exactly, so none of
// these values are configurable.
const (
	affiliate       = "Kobo"
	appVersion      = "10.1.2.39807"
	platformID      = "00000000-0000-0000-0000-000000004000"
	carrierName     = "310270"
	deviceModel     = "Pixel"
	deviceOS        = "Android"
	deviceOSVersion = "33"
	displayProfile  = "Android"

	// The login request hangs forever under any other user agent.
	userAgent = "Mozilla/5.0 (Linux; Android 13; Pixel Build/TQ2B.230505.005.A1; wv) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Chrome/101.0.4951.61 " +
		"Safari/537.36 KoboApp/10.1.2.39807 KoboPlatform Id/00000000-0000-0000-0000-000000004000 " +
		"KoboAffiliate/Kobo KoboBuildFlavor/global"
)

const (
	deviceAuthURL     = "https://storeapi.kobo.com/v1/auth/device"
	tokenRefreshURL   = "https://storeapi.kobo.com/v1/auth/refresh"
	initializationURL = "https://storeapi.kobo.com/v1/initialization"
)

// Client talks to the store API on behalf of one session. It owns the
// cookie jar and the cached endpoint settings; one command invocation
// uses one Client, strictly sequentially.
type Client struct {
	transport Transport
	evaluator jsengine.Evaluator
	state     *session.State
	jar       http.CookieJar
	settings  *Settings
	logger    *slog.Logger
}

// Option customises Client construction.
type Option func(*Client)

// WithTransport overrides the HTTP transport (used in tests).
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithEvaluator overrides the script evaluator used during login.
func WithEvaluator(e jsengine.Evaluator) Option {
	return func(c *Client) { c.evaluator = e }
}

// WithLogger attaches a logger for auth and flow events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a Client over the given credential state.
func New(state *session.State, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		transport: NewHTTPTransport(),
		evaluator: jsengine.New(),
		state:     state,
		jar:       jar,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultHeaders(h http.Header) {
	h.Set("User-Agent", userAgent)
	h.Set("x-kobo-affiliatename", affiliate)
	h.Set("x-kobo-appversion", appVersion)
	h.Set("x-kobo-platformid", platformID)
	h.Set("x-kobo-carriername", carrierName)
	h.Set("x-kobo-devicemodel", deviceModel)
	h.Set("x-kobo-deviceos", deviceOS)
	h.Set("x-kobo-deviceosversion", deviceOSVersion)
	h.Set("X-Requested-With", "com.kobobooks.android")
	h.Set("Accept-Encoding", "gzip, deflate")
}

// rawRequest performs one exchange with cookies attached, stores any
// returned cookies, and follows 3xx responses as GETs until the chain
// settles. A redirect without a resolvable Location is returned as-is.
func (c *Client) rawRequest(ctx context.Context, req *Request) (*Response, error) {
	for {
		defaultHeaders(req.Header)
		c.pushCookies(req)
		resp, err := c.transport.RoundTrip(ctx, req)
		if err != nil {
			return nil, err
		}
		c.pullCookies(req.URL, resp)
		if resp.StatusCode < 300 || resp.StatusCode > 399 {
			return resp, nil
		}
		next := resolveLocation(req.URL, resp.Header)
		if next == nil {
			return resp, nil
		}
		resp.closeBody()
		c.logger.Debug("following redirect", "status", resp.StatusCode, "url", next.String())
		req = NewRequest(http.MethodGet, next)
	}
}

// resolveLocation picks the first Location header that resolves against
// the request URL.
func resolveLocation(base *url.URL, h http.Header) *url.URL {
	for _, loc := range h.Values("Location") {
		if loc == "" {
			continue
		}
		if u, err := base.Parse(loc); err == nil {
			return u
		}
	}
	return nil
}
