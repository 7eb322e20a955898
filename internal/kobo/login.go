package kobo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"kobodown/internal/mediatype"
)

// loginParameters fetches the sign-in page under the reference client's
// query fingerprint and extracts the workflow id and anti-forgery token
// from the sign-in form, plus the form's action URL.
func (c *Client) loginParameters(ctx context.Context) (workflowID, token string, action *url.URL, err error) {
	settings, err := c.fetchSettings(ctx)
	if err != nil {
		return "", "", nil, err
	}
	signIn, err := url.Parse(settings.SignInPage)
	if err != nil {
		return "", "", nil, fmt.Errorf("parse sign-in url: %w", err)
	}
	deviceID := c.state.DeviceID()
	if deviceID == "" {
		return "", "", nil, ErrLoginFlow
	}

	// The fingerprint pairs are appended in this exact order after
	// whatever query the settings URL already carries.
	pairs := [][2]string{
		{"wsa", affiliate},
		{"pwsav", appVersion},
		{"pwspid", platformID},
		{"pwsdid", deviceID},
		{"wscfv", "1.5"},
		{"wscf", "kepub"},
		{"wsmc", carrierName},
		{"pwspov", deviceOSVersion},
		{"pwspt", "Mobile"},
		{"pwsdm", deviceModel},
	}
	var q strings.Builder
	q.WriteString(signIn.RawQuery)
	for _, p := range pairs {
		if q.Len() > 0 {
			q.WriteByte('&')
		}
		q.WriteString(url.QueryEscape(p[0]))
		q.WriteByte('=')
		q.WriteString(url.QueryEscape(p[1]))
	}
	signIn.RawQuery = q.String()

	resp, err := c.rawRequest(ctx, NewRequest(http.MethodGet, signIn))
	if err != nil {
		return "", "", nil, fmt.Errorf("fetch sign-in page: %w", err)
	}
	page, decodeErr := mediatype.DecodeText(resp.StatusCode, resp.Header, resp.Body)
	resp.closeBody()
	if decodeErr != nil {
		return "", "", nil, fmt.Errorf("fetch sign-in page: %w", decodeErr)
	}

	workflowID, token, ok := extractLoginForm(page)
	if !ok {
		return "", "", nil, ErrLoginFlow
	}

	// The form posts to the sign-in endpoint on the same origin with no
	// query at all.
	action, err = url.Parse(settings.SignInPage)
	if err != nil {
		return "", "", nil, fmt.Errorf("parse sign-in url: %w", err)
	}
	action.Path = "/ww/en/signin/signin"
	action.RawQuery = ""
	return workflowID, token, action, nil
}

// Login performs the full web sign-in flow: submit credentials to the
// sign-in form, let the returned page script compute its redirect, and
// bind the session to the user id and key carried by that redirect.
func (c *Client) Login(ctx context.Context, username, password, captcha string) error {
	workflowID, token, action, err := c.loginParameters(ctx)
	if err != nil {
		return err
	}

	req := NewRequest(http.MethodPost, action)
	req.Body, err = mediatype.EncodeForm(req.Header, []mediatype.FormField{
		{Name: "LogInModel.WorkflowId", Value: workflowID},
		{Name: "LogInModel.Provider", Value: affiliate},
		{Name: "ReturnUrl", Value: ""},
		{Name: "__RequestVerificationToken", Value: token},
		{Name: "LogInModel.UserName", Value: username},
		{Name: "LogInModel.Password", Value: password},
		{Name: "g-recaptcha-response", Value: captcha},
		{Name: "h-captcha-response", Value: captcha},
	})
	if err != nil {
		return fmt.Errorf("encode login form: %w", err)
	}

	resp, err := c.anonRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("submit login form: %w", err)
	}
	page, decodeErr := mediatype.DecodeText(resp.StatusCode, resp.Header, resp.Body)
	resp.closeBody()
	if decodeErr != nil {
		return fmt.Errorf("submit login form: %w", decodeErr)
	}

	href, ok := c.evaluator.Evaluate(redirectScript(page))
	if !ok {
		return ErrLoginFlow
	}
	target, err := url.Parse(href)
	if err != nil {
		return ErrLoginFlow
	}
	q := target.Query()
	userID := q.Get("userId")
	userKey := q.Get("userKey")
	if userID == "" || userKey == "" {
		return ErrLoginFlow
	}

	if err := c.authenticateDevice(ctx, userKey); err != nil {
		return err
	}
	c.state.SetUserID(userID)
	if err := c.state.Save(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	c.logger.Info("login complete")
	return nil
}

// redirectScript stitches every inline script from the response page
// behind a stub location object that absorbs redirect attempts, then
// asks for the destination the page settled on. Each script runs inside
// its own try/catch so one failing script cannot hide a later redirect.
func redirectScript(page string) string {
	var b strings.Builder
	b.WriteString("var location={};\n")
	doc, err := html.Parse(strings.NewReader(page))
	if err == nil {
		for _, script := range findElements(doc, "script") {
			b.WriteString("try{\n")
			for child := script.FirstChild; child != nil; child = child.NextSibling {
				if child.Type == html.TextNode {
					b.WriteString(child.Data)
					b.WriteByte('\n')
				}
			}
			b.WriteString("}catch(____e){}\n")
		}
	}
	b.WriteString("location.href")
	return b.String()
}

// extractLoginForm pulls the workflow id and request verification token
// out of the sign-in form. The form lives in section#defaultOptions and
// is identified by its #signInBlock content.
func extractLoginForm(page string) (workflowID, token string, ok bool) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", "", false
	}
	var section *html.Node
	for _, n := range findElements(doc, "section") {
		if attrValue(n, "id") == "defaultOptions" {
			section = n
			break
		}
	}
	if section == nil {
		return "", "", false
	}
	var form *html.Node
	for _, f := range findElements(section, "form") {
		if nodeWithID(f, "signInBlock") != nil {
			form = f
			break
		}
	}
	if form == nil {
		return "", "", false
	}
	for _, input := range findElements(form, "input") {
		switch attrValue(input, "name") {
		case "LogInModel.WorkflowId":
			workflowID = attrValue(input, "value")
		case "__RequestVerificationToken":
			token = attrValue(input, "value")
		}
	}
	if workflowID == "" || token == "" {
		return "", "", false
	}
	return workflowID, token, true
}

func findElements(root *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return out
}

func nodeWithID(root *html.Node, id string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && attrValue(n, "id") == id {
			found = n
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return found
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
