package mediatype

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// StatusError reports a response status that forbids interpreting the
// body. Decoders require exactly 200; anything else surfaces here.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.Code)
}

// CheckSuccess verifies a 2xx status for calls whose body is discarded.
func CheckSuccess(status int) error {
	if status < 200 || status > 299 {
		return &StatusError{Code: status}
	}
	return nil
}

func checkOK(status int) error {
	if status != http.StatusOK {
		return &StatusError{Code: status}
	}
	return nil
}

// DecodeBytes reads the raw response body. Requires status 200.
func DecodeBytes(status int, r io.Reader) ([]byte, error) {
	if err := checkOK(status); err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// EncodeText prepares a text request body, transcoding to the charset
// named by the request's Content-Type when it is not UTF-8.
func EncodeText(header http.Header, text string) ([]byte, error) {
	enc, err := contentCharset(header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return []byte(text), nil
	}
	out, _, err := transform.Bytes(enc.NewEncoder(), []byte(text))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeText reads the response body as text, transcoding from the
// charset named by the response's Content-Type. Requires status 200.
func DecodeText(status int, header http.Header, r io.Reader) (string, error) {
	if err := checkOK(status); err != nil {
		return "", err
	}
	enc, err := contentCharset(header.Get("Content-Type"))
	if err != nil {
		return "", err
	}
	if enc != nil {
		b, err := io.ReadAll(transform.NewReader(r, enc.NewDecoder()))
		if err != nil {
			return "", &UnsupportedCharsetError{Charset: charsetLabel(header)}
		}
		return string(b), nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", &UnsupportedCharsetError{Charset: []byte("UTF-8")}
	}
	return string(b), nil
}

// EncodeJSON marshals a JSON request body. A default Content-Type is set
// only when the caller supplied none.
func EncodeJSON(header http.Header, v any) ([]byte, error) {
	ct := header.Get("Content-Type")
	if ct == "" {
		header.Set("Content-Type", "application/json; charset=utf-8")
		return json.Marshal(v)
	}
	enc, err := contentCharset(ct)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return b, nil
	}
	out, _, err := transform.Bytes(enc.NewEncoder(), b)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeJSON unmarshals the response body into v, transcoding first when
// the response charset is not UTF-8. Requires status 200. Trailing data
// after the JSON value is an error.
func DecodeJSON(status int, header http.Header, r io.Reader, v any) error {
	if err := checkOK(status); err != nil {
		return err
	}
	enc, err := contentCharset(header.Get("Content-Type"))
	if err != nil {
		return err
	}
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode json body: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode json body: trailing data")
	}
	return nil
}

// FormField is one urlencoded form field. Fields keep their order on the
// wire, unlike url.Values.
type FormField struct {
	Name  string
	Value string
}

// EncodeForm builds an application/x-www-form-urlencoded request body.
// A default Content-Type is set only when the caller supplied none.
func EncodeForm(header http.Header, fields []FormField) ([]byte, error) {
	ct := header.Get("Content-Type")
	if ct == "" {
		header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	}
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
	}
	if ct == "" {
		return []byte(b.String()), nil
	}
	enc, err := contentCharset(ct)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return []byte(b.String()), nil
	}
	out, _, err := transform.Bytes(enc.NewEncoder(), []byte(b.String()))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// charsetLabel recovers the raw charset label for error reporting.
func charsetLabel(header http.Header) []byte {
	mt, err := Parse(header.Get("Content-Type"))
	if err != nil {
		return nil
	}
	label, ok, err := mt.Charset()
	if !ok || err != nil {
		return nil
	}
	return []byte(label)
}
