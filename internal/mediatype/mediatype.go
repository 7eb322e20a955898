package mediatype

import (
	"errors"
	"strings"
)

// ErrInvalidContentType reports a Content-Type header that does not follow
// the RFC 7231 media-type grammar. Parsing stops at the first offending
// byte and does not resync.
var ErrInvalidContentType = errors.New("invalid Content-Type header")

// Param is one media-type parameter. Quoted-string values are stored with
// quoting and backslash escapes already removed.
type Param struct {
	Name  string
	Value string
}

// MediaType is a parsed Content-Type value. Parameters keep the order they
// appeared in; the value is immutable once parsed.
type MediaType struct {
	Type    string
	Subtype string
	Params  []Param
}

func isTokenChar(c byte) bool {
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// qdtext per RFC 7230: HTAB, SP, and visible bytes except DQUOTE and
// backslash, plus obs-text.
func isQDText(c byte) bool {
	switch c {
	case '\t', ' ':
		return true
	case '"', '\\':
		return false
	}
	return c > 0x20 && c != 0x7f
}

// quoted-pair may escape HTAB or any byte above 0x1f except DEL.
func isQuotedPairChar(c byte) bool {
	return c == '\t' || (c > 0x1f && c != 0x7f)
}

func skipOWS(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[i:]
}

func readToken(s string) (string, string, bool) {
	i := 0
	for i < len(s) && isTokenChar(s[i]) {
		i++
	}
	if i == 0 {
		return "", "", false
	}
	return s[:i], s[i:], true
}

// readValue consumes a parameter value, either a bare token or a quoted
// string. The byte following the value must be whitespace, a semicolon,
// or the end of input.
func readValue(s string) (string, string, bool) {
	var value, rest string
	if len(s) > 0 && s[0] == '"' {
		var b strings.Builder
		i := 1
		for {
			if i >= len(s) {
				return "", "", false
			}
			c := s[i]
			switch {
			case c == '"':
				value, rest = b.String(), s[i+1:]
			case c == '\\':
				i++
				if i >= len(s) || !isQuotedPairChar(s[i]) {
					return "", "", false
				}
				b.WriteByte(s[i])
				i++
				continue
			case isQDText(c):
				b.WriteByte(c)
				i++
				continue
			default:
				return "", "", false
			}
			break
		}
	} else {
		var ok bool
		value, rest, ok = readToken(s)
		if !ok {
			return "", "", false
		}
	}
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' && rest[0] != ';' {
		return "", "", false
	}
	return value, rest, true
}

// Parse parses a Content-Type header value. The grammar is
// type "/" subtype *( OWS ";" OWS token "=" ( token / quoted-string ) ),
// with a trailing bare semicolon tolerated. Malformed input at any point
// yields ErrInvalidContentType.
func Parse(header string) (MediaType, error) {
	s := skipOWS(header)
	typ, s, ok := readToken(s)
	if !ok {
		return MediaType{}, ErrInvalidContentType
	}
	if s == "" || s[0] != '/' {
		return MediaType{}, ErrInvalidContentType
	}
	subtype, s, ok := readToken(s[1:])
	if !ok {
		return MediaType{}, ErrInvalidContentType
	}

	mt := MediaType{Type: typ, Subtype: subtype}
	for {
		s = skipOWS(s)
		if s == "" {
			return mt, nil
		}
		if s[0] != ';' {
			return MediaType{}, ErrInvalidContentType
		}
		s = skipOWS(s[1:])
		if s == "" {
			return mt, nil
		}
		name, rest, ok := readToken(s)
		if !ok || rest == "" || rest[0] != '=' {
			return MediaType{}, ErrInvalidContentType
		}
		value, rest, ok := readValue(rest[1:])
		if !ok {
			return MediaType{}, ErrInvalidContentType
		}
		mt.Params = append(mt.Params, Param{Name: name, Value: value})
		s = rest
	}
}

// Charset returns the value of the charset parameter, matched
// case-insensitively. More than one charset parameter is treated as an
// invalid header.
func (m MediaType) Charset() (string, bool, error) {
	found := false
	var charset string
	for _, p := range m.Params {
		if !strings.EqualFold(p.Name, "charset") {
			continue
		}
		if found {
			return "", false, ErrInvalidContentType
		}
		charset = p.Value
		found = true
	}
	return charset, found, nil
}
