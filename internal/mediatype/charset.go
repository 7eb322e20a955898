package mediatype

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// UnsupportedCharsetError reports a charset label that no known encoding
// matches. The raw label bytes are preserved for diagnostics.
type UnsupportedCharsetError struct {
	Charset []byte
}

func (e *UnsupportedCharsetError) Error() string {
	return fmt.Sprintf("unsupported charset %q", e.Charset)
}

// isUTF8Label reports whether the label names UTF-8 directly, in which
// case no transcoding is needed.
func isUTF8Label(label string) bool {
	switch len(label) {
	case 4:
		return (label[0] == 'u' || label[0] == 'U') &&
			(label[1] == 't' || label[1] == 'T') &&
			(label[2] == 'f' || label[2] == 'F') &&
			label[3] == '8'
	case 5:
		return (label[0] == 'u' || label[0] == 'U') &&
			(label[1] == 't' || label[1] == 'T') &&
			(label[2] == 'f' || label[2] == 'F') &&
			label[3] == '-' && label[4] == '8'
	}
	return false
}

// charsetEncoding resolves a charset label to a transcoder. A nil encoding
// with a nil error means the body is already UTF-8.
func charsetEncoding(label string) (encoding.Encoding, error) {
	if isUTF8Label(label) {
		return nil, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, &UnsupportedCharsetError{Charset: []byte(label)}
	}
	return enc, nil
}

// contentCharset extracts the charset from a Content-Type header value.
// An empty header means no charset constraint. The returned encoding is
// nil when the body needs no transcoding.
func contentCharset(header string) (encoding.Encoding, error) {
	if header == "" {
		return nil, nil
	}
	mt, err := Parse(header)
	if err != nil {
		return nil, err
	}
	label, ok, err := mt.Charset()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return charsetEncoding(label)
}
