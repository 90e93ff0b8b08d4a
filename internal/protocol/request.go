package protocol

import (
	"encoding/hex"
	"errors"
	"strings"
)

// MaxRequestSize is the upper bound of the single read performed per connection.
const MaxRequestSize = 4096

var (
	// ErrEmptyRequest is returned when the peer closed before sending anything.
	ErrEmptyRequest = errors.New("empty request")
	// ErrMalformedRequestLine is returned when the request line has fewer than 3 tokens.
	ErrMalformedRequestLine = errors.New("malformed request line")
	// ErrUnexpectedTokens is returned when the request line has more than 3 tokens.
	ErrUnexpectedTokens = errors.New("unexpected tokens in request line")
)

// RequestLine is the first line of a request. Method and Version are kept
// but never validated.
type RequestLine struct {
	Method  string
	Target  string
	Version string
}

// ParseRequestLine parses the bytes of a single read. Everything after the
// first CRLF is ignored.
func ParseRequestLine(raw []byte) (RequestLine, error) {
	if len(raw) == 0 {
		return RequestLine{}, ErrEmptyRequest
	}

	// invalid UTF-8 is replaced rather than rejected
	text := strings.ToValidUTF8(string(raw), "\uFFFD")
	line, _, _ := strings.Cut(text, "\r\n")

	parts := strings.Split(line, " ")
	switch {
	case len(parts) < 3:
		return RequestLine{}, ErrMalformedRequestLine
	case len(parts) > 3:
		return RequestLine{}, ErrUnexpectedTokens
	}

	return RequestLine{
		Method:  parts[0],
		Target:  parts[1],
		Version: parts[2],
	}, nil
}

// DecodeTarget percent-decodes every valid %XX in target. Invalid escapes
// are kept literally and bytes that do not form UTF-8 become U+FFFD.
func DecodeTarget(target string) string {
	if !strings.Contains(target, "%") {
		return target
	}

	var b strings.Builder
	b.Grow(len(target))
	for i := 0; i < len(target); i++ {
		if target[i] == '%' && i+2 < len(target) {
			if decoded, err := hex.DecodeString(target[i+1 : i+3]); err == nil {
				b.Write(decoded)
				i += 2
				continue
			}
		}
		b.WriteByte(target[i])
	}

	return strings.ToValidUTF8(b.String(), "\uFFFD")
}
