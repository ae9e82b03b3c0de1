package sniff

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"regexp"
	"strings"
)

// ErrNotDataURI is returned when a string is not a base64 data URI.
var ErrNotDataURI = errors.New("not a base64 data URI")

// ErrQuoteMismatch is returned when a quoted data URI does not use the same
// quote character on both ends.
var ErrQuoteMismatch = errors.New("data URI quote mismatch")

var declaredPattern = regexp.MustCompile(`^data:([a-z0-9.+/-]+);`)

// DataURI is a parsed `data:<mime>;base64,<payload>` reference, optionally
// wrapped in a quote character.
type DataURI struct {
	Quote   string
	MIME    string
	Payload string
}

// ParseDataURI parses a bare or quoted base64 data URI.
func ParseDataURI(s string) (DataURI, error) {
	quote, inner, err := unquote(s)
	if err != nil {
		return DataURI{}, err
	}
	if !strings.HasPrefix(inner, "data:") {
		return DataURI{}, ErrNotDataURI
	}
	header, payload, ok := strings.Cut(inner, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return DataURI{}, ErrNotDataURI
	}
	mimeType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	return DataURI{Quote: quote, MIME: strings.ToLower(mimeType), Payload: payload}, nil
}

// String renders the data URI with its original quote.
func (d DataURI) String() string {
	return d.Quote + "data:" + d.MIME + ";base64," + d.Payload + d.Quote
}

// Bytes decodes the payload.
func (d DataURI) Bytes() ([]byte, error) {
	return DecodeBase64(d.Payload)
}

// IsImage reports whether the declared type is an image type.
func (d DataURI) IsImage() bool {
	return strings.HasPrefix(d.MIME, "image/")
}

// NewDataURI encodes data as a data URI wrapped in quote.
func NewDataURI(quote, mimeType string, data []byte) string {
	return quote + "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data) + quote
}

// DecodeBase64 decodes standard base64, accepting payloads with missing padding.
func DecodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimRight(payload, "=")
	b, err := base64.RawStdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return b, nil
}

// DeclaredMIME returns the type annotation leading a bare or quoted data URI.
func DeclaredMIME(s string) (string, bool) {
	_, inner, err := unquote(s)
	if err != nil {
		return "", false
	}
	m := declaredPattern.FindStringSubmatch(inner)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ActualMIME identifies the payload of a data URI from its signature bytes.
// Payloads that cannot be decoded yield FormatError.
func ActualMIME(s string) Format {
	d, err := ParseDataURI(s)
	if err != nil {
		return FormatError
	}
	b, err := d.Bytes()
	if err != nil {
		return FormatError
	}
	return Sniff(b)
}

// FixMIME rewrites the declared type of a data URI to the sniffed one when
// the two disagree. The payload is never touched, and a reference whose
// payload cannot be identified is returned unchanged.
func FixMIME(ref string) string {
	declared, ok := DeclaredMIME(ref)
	if !ok {
		return ref
	}
	actual := ActualMIME(ref)
	if !actual.Known() || string(actual) == declared {
		return ref
	}
	quote, inner, _ := unquote(ref)
	return quote + "data:" + string(actual) + strings.TrimPrefix(inner, "data:"+declared) + quote
}

// Extension returns the file extension used when an image with the given
// MIME type is written to its own file.
func Extension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case string(FormatJPEG), "image/jpg":
		return ".jpeg"
	case string(FormatPNG):
		return ".png"
	case string(FormatGIF):
		return ".gif"
	case string(FormatWebP):
		return ".webp"
	case string(FormatAVIF):
		return ".avif"
	}
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && sub != "" {
		sub, _, _ = strings.Cut(sub, "+")
		return "." + sub
	}
	return ".bin"
}

// MIMEFromExtension returns the image MIME type for a file name, or "".
func MIMEFromExtension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	switch ext := strings.ToLower(name[i:]); ext {
	case ".jpg", ".jpeg":
		return string(FormatJPEG)
	case ".avif":
		return string(FormatAVIF)
	default:
		t := mime.TypeByExtension(ext)
		t, _, _ = strings.Cut(t, ";")
		return t
	}
}

// unquote strips a matching quote pair. Strings that start with "data:"
// are returned as-is.
func unquote(s string) (quote, inner string, err error) {
	if strings.HasPrefix(s, "data:") {
		return "", s, nil
	}
	if len(s) < 2 || !isQuote(s[0]) {
		return "", "", ErrNotDataURI
	}
	if s[0] != s[len(s)-1] {
		return "", "", ErrQuoteMismatch
	}
	return s[:1], s[1 : len(s)-1], nil
}

func isQuote(c byte) bool {
	return c == '"' || c == '\'' || c == '`'
}
