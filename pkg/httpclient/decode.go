package httpclient

import (
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// decodeBody converts raw body bytes to text. The charset comes from the
// Content-Type header unless forced; without either, UTF-8 is assumed.
func decodeBody(raw []byte, contentType, forced string) (string, error) {
	label := forced
	if label == "" {
		label = declaredCharset(contentType)
	}
	if label == "" || isUTF8(label) {
		return toValidUTF8(raw), nil
	}

	enc, name := charset.Lookup(label)
	if enc == nil {
		return "", fmt.Errorf("unsupported response charset %q", label)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s body: %w", name, err)
	}
	return string(out), nil
}

func declaredCharset(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}

func isUTF8(label string) bool {
	switch strings.ToLower(strings.Trim(label, `"' `)) {
	case "utf-8", "utf8":
		return true
	}
	return false
}

// toValidUTF8 mirrors a lenient decoder: malformed sequences become U+FFFD.
func toValidUTF8(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}
