// Package dataurl round-trips bytes between raw, blob and textual
// data-URL form.
package dataurl

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"mediaconv/media"
)

var dataURLPattern = regexp.MustCompile(`^data:([^;]+);base64,(.+)$`)

// Parse splits a data URL into its media type and base64 payload.
func Parse(text string) (mediaType, payload string, err error) {
	if text == "" {
		return "", "", errors.Wrap(media.ErrInvalidInput, "empty input")
	}

	m := dataURLPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", errors.Wrap(media.ErrInvalidDataURL, "text does not match data:<type>;base64,<payload>")
	}

	return m[1], m[2], nil
}

// IsValid reports whether text is a canonical base64 payload, with or
// without a data-URL prefix. It never panics and performs no decoding.
func IsValid(text string) bool {
	if text == "" {
		return false
	}

	payload := StripPrefix(text)
	if payload == "" || len(payload)%4 != 0 {
		return false
	}

	padding := 0
	for i := 0; i < len(payload); i++ {
		c := payload[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/':
			if padding > 0 {
				return false
			}
		case c == '=':
			padding++
			if padding > 2 {
				return false
			}
		default:
			return false
		}
	}

	return true
}

// StripPrefix drops a leading data-URL header if one is present.
func StripPrefix(text string) string {
	if m := dataURLPattern.FindStringSubmatch(text); m != nil {
		return m[2]
	}

	return text
}

// EstimateDecodedBytes predicts the decoded size of a canonical payload
// without decoding it: len*3/4 minus one byte per trailing '='.
func EstimateDecodedBytes(payload string) int {
	if payload == "" {
		return 0
	}

	padding := 0
	for i := len(payload) - 1; i >= 0 && payload[i] == '='; i-- {
		padding++
	}

	return len(payload)*3/4 - padding
}

// FromBytes renders bytes as a data URL with the given media type.
func FromBytes(b []byte, mediaType string) string {
	var sb strings.Builder
	sb.Grow(len("data:;base64,") + len(mediaType) + base64.StdEncoding.EncodedLen(len(b)))
	sb.WriteString("data:")
	sb.WriteString(mediaType)
	sb.WriteString(";base64,")
	sb.WriteString(base64.StdEncoding.EncodeToString(b))

	return sb.String()
}

// ToBlob decodes a data URL, or a bare payload, into a blob. A bare
// payload is assumed to carry a PNG.
func ToBlob(text string) (*media.Blob, error) {
	if text == "" {
		return nil, errors.Wrap(media.ErrInvalidInput, "empty input")
	}

	mediaType := media.PNG
	payload := text
	if strings.HasPrefix(text, "data:") {
		var err error
		mediaType, payload, err = Parse(text)
		if err != nil {
			return nil, err
		}
	}

	if !IsValid(payload) {
		return nil, errors.Wrap(media.ErrInvalidBase64, "payload fails alphabet or length check")
	}

	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrap(media.ErrInvalidBase64, err.Error())
	}

	return media.NewBlob(b, mediaType), nil
}
