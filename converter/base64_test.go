package converter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaconv/dataurl"
	"mediaconv/manipulator"
	"mediaconv/media"
)

func newTestBase64(t *testing.T) *Base64 {
	t.Helper()
	return NewBase64(manipulator.New(nil), nil)
}

func TestBase64ToImage(t *testing.T) {
	c := newTestBase64(t)

	f := pngFile(t, "red.png", 10, 10)
	text := dataurl.FromBytes(f.Blob.Bytes(), media.PNG)

	res, err := c.ToImage(text)
	require.NoError(t, err)

	assert.Equal(t, media.PNG, res.Blob.MediaType())
	assert.Equal(t, 10, res.Meta.Width)
	assert.Equal(t, 10, res.Meta.Height)
	assert.Equal(t, f.Blob.Bytes(), res.Blob.Bytes(), "decode reproduces the original bytes")
}

func TestBase64ToImage_BarePayloadAssumesPNG(t *testing.T) {
	c := newTestBase64(t)

	f := pngFile(t, "red.png", 4, 4)
	payload := dataurl.StripPrefix(dataurl.FromBytes(f.Blob.Bytes(), media.PNG))

	res, err := c.ToImage(payload)
	require.NoError(t, err)
	assert.Equal(t, media.PNG, res.Blob.MediaType())
	assert.Equal(t, 4, res.Meta.Width)
}

func TestBase64ToImage_Errors(t *testing.T) {
	c := newTestBase64(t)

	tt := []struct {
		name string
		text string
		code string
	}{
		{"empty", "", "InvalidInput"},
		{"malformed header", "data:image/png;base64,", "InvalidDataURL"},
		{"bad alphabet", "ab!c", "InvalidBase64"},
		{"bad length", "abcde", "InvalidBase64"},
		// a non-image media type passes the gate but has no decoder
		{"non-image payload", "data:text/plain;base64,aGVsbG8h", "UnsupportedInputFormat"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.ToImage(tc.text)
			require.Error(t, err)
			assert.Equal(t, tc.code, media.Code(err))
		})
	}
}

func TestBase64ToImage_TooLarge(t *testing.T) {
	c := newTestBase64(t)

	// payload whose estimated decoded size just exceeds the limit,
	// without paying for a real decode
	l := (media.MaxImageBytes/3 + 1) * 4
	payload := strings.Repeat("A", l)

	_, err := c.ToImage(payload)
	assert.Equal(t, "Base64TooLarge", media.Code(err))
}

func TestImageToText(t *testing.T) {
	c := newTestBase64(t)
	f := pngFile(t, "red.png", 10, 10)

	res, err := c.ToText(f, TextOptions{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Payload, "data:image/png;base64,"))
	assert.Equal(t, "red.png", res.Meta.SourceName)
	assert.Equal(t, media.PNG, res.Meta.MediaType)
	assert.Equal(t, f.Blob.Len(), res.Meta.SourceBytes)
	assert.Equal(t, len(res.Payload), res.Meta.PayloadLength)

	// round trip
	back, err := c.ToImage(res.Payload)
	require.NoError(t, err)
	assert.Equal(t, f.Blob.Bytes(), back.Blob.Bytes())
}

func TestImageToText_RawPayload(t *testing.T) {
	c := newTestBase64(t)
	f := pngFile(t, "red.png", 4, 4)

	raw := false
	res, err := c.ToText(f, TextOptions{IncludePrefix: &raw})
	require.NoError(t, err)
	assert.False(t, strings.Contains(res.Payload, "data:"))
	assert.True(t, dataurl.IsValid(res.Payload))
}

func TestImageToText_Errors(t *testing.T) {
	c := newTestBase64(t)

	_, err := c.ToText(File{Name: "x.png"}, TextOptions{})
	assert.Equal(t, "InvalidInput", media.Code(err))

	_, err = c.ToText(File{
		Name: "notes.txt",
		Blob: media.NewBlob([]byte("hello"), "text/plain"),
	}, TextOptions{})
	assert.Equal(t, "InvalidFileType", media.Code(err))

	// rejected on size before the payload is ever encoded
	_, err = c.ToText(File{
		Name: "big.png",
		Blob: media.NewBlob(make([]byte, media.MaxImageBytes+1), media.PNG),
	}, TextOptions{})
	assert.Equal(t, "FileTooLarge", media.Code(err))
}
