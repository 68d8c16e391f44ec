package dataurl

import (
	"encoding/base64"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaconv/media"
)

func TestParse(t *testing.T) {
	tt := []struct {
		name      string
		text      string
		mediaType string
		payload   string
		code      string
	}{
		{
			name:      "valid png url",
			text:      "data:image/png;base64,aGVsbG8=",
			mediaType: "image/png",
			payload:   "aGVsbG8=",
		},
		{
			name: "empty",
			text: "",
			code: "InvalidInput",
		},
		{
			name: "missing base64 marker",
			text: "data:image/png,aGVsbG8=",
			code: "InvalidDataURL",
		},
		{
			name: "bare payload",
			text: "aGVsbG8=",
			code: "InvalidDataURL",
		},
		{
			name: "empty payload",
			text: "data:image/png;base64,",
			code: "InvalidDataURL",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			mt, payload, err := Parse(tc.text)
			if tc.code != "" {
				assert.Equal(t, tc.code, media.Code(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.mediaType, mt)
			assert.Equal(t, tc.payload, payload)
		})
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("aGVsbG8="))
	assert.True(t, IsValid("data:image/png;base64,aGVsbG8="))
	assert.True(t, IsValid("AAAA"))
	assert.True(t, IsValid("AB=="))

	assert.False(t, IsValid(""))
	assert.False(t, IsValid("AAA"))            // not a multiple of 4
	assert.False(t, IsValid("AA!A"))           // bad alphabet
	assert.False(t, IsValid("A==="))           // too much padding
	assert.False(t, IsValid("A=AA"))           // data after padding
	assert.False(t, IsValid("data:image/png;base64,"))
}

func TestEstimateDecodedBytes(t *testing.T) {
	assert.Equal(t, 0, EstimateDecodedBytes(""))
	assert.Equal(t, 3, EstimateDecodedBytes("AAAA"))
	assert.Equal(t, 2, EstimateDecodedBytes("AAA="))
	assert.Equal(t, 1, EstimateDecodedBytes("AA=="))

	for _, n := range []int{1, 2, 3, 57, 1024, 4096} {
		b := make([]byte, n)
		payload := base64.StdEncoding.EncodeToString(b)
		assert.Equal(t, n, EstimateDecodedBytes(payload), "n=%d", n)
	}
}

func TestRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for _, n := range []int{0, 1, 2, 3, 100, 8191} {
		b := make([]byte, n)
		rnd.Read(b)

		url := FromBytes(b, "image/webp")
		blob, err := ToBlob(url)
		if n == 0 {
			// zero bytes produce an empty payload which is not a
			// well-formed data URL
			assert.Error(t, err)
			continue
		}

		require.NoError(t, err)
		assert.Equal(t, "image/webp", blob.MediaType())
		assert.Equal(t, b, blob.Bytes())
	}
}

func TestToBlobBarePayload(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("pixels"))

	blob, err := ToBlob(payload)
	require.NoError(t, err)
	assert.Equal(t, media.PNG, blob.MediaType())
	assert.Equal(t, []byte("pixels"), blob.Bytes())
}

func TestToBlobRejectsGarbage(t *testing.T) {
	_, err := ToBlob("not base64 at all!!")
	assert.Equal(t, "InvalidBase64", media.Code(err))

	_, err = ToBlob("")
	assert.Equal(t, "InvalidInput", media.Code(err))
}
