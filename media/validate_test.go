package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateImageInput(t *testing.T) {
	tt := []struct {
		name      string
		mediaType string
		size      int
		code      string
	}{
		{
			name:      "png at the limit",
			mediaType: PNG,
			size:      MaxImageBytes,
			code:      "",
		},
		{
			name:      "png one byte over",
			mediaType: PNG,
			size:      MaxImageBytes + 1,
			code:      "FileTooLarge",
		},
		{
			name:      "svg is an image",
			mediaType: SVG,
			size:      128,
			code:      "",
		},
		{
			name:      "pdf is not an image",
			mediaType: PDF,
			size:      128,
			code:      "InvalidFileType",
		},
		{
			name:      "empty type",
			mediaType: "",
			size:      128,
			code:      "InvalidFileType",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateImageInput(tc.mediaType, tc.size)
			if tc.code == "" {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tc.code, Code(err))
			}
		})
	}
}

func TestValidateTimeRange(t *testing.T) {
	assert.NoError(t, ValidateTimeRange(0, 5, 10))
	assert.NoError(t, ValidateTimeRange(0, 10, 10))

	assert.Equal(t, "InvalidTimeRange", Code(ValidateTimeRange(5, 5, 10)))
	assert.Equal(t, "InvalidTimeRange", Code(ValidateTimeRange(6, 5, 10)))
	assert.Equal(t, "InvalidTimeRange", Code(ValidateTimeRange(-1, 5, 10)))
	assert.Equal(t, "InvalidTimeRange", Code(ValidateTimeRange(0, 11, 10)))
}

func TestValidateFrameControls(t *testing.T) {
	assert.NoError(t, ValidateFrameRate(1))
	assert.NoError(t, ValidateFrameRate(30))
	assert.Error(t, ValidateFrameRate(0))
	assert.Error(t, ValidateFrameRate(31))

	assert.NoError(t, ValidateFrameDelay(10*time.Millisecond))
	assert.NoError(t, ValidateFrameDelay(2*time.Second))
	assert.Error(t, ValidateFrameDelay(9*time.Millisecond))
	assert.Error(t, ValidateFrameDelay(2001*time.Millisecond))

	assert.NoError(t, ValidateGIFQuality(1))
	assert.NoError(t, ValidateGIFQuality(30))
	assert.Error(t, ValidateGIFQuality(0))

	assert.NoError(t, ValidateLoopCount(0))
	assert.Error(t, ValidateLoopCount(-1))
}

func TestDetectMediaType(t *testing.T) {
	tt := []struct {
		declared string
		filename string
		expected string
	}{
		{declared: JPEG, filename: "photo.png", expected: JPEG},
		{declared: "", filename: "photo.png", expected: PNG},
		{declared: "application/octet-stream", filename: "clip.MOV", expected: MOV},
		{declared: "", filename: "scan.pdf", expected: PDF},
		{declared: "", filename: "noext", expected: ""},
	}

	for _, tc := range tt {
		assert.Equal(t, tc.expected, DetectMediaType(tc.declared, tc.filename), "%s/%s", tc.declared, tc.filename)
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "FileTooLarge", Code(ErrFileTooLarge))
	assert.Equal(t, "InternalError", Code(assert.AnError))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 2.0, Ratio(100, 50))
	assert.Equal(t, 0.5, Ratio(50, 100))
	assert.Equal(t, 0.0, Ratio(50, 0))
}
