package media

import (
	"time"

	"github.com/pkg/errors"
)

const (
	MaxImageBytes = 50 << 20
	MaxVideoBytes = 100 << 20
	MaxPDFBytes   = 100 << 20

	MinFrameRate = 1
	MaxFrameRate = 30

	MinFrameDelay = 10 * time.Millisecond
	MaxFrameDelay = 2000 * time.Millisecond

	// GIF quality runs 1..30 with lower meaning better, following the
	// encoder's sample-factor convention. Distinct from raster quality,
	// which runs 0..1 with higher meaning better.
	MinGIFQuality = 1
	MaxGIFQuality = 30
)

var imageTypes = map[string]bool{
	PNG:  true,
	JPEG: true,
	GIF:  true,
	WEBP: true,
	HEIC: true,
	HEIF: true,
	SVG:  true,
}

var videoTypes = map[string]bool{
	MP4:  true,
	MOV:  true,
	WEBM: true,
}

func IsImageType(mediaType string) bool {
	return imageTypes[mediaType]
}

func IsVideoType(mediaType string) bool {
	return videoTypes[mediaType]
}

// ValidateImageInput gates an artifact before any decoder touches it.
// A size exactly at the limit is admitted.
func ValidateImageInput(mediaType string, size int) error {
	if !imageTypes[mediaType] {
		return errors.Wrapf(ErrInvalidFileType, "%q is not an accepted image type", mediaType)
	}

	if size > MaxImageBytes {
		return errors.Wrapf(ErrFileTooLarge, "image is %d bytes, limit is %d", size, MaxImageBytes)
	}

	return nil
}

func ValidateVideoInput(mediaType string, size int) error {
	if !videoTypes[mediaType] {
		return errors.Wrapf(ErrInvalidFileType, "%q is not an accepted video type", mediaType)
	}

	if size > MaxVideoBytes {
		return errors.Wrapf(ErrFileTooLarge, "video is %d bytes, limit is %d", size, MaxVideoBytes)
	}

	return nil
}

func ValidatePDFInput(mediaType string, size int) error {
	if mediaType != PDF {
		return errors.Wrapf(ErrInvalidFileType, "%q is not a PDF", mediaType)
	}

	if size > MaxPDFBytes {
		return errors.Wrapf(ErrFileTooLarge, "document is %d bytes, limit is %d", size, MaxPDFBytes)
	}

	return nil
}

// ValidateTimeRange checks a video clipping window against the clip
// duration. An empty window (start == end) is rejected.
func ValidateTimeRange(start, end, duration float64) error {
	if start < 0 || start >= end || end > duration {
		return errors.Wrapf(ErrInvalidTimeRange,
			"want 0 <= start < end <= %.3f, got [%.3f, %.3f]", duration, start, end)
	}

	return nil
}

func ValidateFrameRate(fps int) error {
	if fps < MinFrameRate || fps > MaxFrameRate {
		return errors.Wrapf(ErrInvalidInput, "frame rate %d is outside [%d, %d]", fps, MinFrameRate, MaxFrameRate)
	}

	return nil
}

func ValidateFrameDelay(d time.Duration) error {
	if d < MinFrameDelay || d > MaxFrameDelay {
		return errors.Wrapf(ErrInvalidInput, "frame delay %s is outside [%s, %s]", d, MinFrameDelay, MaxFrameDelay)
	}

	return nil
}

func ValidateGIFQuality(q int) error {
	if q < MinGIFQuality || q > MaxGIFQuality {
		return errors.Wrapf(ErrInvalidInput, "gif quality %d is outside [%d, %d]", q, MinGIFQuality, MaxGIFQuality)
	}

	return nil
}

func ValidateLoopCount(n int) error {
	if n < 0 {
		return errors.Wrapf(ErrInvalidInput, "loop count %d is negative", n)
	}

	return nil
}
