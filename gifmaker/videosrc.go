package gifmaker

import (
	"mediaconv/media"
)

// ClipInfo is what a video source learns from container metadata.
type ClipInfo struct {
	Duration float64 // seconds
	Width    int
	Height   int
}

// VideoSource captures frames from an opened clip by seeking. The
// production implementation shells out to ffmpeg; tests inject fakes.
type VideoSource interface {
	Info() ClipInfo
	CaptureAt(seconds float64) (*media.PixelFrame, error)
	Close() error
}

// VideoOpener materializes a source from clip bytes.
type VideoOpener interface {
	Open(blob *media.Blob) (VideoSource, error)
}
