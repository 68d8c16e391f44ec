package gifmaker

import (
	"math"
	"time"

	"mediaconv/media"
)

// DefaultQuality is the encoder's sample factor on the 1..30 scale,
// lower meaning better. Not to be confused with the raster pipeline's
// 0..1 quality.
const DefaultQuality = 10

const DefaultFrameRate = 10

// defaultShrink is the orchestrator's default output size relative to
// the source. The raster pipeline knows nothing about it; its resize
// arithmetic stays pure.
const defaultShrink = 0.8

// Options controls one GIF assembly.
type Options struct {
	Width  int
	Height int

	// video source only
	StartTime float64
	EndTime   float64 // zero means "until the end of the clip"
	FrameRate int

	// image sequence only
	FrameDelay          time.Duration
	MaintainAspectRatio *bool

	Quality   int
	LoopCount int
}

func (o Options) maintainAspect() bool {
	if o.MaintainAspectRatio == nil {
		return true
	}

	return *o.MaintainAspectRatio
}

func (o Options) withVideoDefaults() Options {
	if o.FrameRate == 0 {
		o.FrameRate = DefaultFrameRate
	}
	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}

	return o
}

func (o Options) withImageDefaults() Options {
	if o.FrameDelay == 0 {
		o.FrameDelay = 100 * time.Millisecond
	}
	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}

	return o
}

// Result is an encoded GIF with its conversion metadata.
type Result struct {
	Blob       *media.Blob
	Meta       media.Metadata
	FrameCount int
}

// shrinkDim applies the default output scale to one source axis.
func shrinkDim(d int) int {
	s := int(math.Floor(float64(d) * defaultShrink))
	if s < 1 {
		s = 1
	}

	return s
}
