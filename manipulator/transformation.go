package manipulator

import (
	"math"

	"github.com/pkg/errors"

	"mediaconv/media"
)

// Quality is a raster encode quality in [0,1], higher is better. It is
// deliberately a distinct type from the GIF encoder's 1..30 sample
// factor so the two scales cannot be mixed up.
type Quality float64

const DefaultQuality Quality = 0.92

// Percent maps the quality onto the 1..100 scale the jpeg and webp
// encoders expect.
func (q Quality) Percent() int {
	p := int(math.Round(float64(q) * 100))
	if p < 1 {
		p = 1
	}
	if p > 100 {
		p = 100
	}

	return p
}

func (q Quality) Valid() bool {
	return q >= 0 && q <= 1
}

// ResizePolicy bounds the output raster. Zero values mean "unset".
type ResizePolicy struct {
	MaxWidth            int
	MaxHeight           int
	MaintainAspectRatio bool
}

// DefaultResizePolicy keeps the source dimensions.
func DefaultResizePolicy() ResizePolicy {
	return ResizePolicy{MaintainAspectRatio: true}
}

func (p ResizePolicy) None() bool {
	return p.MaxWidth == 0 && p.MaxHeight == 0
}

func (p ResizePolicy) validate() error {
	if p.MaxWidth < 0 || p.MaxHeight < 0 {
		return errors.Wrapf(media.ErrInvalidInput, "negative bound %dx%d", p.MaxWidth, p.MaxHeight)
	}

	return nil
}

// Resolve computes the output dimensions for a source of w x h.
// Scale factors round down; a dimension can never drop below 1 pixel.
func (p ResizePolicy) Resolve(w, h int) (int, int, error) {
	if err := p.validate(); err != nil {
		return 0, 0, err
	}

	if p.None() {
		return w, h, nil
	}

	if !p.MaintainAspectRatio && p.MaxWidth != 0 && p.MaxHeight != 0 {
		return clampDim(p.MaxWidth), clampDim(p.MaxHeight), nil
	}

	var factor float64
	switch {
	case p.MaxWidth != 0 && p.MaxHeight != 0:
		factor = math.Min(float64(p.MaxWidth)/float64(w), float64(p.MaxHeight)/float64(h))
	case p.MaxWidth != 0:
		factor = float64(p.MaxWidth) / float64(w)
	default:
		factor = float64(p.MaxHeight) / float64(h)
	}

	return clampDim(int(math.Floor(float64(w) * factor))),
		clampDim(int(math.Floor(float64(h) * factor))),
		nil
}

func clampDim(d int) int {
	if d < 1 {
		return 1
	}

	return d
}

// Options is the full set of knobs for one end-to-end conversion.
type Options struct {
	Resize  ResizePolicy
	Quality Quality
}

func (o Options) withDefaults() Options {
	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}

	return o
}
