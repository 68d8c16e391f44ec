// Package manipulator is the raster leg shared by every conversion
// family: decode any supported input to pixels, resize under a policy,
// encode to the target codec.
package manipulator

import (
	"time"

	"mediaconv/heic"
	"mediaconv/media"
)

type Pipeline struct {
	heic heic.Decoder
}

func New(h heic.Decoder) *Pipeline {
	return &Pipeline{heic: h}
}

// Convert runs the full decode -> resize -> encode leg and reports the
// conversion metadata alongside the encoded blob.
func (p *Pipeline) Convert(blob *media.Blob, targetMediaType string, opts Options) (*media.ConversionResult, error) {
	opts = opts.withDefaults()
	started := time.Now()

	bm, err := p.Decode(blob)
	if err != nil {
		return nil, err
	}

	bm, err = p.Resize(bm, opts.Resize)
	if err != nil {
		return nil, err
	}

	out, err := p.Encode(bm, targetMediaType, opts.Quality)
	if err != nil {
		return nil, err
	}

	return &media.ConversionResult{
		Blob: out,
		Meta: media.Metadata{
			SourceMediaType:  blob.MediaType(),
			TargetMediaType:  targetMediaType,
			SourceBytes:      blob.Len(),
			OutputBytes:      out.Len(),
			Width:            bm.Width(),
			Height:           bm.Height(),
			CompressionRatio: media.Ratio(blob.Len(), out.Len()),
			Elapsed:          time.Since(started),
		},
	}, nil
}
