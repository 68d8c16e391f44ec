package gifmaker

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"time"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/pkg/errors"

	"mediaconv/media"
)

// EncodePayload is the worker request for one GIF assembly. Frames
// must already share the target dimensions.
type EncodePayload struct {
	Frames     []*media.PixelFrame
	Width      int
	Height     int
	Quality    int
	LoopCount  int
	FrameDelay time.Duration
}

// paletteSize maps the 1..30 sample factor onto a palette budget:
// quality 1 keeps all 256 colors, 30 drops to a coarse palette.
func paletteSize(quality int) int {
	n := 256 - (quality-1)*8
	if n < 16 {
		n = 16
	}

	return n
}

// encodeGIF is the worker-side encoder. Progress is a fraction in [0,1].
func encodeGIF(payload interface{}, progress func(float64)) (interface{}, error) {
	req, ok := payload.(*EncodePayload)
	if !ok {
		return nil, errors.Wrapf(media.ErrWorkerError, "unexpected payload %T", payload)
	}

	if len(req.Frames) == 0 {
		return nil, errors.Wrap(media.ErrGifEncodingError, "no frames to encode")
	}

	if err := media.ValidateGIFQuality(req.Quality); err != nil {
		return nil, err
	}
	if err := media.ValidateLoopCount(req.LoopCount); err != nil {
		return nil, err
	}

	delay := int(req.FrameDelay / (10 * time.Millisecond)) // gif counts hundredths
	if delay < 1 {
		delay = 1
	}

	quantizer := quantize.MedianCutQuantizer{}
	out := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(req.Frames)),
		Delay:     make([]int, 0, len(req.Frames)),
		LoopCount: req.LoopCount,
	}
	// image/gif uses 0 for infinite as well, but an explicit "play
	// once" needs -1 on the wire
	if req.LoopCount == 1 {
		out.LoopCount = -1
	}

	for i, frame := range req.Frames {
		if len(frame.Pix) != frame.Width*frame.Height*4 {
			return nil, errors.Wrapf(media.ErrGifEncodingError,
				"frame %d has %d pixel bytes, want %d", i, len(frame.Pix), frame.Width*frame.Height*4)
		}
		if frame.Width != req.Width || frame.Height != req.Height {
			return nil, errors.Wrapf(media.ErrGifEncodingError,
				"frame %d is %dx%d, want %dx%d", i, frame.Width, frame.Height, req.Width, req.Height)
		}

		rgba := &image.RGBA{
			Pix:    frame.Pix,
			Stride: frame.Width * 4,
			Rect:   image.Rect(0, 0, frame.Width, frame.Height),
		}

		palette := quantizer.Quantize(make([]color.Color, 0, paletteSize(req.Quality)), rgba)
		paletted := image.NewPaletted(rgba.Rect, palette)
		draw.Draw(paletted, rgba.Rect, rgba, image.Point{}, draw.Src)

		out.Image = append(out.Image, paletted)
		out.Delay = append(out.Delay, delay)

		progress(float64(i+1) / float64(len(req.Frames)))
	}

	buf := &bytes.Buffer{}
	if err := gif.EncodeAll(buf, out); err != nil {
		return nil, errors.Wrap(media.ErrGifEncodingError, err.Error())
	}

	return media.NewBlob(buf.Bytes(), media.GIF), nil
}
